package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"chatview/pkg/bus"
	"chatview/pkg/channel"
	"chatview/pkg/config"
	"chatview/pkg/view"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

const channelName = "telegram"
const messagePreviewLimit = 240
const typingRefreshInterval = 4 * time.Second

// Adapter bridges Telegram updates into normalized inbound events and
// renders replies back through the Bot API. It also resolves and downloads
// attachment files, so it doubles as the encoder's fetcher.
type Adapter struct {
	cfg       config.TelegramConfig
	viewCfg   config.ViewConfig
	allowFrom map[string]struct{}
	bot       *telego.Bot
	client    *http.Client
	log       *slog.Logger
}

// NewAdapter validates Telegram configuration and constructs an adapter
// instance. The bot client is created eagerly so outbound sends and file
// retrieval work before long polling starts.
func NewAdapter(cfg config.TelegramConfig, viewCfg config.ViewConfig, log *slog.Logger) (*Adapter, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("channels.telegram.token is required")
	}

	if log == nil {
		log = slog.Default()
	}

	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("initialize telegram bot: %w", err)
	}

	return &Adapter{
		cfg:       cfg,
		viewCfg:   viewCfg,
		allowFrom: allowFromSet(cfg.AllowFrom),
		bot:       bot,
		client:    &http.Client{Timeout: 30 * time.Second},
		log:       log.With("component", "channel.telegram"),
	}, nil
}

// Name returns the channel identifier used in event metadata and logs.
func (a *Adapter) Name() string {
	return channelName
}

// Run starts Telegram long polling and forwards events through the shared
// channel handler until the context is canceled.
func (a *Adapter) Run(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	updates, err := a.bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	a.log.Info("Telegram channel started")

	// Per-chat dispatch: updates for one chat are handled in receipt order,
	// while a slow attachment download in one chat never stalls polling or
	// other chats.
	dispatcher := newChatDispatcher()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				if err := ctx.Err(); err != nil {
					return nil
				}
				return errors.New("telegram updates channel closed")
			}

			switch {
			case update.Message != nil:
				message := update.Message
				dispatcher.dispatch(message.Chat.ID, func() {
					a.handleMessage(ctx, handler, message)
				})
			case update.CallbackQuery != nil:
				callback := update.CallbackQuery
				dispatcher.dispatch(callbackChatID(callback), func() {
					a.handleCallback(ctx, handler, callback)
				})
			}
		}
	}
}

// chatDispatcher runs work keyed by chat id: one worker per chat with
// pending work, draining that chat's queue in order.
type chatDispatcher struct {
	mu     sync.Mutex
	queues map[int64][]func()
}

func newChatDispatcher() *chatDispatcher {
	return &chatDispatcher{queues: make(map[int64][]func())}
}

func (d *chatDispatcher) dispatch(chatID int64, fn func()) {
	d.mu.Lock()
	pending, active := d.queues[chatID]
	d.queues[chatID] = append(pending, fn)
	d.mu.Unlock()

	if !active {
		go d.drain(chatID)
	}
}

func (d *chatDispatcher) drain(chatID int64) {
	for {
		d.mu.Lock()
		queue := d.queues[chatID]
		if len(queue) == 0 {
			delete(d.queues, chatID)
			d.mu.Unlock()
			return
		}
		fn := queue[0]
		d.queues[chatID] = queue[1:]
		d.mu.Unlock()

		fn()
	}
}

func (a *Adapter) handleMessage(ctx context.Context, handler channel.Handler, message *telego.Message) {
	event, ok := a.messageEvent(message)
	if !ok {
		return
	}
	if !a.senderAllowed(event.SenderID) {
		a.log.Debug("Ignoring message from unauthorized sender", "sender_id", event.SenderID)
		return
	}

	a.log.Info("Received message", "chat_id", event.ChatID, "sender_id", event.SenderID, "kind", event.Kind, "content", previewText(event.Text))

	stopTyping := a.startTypingIndicator(ctx, message.Chat.ID)
	replies, err := handler(ctx, event)
	stopTyping()
	if err != nil {
		a.log.Error("Failed to process inbound message", "chat_id", event.ChatID, "error", err)
		return
	}

	a.sendReplies(ctx, event.ChatID, replies)
}

func (a *Adapter) handleCallback(ctx context.Context, handler channel.Handler, callback *telego.CallbackQuery) {
	// Acknowledge first so the client stops its progress spinner even when
	// handling fails.
	if err := a.bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{CallbackQueryID: callback.ID}); err != nil {
		a.log.Debug("Failed to answer callback query", "error", err)
	}

	event := a.callbackEvent(callback)
	if !a.senderAllowed(event.SenderID) {
		a.log.Debug("Ignoring callback from unauthorized sender", "sender_id", event.SenderID)
		return
	}

	a.log.Info("Received callback", "chat_id", event.ChatID, "sender_id", event.SenderID, "data", event.CallbackData)

	replies, err := handler(ctx, event)
	if err != nil {
		a.log.Error("Failed to process callback", "chat_id", event.ChatID, "error", err)
		return
	}

	a.sendReplies(ctx, event.ChatID, replies)
}

// Send renders one reply into a chat. It implements channel.Transport and is
// safe to call at any time, including before Run.
func (a *Adapter) Send(ctx context.Context, chatID string, reply bus.Reply) error {
	id, err := strconv.ParseInt(strings.TrimSpace(chatID), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", chatID, err)
	}

	params := tu.Message(tu.ID(id), reply.Text)
	switch reply.Markup {
	case bus.MarkupMain:
		params = params.WithReplyMarkup(a.mainKeyboard())
	case bus.MarkupModels:
		params = params.WithReplyMarkup(a.modelKeyboard())
	}

	a.log.Info("Sending message", "chat_id", chatID, "content", previewText(reply.Text))
	if _, err := a.bot.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	return nil
}

func (a *Adapter) sendReplies(ctx context.Context, chatID string, replies []bus.Reply) {
	for _, reply := range replies {
		if strings.TrimSpace(reply.Text) == "" {
			continue
		}
		if err := a.Send(ctx, chatID, reply); err != nil {
			a.log.Error("Failed to send telegram message", "chat_id", chatID, "error", err)
		}
	}
}

// ResolveURL returns a direct download URL for a file. It implements
// encoder.Fetcher.
func (a *Adapter) ResolveURL(ctx context.Context, fileID string) (string, error) {
	file, err := a.bot.GetFile(ctx, &telego.GetFileParams{FileID: fileID})
	if err != nil {
		return "", fmt.Errorf("get telegram file: %w", err)
	}
	if file.FilePath == "" {
		return "", errors.New("telegram file has no path")
	}

	return a.bot.FileDownloadURL(file.FilePath), nil
}

// Download fetches a file's raw bytes through the Bot API file endpoint.
func (a *Adapter) Download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := a.ResolveURL(ctx, fileID)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download telegram file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download telegram file: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read telegram file: %w", err)
	}

	return data, nil
}

// messageEvent converts a Telegram message into a normalized inbound event.
// Messages without a sender are dropped.
func (a *Adapter) messageEvent(message *telego.Message) (bus.InboundEvent, bool) {
	if message.From == nil {
		a.log.Debug("Ignoring message without sender")
		return bus.InboundEvent{}, false
	}

	event := bus.InboundEvent{
		Channel:      channelName,
		ChatID:       strconv.FormatInt(message.Chat.ID, 10),
		SenderID:     strconv.FormatInt(message.From.ID, 10),
		Username:     message.From.Username,
		FirstName:    message.From.FirstName,
		LanguageCode: message.From.LanguageCode,
		Timestamp:    message.Date,
		Caption:      message.Caption,
	}

	switch {
	case message.Text != "":
		if command, ok := parseCommand(message.Text); ok {
			event.Kind = bus.EventCommand
			event.Command = command
			event.Text = message.Text
			break
		}
		event.Kind = bus.EventText
		event.Text = message.Text

	case len(message.Photo) > 0:
		// Telegram sends multiple resolutions; the last one is the largest.
		photo := message.Photo[len(message.Photo)-1]
		event.Kind = bus.EventPhoto
		event.Attachment = &bus.AttachmentRef{FileID: photo.FileID}

	case message.Document != nil:
		event.Kind = bus.EventDocument
		event.Attachment = &bus.AttachmentRef{
			FileID:   message.Document.FileID,
			FileName: message.Document.FileName,
			MimeType: message.Document.MimeType,
		}

	case message.Voice != nil:
		event.Kind = bus.EventVoice
		event.Attachment = &bus.AttachmentRef{
			FileID:   message.Voice.FileID,
			MimeType: message.Voice.MimeType,
		}

	case message.Audio != nil:
		event.Kind = bus.EventAudio
		event.Attachment = &bus.AttachmentRef{
			FileID:   message.Audio.FileID,
			FileName: message.Audio.FileName,
			MimeType: message.Audio.MimeType,
		}

	default:
		event.Kind = bus.EventOther
	}

	return event, true
}

// callbackChatID resolves the chat a callback belongs to, falling back to
// the sender for inaccessible messages.
func callbackChatID(callback *telego.CallbackQuery) int64 {
	if callback.Message != nil {
		return callback.Message.GetChat().ID
	}

	return callback.From.ID
}

func (a *Adapter) callbackEvent(callback *telego.CallbackQuery) bus.InboundEvent {
	return bus.InboundEvent{
		Channel:      channelName,
		ChatID:       strconv.FormatInt(callbackChatID(callback), 10),
		SenderID:     strconv.FormatInt(callback.From.ID, 10),
		Username:     callback.From.Username,
		FirstName:    callback.From.FirstName,
		LanguageCode: callback.From.LanguageCode,
		Timestamp:    time.Now().Unix(),
		Kind:         bus.EventCallback,
		CallbackData: callback.Data,
	}
}

// mainKeyboard builds the persistent reply keyboard. The showcase variant
// only offers the restart button.
func (a *Adapter) mainKeyboard() *telego.ReplyKeyboardMarkup {
	rows := [][]telego.KeyboardButton{
		tu.KeyboardRow(tu.KeyboardButton(view.ButtonStartNewChat)),
	}

	if a.viewCfg.Variant != config.VariantShowcase {
		second := []telego.KeyboardButton{tu.KeyboardButton(view.ButtonReportIssue)}
		if a.viewCfg.ShowModelSelector {
			second = append(second, tu.KeyboardButton(view.ButtonSelectModel))
		}
		rows = append(rows, second)
	}

	return tu.Keyboard(rows...).WithResizeKeyboard().WithIsPersistent()
}

// modelKeyboard builds the inline model-selection keyboard, one model per
// row, with the model id carried in the callback data.
func (a *Adapter) modelKeyboard() *telego.InlineKeyboardMarkup {
	rows := make([][]telego.InlineKeyboardButton, 0, len(a.viewCfg.Models))
	for _, model := range a.viewCfg.Models {
		rows = append(rows, tu.InlineKeyboardRow(
			tu.InlineKeyboardButton(model.Name).WithCallbackData(view.CallbackModelPrefix+model.ID),
		))
	}

	return tu.InlineKeyboard(rows...)
}

// senderAllowed checks whether a sender is permitted by allow_from config.
//
// When no allow list is configured, all senders are accepted.
func (a *Adapter) senderAllowed(senderID string) bool {
	if len(a.allowFrom) == 0 {
		return true
	}

	_, ok := a.allowFrom[strings.TrimSpace(senderID)]
	return ok
}

// parseCommand extracts the command name from a "/command" message,
// stripping the bot-name suffix and any arguments.
func parseCommand(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return "", false
	}

	name := strings.Fields(trimmed[1:])
	if len(name) == 0 {
		return "", false
	}

	command, _, _ := strings.Cut(name[0], "@")
	if command == "" {
		return "", false
	}

	return strings.ToLower(command), true
}

// allowFromSet normalizes allow_from values into a lookup set.
func allowFromSet(allowFrom []string) map[string]struct{} {
	if len(allowFrom) == 0 {
		return nil
	}

	allowed := make(map[string]struct{}, len(allowFrom))
	for _, value := range allowFrom {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		allowed[trimmed] = struct{}{}
	}

	if len(allowed) == 0 {
		return nil
	}

	return allowed
}

// previewText returns a bounded log-safe preview of message text.
func previewText(text string) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= messagePreviewLimit {
		return trimmed
	}

	return trimmed[:messagePreviewLimit] + "..."
}

// startTypingIndicator sends an initial typing action and refreshes it
// periodically until the returned cancel function is called.
func (a *Adapter) startTypingIndicator(ctx context.Context, chatID int64) context.CancelFunc {
	typingCtx, cancel := context.WithCancel(ctx)

	sendTyping := func() {
		if err := a.bot.SendChatAction(typingCtx, tu.ChatAction(tu.ID(chatID), telego.ChatActionTyping)); err != nil && typingCtx.Err() == nil {
			a.log.Debug("Failed to send typing indicator", "chat_id", chatID, "error", err)
		}
	}

	sendTyping()

	go func() {
		ticker := time.NewTicker(typingRefreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-typingCtx.Done():
				return
			case <-ticker.C:
				sendTyping()
			}
		}
	}()

	return cancel
}
