package view

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"chatview/pkg/bus"
	"chatview/pkg/channel"
	"chatview/pkg/config"
	"chatview/pkg/issue"
	"chatview/pkg/view/encoder"
	"chatview/pkg/view/session"
)

// Keyboard button labels and callback tokens shared with the channel
// adapter. Button presses arrive as plain text; callback data carries the
// model id after the prefix.
const (
	ButtonStartNewChat = "🔄 Start New Chat"
	ButtonReportIssue  = "⚠️ Report Issue"
	ButtonSelectModel  = "🤖 Select Model"

	CallbackModelPrefix = "select_model:"
)

// Command tokens recognized from the transport.
const (
	CommandStart            = "start"
	CommandDeleteAllHistory = "delete_all_history"
)

// transition is the resolved (stage, event) pair the controller dispatches
// on. Resolving it up front removes the ambiguity between "this text is a
// chat message" and "this text is an issue description".
type transition string

const (
	transitionStart            transition = "start"
	transitionDeleteHistory    transition = "delete_history"
	transitionOpenIssue        transition = "open_issue"
	transitionSubmitIssue      transition = "submit_issue"
	transitionOpenModelSelect  transition = "open_model_select"
	transitionPickModel        transition = "pick_model"
	transitionForward          transition = "forward"
	transitionUnsupported      transition = "unsupported"
	transitionIssueNeedsText   transition = "issue_needs_text"
	transitionModelSelectNoise transition = "model_select_noise"
)

// features gates which interactions a surface variant supports.
type features struct {
	issueReporting bool
	modelSelector  bool
	attachments    bool
}

// controller is the per-user interaction state machine. It owns the session
// store exclusively; every event for a session is handled under that
// session's event lock, so same-user events apply in receipt order. The
// outbound path takes only the state lock, so a callback may send into the
// chat while its own event is still in flight.
type controller struct {
	cfg      config.ViewConfig
	feat     features
	sessions *session.Store
	enc      *encoder.Encoder
	issues   issue.Sink
	tx       channel.Transport
	callback Callback
	log      *slog.Logger
}

func newController(cfg config.ViewConfig, feat features, enc *encoder.Encoder, issues issue.Sink, tx channel.Transport, log *slog.Logger) *controller {
	if log == nil {
		log = slog.Default()
	}
	if issues == nil {
		issues = issue.NewLogSink(log)
	}

	return &controller{
		cfg:      cfg,
		feat:     feat,
		sessions: session.NewStore(cfg.HistoryLimit),
		enc:      enc,
		issues:   issues,
		tx:       tx,
		log:      log.With("component", "view.controller"),
	}
}

// OnMessage registers the orchestrator callback. It is invoked at most once
// per inbound event.
func (c *controller) OnMessage(callback Callback) {
	c.callback = callback
}

// HandleIncoming classifies the event, applies the state machine, and
// returns the replies to render. Internal failures never escape: they are
// logged and converted to a localized fallback reply.
func (c *controller) HandleIncoming(ctx context.Context, event bus.InboundEvent) (replies []bus.Reply, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("Panic while handling event", "chat_id", event.ChatID, "panic", r)
			replies = []bus.Reply{{Text: localizedText("error", event.LanguageCode), Markup: bus.MarkupMain}}
			err = nil
		}
	}()

	sess := c.sessions.Get(event.ChatID)
	sess.Lock()
	defer sess.Unlock()

	switch c.resolve(sess.Stage(), event) {
	case transitionStart:
		return c.handleStart(ctx, sess, event), nil
	case transitionDeleteHistory:
		return c.handleDeleteHistory(ctx, sess, event), nil
	case transitionOpenIssue:
		return c.handleOpenIssue(sess), nil
	case transitionSubmitIssue:
		return c.handleSubmitIssue(ctx, sess, event), nil
	case transitionIssueNeedsText:
		return []bus.Reply{{Text: textIssuePrompt, Markup: bus.MarkupMain}}, nil
	case transitionOpenModelSelect:
		return c.handleOpenModelSelect(sess), nil
	case transitionPickModel:
		return c.handlePickModel(sess, event), nil
	case transitionModelSelectNoise:
		// A stray callback for a variant without the selector; ignore it.
		return nil, nil
	case transitionUnsupported:
		return c.handleUnsupported(sess, event), nil
	default:
		return c.handleForward(ctx, sess, event), nil
	}
}

// resolve maps (current stage, event) to one transition. Commands and the
// callback channel win over stage; within a stage, button text wins over
// plain text.
func (c *controller) resolve(stage session.Stage, event bus.InboundEvent) transition {
	if event.Kind == bus.EventCommand {
		switch event.Command {
		case CommandStart:
			return transitionStart
		case CommandDeleteAllHistory:
			return transitionDeleteHistory
		default:
			return transitionUnsupported
		}
	}

	if event.Kind == bus.EventCallback {
		if c.feat.modelSelector && strings.HasPrefix(event.CallbackData, CallbackModelPrefix) {
			return transitionPickModel
		}
		return transitionModelSelectNoise
	}

	if event.Kind == bus.EventText {
		switch event.Text {
		case ButtonStartNewChat:
			return transitionStart
		case ButtonReportIssue:
			if c.feat.issueReporting {
				return transitionOpenIssue
			}
		case ButtonSelectModel:
			if c.feat.modelSelector {
				return transitionOpenModelSelect
			}
		}
	}

	if stage == session.StageAwaitingDescription {
		if event.Kind == bus.EventText {
			return transitionSubmitIssue
		}
		return transitionIssueNeedsText
	}

	switch event.Kind {
	case bus.EventText:
		return transitionForward
	case bus.EventPhoto, bus.EventDocument, bus.EventVoice, bus.EventAudio:
		if c.feat.attachments {
			return transitionForward
		}
		return transitionUnsupported
	default:
		return transitionUnsupported
	}
}

func (c *controller) handleStart(ctx context.Context, sess *session.Session, event bus.InboundEvent) []bus.Reply {
	sess.ResetForStart()
	c.forward(ctx, sess, event, c.commandMessage(bus.KindStartCommand, sess, event))

	welcome := c.cfg.Title
	if c.feat.modelSelector {
		welcome += "\n\n🤖 Model: " + c.currentModelName(sess)
	}
	sess.Append(session.RoleAssistant, welcome)

	return []bus.Reply{{Text: welcome, Markup: bus.MarkupMain}}
}

func (c *controller) handleDeleteHistory(ctx context.Context, sess *session.Session, event bus.InboundEvent) []bus.Reply {
	sess.ResetAll()
	c.forward(ctx, sess, event, c.commandMessage(bus.KindDeleteAllHistory, sess, event))

	return []bus.Reply{{Text: textHistoryCleared, Markup: bus.MarkupMain}}
}

func (c *controller) handleOpenIssue(sess *session.Session) []bus.Reply {
	sess.SetStage(session.StageAwaitingDescription)
	sess.Append(session.RoleAssistant, textIssuePrompt)

	return []bus.Reply{{Text: textIssuePrompt, Markup: bus.MarkupMain}}
}

// handleSubmitIssue consumes the text as the issue description. The
// snapshot is taken before anything is appended: the description is not a
// chat turn and is never forwarded to the orchestrator. The session returns
// to idle regardless of sink failures so the user is never trapped in the
// reporting flow.
func (c *controller) handleSubmitIssue(ctx context.Context, sess *session.Session, event bus.InboundEvent) []bus.Reply {
	snapshot := historySnapshot(sess.History())
	report := issue.NewReport(c.currentModelInfo(sess), snapshot, event.Text)

	sess.SetStage(session.StageIdle)

	if err := c.issues.Append(ctx, report); err != nil {
		c.log.Error("Failed to store issue report", "chat_id", event.ChatID, "report_id", report.ID, "error", err)
		return []bus.Reply{{Text: textIssueFailed, Markup: bus.MarkupMain}}
	}

	c.log.Info("Issue report submitted", "chat_id", event.ChatID, "report_id", report.ID, "history_turns", len(snapshot))
	sess.Append(session.RoleAssistant, textIssueThanks)

	return []bus.Reply{{Text: textIssueThanks, Markup: bus.MarkupMain}}
}

func (c *controller) handleOpenModelSelect(sess *session.Session) []bus.Reply {
	sess.SetStage(session.StageAwaitingModel)

	prompt := "Current model: " + c.currentModelName(sess) + textModelPromptTail
	sess.Append(session.RoleAssistant, prompt)

	return []bus.Reply{{Text: prompt, Markup: bus.MarkupModels}}
}

func (c *controller) handlePickModel(sess *session.Session, event bus.InboundEvent) []bus.Reply {
	id := strings.TrimPrefix(event.CallbackData, CallbackModelPrefix)
	model, ok := c.cfg.ModelByID(id)
	if !ok {
		c.log.Warn("Model selection for unknown id", "chat_id", event.ChatID, "model_id", id)
		sess.SetStage(session.StageIdle)
		return []bus.Reply{{Text: localizedText("error", event.LanguageCode), Markup: bus.MarkupMain}}
	}

	sess.SetModel(model.ID)
	sess.SetStage(session.StageIdle)
	c.log.Info("Model selected", "chat_id", event.ChatID, "model_id", model.ID)

	confirmation := fmt.Sprintf("✅ Model changed to: %s\n\nYour next messages will use this model.", model.Name)
	return []bus.Reply{{Text: confirmation, Markup: bus.MarkupMain}}
}

// handleUnsupported emits a local rejection reply. The rejected content is
// not a chat turn, so the history stays untouched.
func (c *controller) handleUnsupported(_ *session.Session, event bus.InboundEvent) []bus.Reply {
	key := "unsupported_content"
	if !c.feat.attachments {
		key = "unsupported_content_text_only"
	}

	return []bus.Reply{{Text: localizedText(key, event.LanguageCode), Markup: bus.MarkupMain}}
}

// handleForward builds the canonical message, appends the user turn to the
// history, and hands the message to the orchestrator. Encoder failures
// produce a local reply and leave session state untouched.
func (c *controller) handleForward(ctx context.Context, sess *session.Session, event bus.InboundEvent) []bus.Reply {
	msg, historyEntry, err := c.classify(ctx, event)
	if err != nil {
		return c.encodeFailureReply(event, err)
	}
	if msg == nil {
		return c.handleUnsupported(sess, event)
	}

	if model := sess.Model(); model != "" {
		msg.Settings = &bus.Settings{Model: model}
	}

	sess.Append(session.RoleUser, historyEntry)

	if !c.forward(ctx, sess, event, msg) {
		return []bus.Reply{{Text: localizedText("error", event.LanguageCode), Markup: bus.MarkupMain}}
	}

	return nil
}

// classify produces the canonical message for a forwardable event plus the
// text recorded in the history for it. A nil message with nil error means
// the content is unsupported.
func (c *controller) classify(ctx context.Context, event bus.InboundEvent) (*bus.Message, string, error) {
	base := bus.Message{
		ChatID:    event.ChatID,
		UserID:    event.SenderID,
		Username:  event.Username,
		Timestamp: event.Timestamp,
	}

	switch event.Kind {
	case bus.EventText:
		base.Kind = bus.KindText
		base.Text = &bus.TextPayload{Content: event.Text}
		return &base, event.Text, nil

	case bus.EventPhoto:
		if event.Attachment == nil {
			return nil, "", nil
		}
		payload, err := c.enc.EncodeImage(ctx, *event.Attachment, event.Caption)
		if err != nil {
			return nil, "", err
		}
		base.Kind = bus.KindImage
		base.Image = payload
		return &base, captionOr(event.Caption, "Image sent"), nil

	case bus.EventDocument:
		if event.Attachment == nil {
			return nil, "", nil
		}
		if !encoder.SupportedDocument(event.Attachment.MimeType) {
			return nil, "", nil
		}
		payload, err := c.enc.EncodeDocument(ctx, *event.Attachment, event.Caption)
		if err != nil {
			return nil, "", err
		}
		base.Kind = bus.KindDocument
		base.Document = payload
		return &base, captionOr(event.Caption, "Document sent: "+payload.FileName), nil

	case bus.EventVoice, bus.EventAudio:
		if event.Attachment == nil {
			return nil, "", nil
		}
		payload, err := c.enc.EncodeAudio(ctx, *event.Attachment, event.Caption)
		if err != nil {
			return nil, "", err
		}
		base.Kind = bus.KindAudio
		base.Audio = payload
		return &base, captionOr(event.Caption, "Audio message sent"), nil

	default:
		return nil, "", nil
	}
}

func (c *controller) encodeFailureReply(event bus.InboundEvent, err error) []bus.Reply {
	category := bus.CategoryFromError(err)
	c.log.Error("Failed to encode attachment", "chat_id", event.ChatID, "kind", event.Kind, "category", category, "error", err)

	key := "error"
	if category == bus.ErrorUnsupportedFormat || category == bus.ErrorUnsupportedContent {
		key = "unsupported_content"
	}

	return []bus.Reply{{Text: localizedText(key, event.LanguageCode), Markup: bus.MarkupMain}}
}

// forward invokes the registered orchestrator callback. A missing callback
// only logs; command messages must not fail the whole interaction.
func (c *controller) forward(ctx context.Context, _ *session.Session, event bus.InboundEvent, msg *bus.Message) bool {
	if c.callback == nil {
		c.log.Warn("No orchestrator callback registered", "chat_id", event.ChatID, "kind", msg.Kind)
		return true
	}

	if err := c.callback(ctx, *msg); err != nil {
		c.log.Error("Orchestrator callback failed", "chat_id", event.ChatID, "kind", msg.Kind, "error", err)
		return false
	}

	return true
}

// SendMessage renders orchestrator output back into the chat and records it
// as an assistant turn so issue reports capture the full conversation.
func (c *controller) SendMessage(ctx context.Context, chatID string, text string) error {
	if c.tx == nil {
		return bus.NewError(bus.ErrorTransportFailed, "no transport configured")
	}

	if err := c.tx.Send(ctx, chatID, bus.Reply{Text: text, Markup: bus.MarkupMain}); err != nil {
		return bus.WrapError(bus.ErrorTransportFailed, "send message", err)
	}

	// Append through the state lock only; the orchestrator may call this
	// synchronously from the callback while the triggering event still
	// holds the session's event-handling lock.
	c.sessions.Get(chatID).Append(session.RoleAssistant, text)

	return nil
}

func (c *controller) commandMessage(kind bus.MessageKind, sess *session.Session, event bus.InboundEvent) *bus.Message {
	msg := &bus.Message{
		Kind:      kind,
		ChatID:    event.ChatID,
		UserID:    event.SenderID,
		Username:  event.Username,
		Timestamp: event.Timestamp,
	}
	if model := sess.Model(); model != "" {
		msg.Settings = &bus.Settings{Model: model}
	}

	return msg
}

func (c *controller) currentModelInfo(sess *session.Session) issue.ModelInfo {
	if id := sess.Model(); id != "" {
		return issue.ModelInfo{ID: id, Source: issue.SourceUserSelected}
	}

	return issue.ModelInfo{ID: c.cfg.DefaultModel, Source: issue.SourceConfigDefault}
}

func (c *controller) currentModelName(sess *session.Session) string {
	if id := sess.Model(); id != "" {
		if model, ok := c.cfg.ModelByID(id); ok {
			return model.Name
		}
		return id
	}
	if c.cfg.DefaultModel != "" {
		return c.cfg.DefaultModel
	}

	return textDefaultModel
}

func historySnapshot(entries []session.Entry) []issue.HistoryEntry {
	if len(entries) == 0 {
		return nil
	}

	snapshot := make([]issue.HistoryEntry, len(entries))
	for i, entry := range entries {
		snapshot[i] = issue.HistoryEntry{Role: entry.Role, Content: entry.Content}
	}

	return snapshot
}

func captionOr(caption string, fallback string) string {
	if strings.TrimSpace(caption) != "" {
		return caption
	}

	return fallback
}
