package bus

// EventKind labels the declared content of one inbound platform event.
type EventKind string

const (
	EventText     EventKind = "text"
	EventPhoto    EventKind = "photo"
	EventDocument EventKind = "document"
	EventVoice    EventKind = "voice"
	EventAudio    EventKind = "audio"
	EventCommand  EventKind = "command"
	EventCallback EventKind = "callback"
	EventOther    EventKind = "other"
)

// AttachmentRef is an opaque transport handle for non-text content.
// The encoder resolves it through the channel adapter; nothing else
// interprets it.
type AttachmentRef struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// InboundEvent is one platform event normalized enough for classification.
// The channel adapter fills it from the raw transport update; it carries no
// transport types.
type InboundEvent struct {
	Channel      string         `json:"channel"`
	ChatID       string         `json:"chat_id"`
	SenderID     string         `json:"sender_id"`
	Username     string         `json:"username,omitempty"`
	FirstName    string         `json:"first_name,omitempty"`
	LanguageCode string         `json:"language_code,omitempty"`
	Timestamp    int64          `json:"timestamp"`
	Kind         EventKind      `json:"kind"`
	Text         string         `json:"text,omitempty"`
	Caption      string         `json:"caption,omitempty"`
	Command      string         `json:"command,omitempty"`
	CallbackData string         `json:"callback_data,omitempty"`
	Attachment   *AttachmentRef `json:"attachment,omitempty"`
}

// Markup selects which keyboard the channel adapter attaches to a reply.
type Markup string

const (
	MarkupNone   Markup = ""
	MarkupMain   Markup = "main"
	MarkupModels Markup = "models"
)

// Reply is one outgoing message emitted while handling an inbound event.
// The adapter renders Markup into platform keyboards.
type Reply struct {
	Text   string `json:"text"`
	Markup Markup `json:"markup,omitempty"`
}
