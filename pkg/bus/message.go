package bus

import (
	"errors"
	"fmt"
)

// MessageKind is the variant tag of a canonical Message.
type MessageKind string

const (
	KindText             MessageKind = "text"
	KindImage            MessageKind = "image"
	KindDocument         MessageKind = "document"
	KindAudio            MessageKind = "audio"
	KindStartCommand     MessageKind = "start_command"
	KindDeleteAllHistory MessageKind = "delete_all_history"
)

// Settings carries per-message preferences resolved from the session.
type Settings struct {
	Model string `json:"model,omitempty"`
}

// TextPayload carries a plain text message.
type TextPayload struct {
	Content string `json:"content"`
}

// ImagePayload references the image by a transport-resolved URL.
// Downstream consumers fetch it on demand, which keeps the canonical
// message small.
type ImagePayload struct {
	ImageURL string `json:"image"`
	Caption  string `json:"caption,omitempty"`
}

// DocumentPayload embeds the document bytes as base64 so the message stays
// usable inside a replayed history snapshot without external hosting.
type DocumentPayload struct {
	FileBase64 string `json:"file"`
	MimeType   string `json:"mime_type"`
	FileName   string `json:"file_name"`
	Caption    string `json:"caption,omitempty"`
}

// AudioPayload embeds audio bytes as base64, same rationale as documents.
type AudioPayload struct {
	AudioBase64 string `json:"audio"`
	MimeType    string `json:"mime_type"`
	Caption     string `json:"caption,omitempty"`
}

// Message is the canonical, platform-independent unit handed to the
// orchestrator callback. Exactly one payload pointer is set, matching Kind;
// command kinds carry none. Messages are immutable after construction.
type Message struct {
	Kind      MessageKind      `json:"type"`
	ChatID    string           `json:"chat_id"`
	UserID    string           `json:"user_id"`
	Username  string           `json:"username,omitempty"`
	Timestamp int64            `json:"timestamp"`
	Settings  *Settings        `json:"settings,omitempty"`
	Text      *TextPayload     `json:"text,omitempty"`
	Image     *ImagePayload    `json:"image,omitempty"`
	Document  *DocumentPayload `json:"document,omitempty"`
	Audio     *AudioPayload    `json:"audio,omitempty"`
}

// Validate checks the one-payload-per-kind invariant.
func (m Message) Validate() error {
	if m.ChatID == "" {
		return errors.New("message chat_id is required")
	}

	populated := 0
	if m.Text != nil {
		populated++
	}
	if m.Image != nil {
		populated++
	}
	if m.Document != nil {
		populated++
	}
	if m.Audio != nil {
		populated++
	}

	switch m.Kind {
	case KindText:
		if m.Text == nil || populated != 1 {
			return fmt.Errorf("text message requires exactly the text payload, got %d payloads", populated)
		}
	case KindImage:
		if m.Image == nil || populated != 1 {
			return fmt.Errorf("image message requires exactly the image payload, got %d payloads", populated)
		}
	case KindDocument:
		if m.Document == nil || populated != 1 {
			return fmt.Errorf("document message requires exactly the document payload, got %d payloads", populated)
		}
	case KindAudio:
		if m.Audio == nil || populated != 1 {
			return fmt.Errorf("audio message requires exactly the audio payload, got %d payloads", populated)
		}
	case KindStartCommand, KindDeleteAllHistory:
		if populated != 0 {
			return fmt.Errorf("%s message carries no payload, got %d payloads", m.Kind, populated)
		}
	default:
		return fmt.Errorf("unknown message kind %q", m.Kind)
	}

	return nil
}
