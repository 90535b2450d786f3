package bus

import "testing"

func TestValidateExactlyOnePayload(t *testing.T) {
	msg := Message{Kind: KindText, ChatID: "1", Text: &TextPayload{Content: "hi"}}
	if err := msg.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}

	msg.Image = &ImagePayload{ImageURL: "https://example.com/a.jpg"}
	if err := msg.Validate(); err == nil {
		t.Fatal("expected error with two payloads")
	}
}

func TestValidatePayloadMatchesKind(t *testing.T) {
	cases := []struct {
		name string
		msg  Message
		ok   bool
	}{
		{"image", Message{Kind: KindImage, ChatID: "1", Image: &ImagePayload{ImageURL: "u"}}, true},
		{"image missing payload", Message{Kind: KindImage, ChatID: "1"}, false},
		{"document", Message{Kind: KindDocument, ChatID: "1", Document: &DocumentPayload{FileBase64: "AA==", MimeType: "application/pdf", FileName: "a.pdf"}}, true},
		{"audio", Message{Kind: KindAudio, ChatID: "1", Audio: &AudioPayload{AudioBase64: "AA==", MimeType: "audio/ogg"}}, true},
		{"text with wrong payload", Message{Kind: KindText, ChatID: "1", Audio: &AudioPayload{AudioBase64: "AA=="}}, false},
		{"unknown kind", Message{Kind: "video", ChatID: "1"}, false},
		{"missing chat id", Message{Kind: KindText, Text: &TextPayload{Content: "x"}}, false},
	}

	for _, tc := range cases {
		err := tc.msg.Validate()
		if tc.ok && err != nil {
			t.Fatalf("%s: Validate() = %v, want nil", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%s: Validate() = nil, want error", tc.name)
		}
	}
}

func TestValidateCommandsCarryNoPayload(t *testing.T) {
	start := Message{Kind: KindStartCommand, ChatID: "1"}
	if err := start.Validate(); err != nil {
		t.Fatalf("start Validate() = %v, want nil", err)
	}

	reset := Message{Kind: KindDeleteAllHistory, ChatID: "1", Text: &TextPayload{Content: "x"}}
	if err := reset.Validate(); err == nil {
		t.Fatal("expected error for command with payload")
	}
}
