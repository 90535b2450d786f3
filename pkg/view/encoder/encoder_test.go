package encoder

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"chatview/pkg/bus"
)

type fakeFetcher struct {
	url         string
	content     []byte
	resolveErr  error
	downloadErr error

	downloads int
}

func (f *fakeFetcher) ResolveURL(context.Context, string) (string, error) {
	return f.url, f.resolveErr
}

func (f *fakeFetcher) Download(context.Context, string) ([]byte, error) {
	f.downloads++
	return f.content, f.downloadErr
}

func TestEncodeImage(t *testing.T) {
	enc, err := New(&fakeFetcher{url: "https://files.example/photo.jpg"}, nil)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	payload, err := enc.EncodeImage(context.Background(), bus.AttachmentRef{FileID: "f1"}, "look at this")
	if err != nil {
		t.Fatalf("EncodeImage error: %v", err)
	}
	if payload.ImageURL != "https://files.example/photo.jpg" {
		t.Fatalf("image url = %q", payload.ImageURL)
	}
	if payload.Caption != "look at this" {
		t.Fatalf("caption = %q", payload.Caption)
	}
}

func TestEncodeImageResolveFailure(t *testing.T) {
	enc, _ := New(&fakeFetcher{resolveErr: errors.New("gone")}, nil)

	_, err := enc.EncodeImage(context.Background(), bus.AttachmentRef{FileID: "f1"}, "")
	if got := bus.CategoryFromError(err); got != bus.ErrorRetrievalFailed {
		t.Fatalf("category = %q, want %q", got, bus.ErrorRetrievalFailed)
	}
}

func TestEncodeDocument(t *testing.T) {
	content := []byte("%PDF-1.7 stub")
	enc, _ := New(&fakeFetcher{content: content}, nil)

	payload, err := enc.EncodeDocument(context.Background(), bus.AttachmentRef{FileID: "f1", FileName: "report.pdf", MimeType: "application/pdf"}, "q3")
	if err != nil {
		t.Fatalf("EncodeDocument error: %v", err)
	}
	if payload.FileBase64 != base64.StdEncoding.EncodeToString(content) {
		t.Fatal("document content not base64 of downloaded bytes")
	}
	if payload.MimeType != "application/pdf" || payload.FileName != "report.pdf" || payload.Caption != "q3" {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestEncodeDocumentUnsupportedMimeSkipsDownload(t *testing.T) {
	fetcher := &fakeFetcher{content: []byte("MZ")}
	enc, _ := New(fetcher, nil)

	_, err := enc.EncodeDocument(context.Background(), bus.AttachmentRef{FileID: "f1", FileName: "virus.exe", MimeType: "application/x-msdownload"}, "")
	if got := bus.CategoryFromError(err); got != bus.ErrorUnsupportedFormat {
		t.Fatalf("category = %q, want %q", got, bus.ErrorUnsupportedFormat)
	}
	if fetcher.downloads != 0 {
		t.Fatalf("downloads = %d, want 0", fetcher.downloads)
	}
}

func TestEncodeDocumentDownloadFailure(t *testing.T) {
	enc, _ := New(&fakeFetcher{downloadErr: errors.New("disconnected")}, nil)

	_, err := enc.EncodeDocument(context.Background(), bus.AttachmentRef{FileID: "f1", MimeType: "text/plain"}, "")
	if got := bus.CategoryFromError(err); got != bus.ErrorRetrievalFailed {
		t.Fatalf("category = %q, want %q", got, bus.ErrorRetrievalFailed)
	}
}

func TestEncodeAudioDefaultsMime(t *testing.T) {
	enc, _ := New(&fakeFetcher{content: []byte{0x4f, 0x67, 0x67}}, nil)

	payload, err := enc.EncodeAudio(context.Background(), bus.AttachmentRef{FileID: "f1"}, "")
	if err != nil {
		t.Fatalf("EncodeAudio error: %v", err)
	}
	if payload.MimeType != defaultAudioMime {
		t.Fatalf("mime = %q, want %q", payload.MimeType, defaultAudioMime)
	}
	if payload.AudioBase64 == "" {
		t.Fatal("expected base64 audio content")
	}
}

func TestSupportedDocument(t *testing.T) {
	for _, mime := range []string{
		"application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"text/plain",
		" TEXT/PLAIN ",
	} {
		if !SupportedDocument(mime) {
			t.Fatalf("SupportedDocument(%q) = false, want true", mime)
		}
	}

	if SupportedDocument("application/x-msdownload") {
		t.Fatal("SupportedDocument(exe) = true, want false")
	}
}
