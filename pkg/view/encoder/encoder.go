// Package encoder converts raw platform attachments into canonical message
// payloads. Images resolve to a transport URL; documents and audio are
// embedded as base64 so they survive inclusion in replayed history
// snapshots.
package encoder

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"

	"chatview/pkg/bus"
)

const defaultAudioMime = "audio/ogg"

// supportedDocumentMimes is the fixed set of document types forwarded to
// the orchestrator.
var supportedDocumentMimes = map[string]struct{}{
	"application/pdf":    {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"text/plain": {},
}

// Fetcher retrieves attachment content from the transport. The channel
// adapter implements it; encode operations are the only suspension points
// in event handling.
type Fetcher interface {
	ResolveURL(ctx context.Context, fileID string) (string, error)
	Download(ctx context.Context, fileID string) ([]byte, error)
}

// Encoder turns attachment references into canonical payloads.
type Encoder struct {
	fetcher Fetcher
	log     *slog.Logger
}

// New constructs an Encoder over the given fetcher.
func New(fetcher Fetcher, log *slog.Logger) (*Encoder, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if log == nil {
		log = slog.Default()
	}

	return &Encoder{fetcher: fetcher, log: log.With("component", "view.encoder")}, nil
}

// SupportedDocument reports whether a document MIME type is forwardable.
func SupportedDocument(mimeType string) bool {
	_, ok := supportedDocumentMimes[strings.ToLower(strings.TrimSpace(mimeType))]
	return ok
}

// EncodeImage resolves a download URL for the photo and pairs it with the
// caption. The transport already picked the highest-resolution variant when
// it built the attachment ref.
func (e *Encoder) EncodeImage(ctx context.Context, ref bus.AttachmentRef, caption string) (*bus.ImagePayload, error) {
	url, err := e.fetcher.ResolveURL(ctx, ref.FileID)
	if err != nil {
		return nil, bus.WrapError(bus.ErrorRetrievalFailed, "resolve image url", err)
	}
	if strings.TrimSpace(url) == "" {
		return nil, bus.NewError(bus.ErrorRetrievalFailed, "transport returned empty image url")
	}

	e.log.Debug("Image url resolved", "file_id", ref.FileID)
	return &bus.ImagePayload{ImageURL: url, Caption: caption}, nil
}

// EncodeDocument downloads and base64-encodes a document. The MIME check
// happens before any download so unsupported files cost nothing.
func (e *Encoder) EncodeDocument(ctx context.Context, ref bus.AttachmentRef, caption string) (*bus.DocumentPayload, error) {
	mimeType := strings.TrimSpace(ref.MimeType)
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	if !SupportedDocument(mimeType) {
		return nil, bus.NewError(bus.ErrorUnsupportedFormat, "document mime type "+mimeType)
	}

	content, err := e.fetcher.Download(ctx, ref.FileID)
	if err != nil {
		return nil, bus.WrapError(bus.ErrorRetrievalFailed, "download document", err)
	}

	fileName := ref.FileName
	if strings.TrimSpace(fileName) == "" {
		fileName = "document"
	}

	e.log.Debug("Document encoded", "file_name", fileName, "mime_type", mimeType, "size_bytes", len(content))
	return &bus.DocumentPayload{
		FileBase64: base64.StdEncoding.EncodeToString(content),
		MimeType:   mimeType,
		FileName:   fileName,
		Caption:    caption,
	}, nil
}

// EncodeAudio downloads and base64-encodes voice or audio content. There is
// no format restriction beyond what the platform delivers.
func (e *Encoder) EncodeAudio(ctx context.Context, ref bus.AttachmentRef, caption string) (*bus.AudioPayload, error) {
	content, err := e.fetcher.Download(ctx, ref.FileID)
	if err != nil {
		return nil, bus.WrapError(bus.ErrorRetrievalFailed, "download audio", err)
	}

	mimeType := strings.TrimSpace(ref.MimeType)
	if mimeType == "" {
		mimeType = defaultAudioMime
	}

	e.log.Debug("Audio encoded", "mime_type", mimeType, "size_bytes", len(content))
	return &bus.AudioPayload{
		AudioBase64: base64.StdEncoding.EncodeToString(content),
		MimeType:    mimeType,
		Caption:     caption,
	}, nil
}
