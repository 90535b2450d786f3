// Package view is the user-facing adapter core: it classifies normalized
// platform events into canonical messages, runs the per-user interaction
// state machine, and routes orchestrator replies back to the originating
// chat.
package view

import (
	"context"
	"fmt"
	"log/slog"

	"chatview/pkg/bus"
	"chatview/pkg/channel"
	"chatview/pkg/config"
	"chatview/pkg/issue"
	"chatview/pkg/view/encoder"
)

// Callback receives each forwarded canonical message, at most once per
// inbound event, in receipt order per chat.
type Callback func(ctx context.Context, msg bus.Message) error

// Surface is the capability set exposed to the gateway and the
// orchestrator. Each interface variant is a concrete implementation.
type Surface interface {
	// HandleIncoming processes one inbound platform event. It satisfies
	// channel.Handler and never lets internal errors escape.
	HandleIncoming(ctx context.Context, event bus.InboundEvent) ([]bus.Reply, error)
	// SendMessage renders orchestrator text into a chat at any time,
	// including before any inbound message from that chat.
	SendMessage(ctx context.Context, chatID string, text string) error
	// OnMessage registers the orchestrator callback.
	OnMessage(Callback)
	// RequiresModelSelector reports whether the variant shows the model
	// selection button.
	RequiresModelSelector() bool
}

// Deps bundles the collaborators a surface needs.
type Deps struct {
	Encoder   *encoder.Encoder
	Issues    issue.Sink
	Transport channel.Transport
	Log       *slog.Logger
}

// Tester is the full-featured interface variant: attachments, issue
// reporting, and (when configured) model selection.
type Tester struct {
	*controller
}

// NewTester builds the tester surface.
func NewTester(cfg config.ViewConfig, deps Deps) (*Tester, error) {
	if deps.Encoder == nil {
		return nil, fmt.Errorf("tester surface requires an encoder")
	}

	feat := features{
		issueReporting: true,
		modelSelector:  cfg.ShowModelSelector,
		attachments:    true,
	}

	return &Tester{newController(cfg, feat, deps.Encoder, deps.Issues, deps.Transport, deps.Log)}, nil
}

// RequiresModelSelector reports the configured selector flag.
func (t *Tester) RequiresModelSelector() bool {
	return t.cfg.ShowModelSelector
}

// Showcase is the reduced variant: text and start only. It omits the model
// selection and issue reporting transitions entirely.
type Showcase struct {
	*controller
}

// NewShowcase builds the showcase surface.
func NewShowcase(cfg config.ViewConfig, deps Deps) (*Showcase, error) {
	feat := features{}

	return &Showcase{newController(cfg, feat, deps.Encoder, deps.Issues, deps.Transport, deps.Log)}, nil
}

// RequiresModelSelector is always false for the showcase variant.
func (s *Showcase) RequiresModelSelector() bool {
	return false
}

// New builds the surface for the configured variant.
func New(cfg config.ViewConfig, deps Deps) (Surface, error) {
	switch cfg.Variant {
	case config.VariantShowcase:
		return NewShowcase(cfg, deps)
	case config.VariantTester, "":
		return NewTester(cfg, deps)
	default:
		return nil, fmt.Errorf("unsupported view variant %q", cfg.Variant)
	}
}
