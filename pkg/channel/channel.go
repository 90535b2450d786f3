package channel

import (
	"context"

	"chatview/pkg/bus"
)

// Handler processes one inbound platform event and returns the replies to
// render back into the originating chat.
type Handler func(context.Context, bus.InboundEvent) ([]bus.Reply, error)

// Adapter bridges one external transport (for example Telegram) into the
// view. Run blocks until the context is canceled or the transport fails.
type Adapter interface {
	Name() string
	Run(context.Context, Handler) error
}

// Transport is the outbound half of an adapter: it renders a reply into a
// chat at any time, including proactive sends initiated by the orchestrator.
type Transport interface {
	Send(ctx context.Context, chatID string, reply bus.Reply) error
}
