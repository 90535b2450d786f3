package gateway

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"chatview/pkg/bus"
	"chatview/pkg/channel"
	"chatview/pkg/config"
	"chatview/pkg/view"
	"chatview/pkg/view/encoder"

	"github.com/stretchr/testify/require"
)

type staticFetcher struct{}

func (staticFetcher) ResolveURL(context.Context, string) (string, error) {
	return "https://files.example/file", nil
}

func (staticFetcher) Download(context.Context, string) ([]byte, error) {
	return []byte("payload"), nil
}

type recordingOrchestrator struct {
	mu       sync.Mutex
	messages []bus.Message
}

func (o *recordingOrchestrator) OnMessage(_ context.Context, msg bus.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, msg)
	return nil
}

func (o *recordingOrchestrator) snapshot() []bus.Message {
	o.mu.Lock()
	defer o.mu.Unlock()

	messages := make([]bus.Message, len(o.messages))
	copy(messages, o.messages)
	return messages
}

type scriptedAdapter struct {
	name    string
	inbound []bus.InboundEvent

	mu      sync.Mutex
	replies [][]bus.Reply
	done    chan struct{}
}

func (a *scriptedAdapter) Name() string {
	return a.name
}

func (a *scriptedAdapter) Run(ctx context.Context, handler channel.Handler) error {
	for _, event := range a.inbound {
		replies, err := handler(ctx, event)
		if err != nil {
			return err
		}

		a.mu.Lock()
		a.replies = append(a.replies, replies)
		a.mu.Unlock()
	}

	close(a.done)

	<-ctx.Done()
	return nil
}

func (a *scriptedAdapter) allReplies() [][]bus.Reply {
	a.mu.Lock()
	defer a.mu.Unlock()

	replies := make([][]bus.Reply, len(a.replies))
	copy(replies, a.replies)
	return replies
}

func freeTCPPort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	return listener.Addr().(*net.TCPAddr).Port
}

func TestGatewayServiceRunE2EScriptedAdapter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := &config.Config{
		View: config.ViewConfig{
			Variant:      config.VariantTester,
			Title:        "Welcome!",
			HistoryLimit: 20,
		},
		Gateway: config.GatewayConfig{
			Host: "127.0.0.1",
			Port: freeTCPPort(t),
		},
	}

	enc, err := encoder.New(staticFetcher{}, nil)
	require.NoError(t, err)

	surface, err := view.New(cfg.View, view.Deps{Encoder: enc})
	require.NoError(t, err)

	orchestrator := &recordingOrchestrator{}
	surface.OnMessage(orchestrator.OnMessage)

	adapter := &scriptedAdapter{
		name: "telegram",
		inbound: []bus.InboundEvent{
			{Channel: "telegram", ChatID: "100", SenderID: "100", Kind: bus.EventCommand, Command: "start"},
			{Channel: "telegram", ChatID: "100", SenderID: "100", Kind: bus.EventText, Text: "one"},
			{Channel: "telegram", ChatID: "200", SenderID: "200", Kind: bus.EventText, Text: "two"},
		},
		done: make(chan struct{}),
	}

	svc, err := NewService(cfg, surface, []channel.Adapter{adapter}, discardLogger())
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.Run(ctx)
	}()

	select {
	case <-adapter.done:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for adapter scripted events")
	}

	require.True(t, svc.isReady())

	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for service run to exit")
	}

	messages := orchestrator.snapshot()
	require.Len(t, messages, 3)
	require.Equal(t, bus.KindStartCommand, messages[0].Kind)
	require.Equal(t, "100", messages[0].ChatID)
	require.Equal(t, bus.KindText, messages[1].Kind)
	require.Equal(t, "one", messages[1].Text.Content)
	require.Equal(t, "200", messages[2].ChatID)
	require.Equal(t, "two", messages[2].Text.Content)

	replies := adapter.allReplies()
	require.Len(t, replies, 3)
	// The start command gets a welcome reply; forwarded texts get none.
	require.Len(t, replies[0], 1)
	require.Equal(t, bus.MarkupMain, replies[0][0].Markup)
	require.Empty(t, replies[1])
	require.Empty(t, replies[2])
}
