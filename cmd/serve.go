package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"chatview/pkg/bus"
	"chatview/pkg/channel"
	"chatview/pkg/channel/telegram"
	"chatview/pkg/config"
	"chatview/pkg/gateway"
	"chatview/pkg/issue"
	"chatview/pkg/logger"
	"chatview/pkg/view"
	"chatview/pkg/view/encoder"

	"github.com/spf13/cobra"
)

var echoMode bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat view service",
	Long:  "Starts the Telegram channel, the interaction controller, and the status endpoints. Without an orchestrator attached, --echo answers every message with its own text.",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args

		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("failed to load config: %v\n", err)
			return
		}

		appLogger, err := logger.New(cfg.Logging)
		if err != nil {
			fmt.Printf("failed to initialize logger: %v\n", err)
			return
		}
		slog.SetDefault(appLogger)
		log := slog.Default().With("component", "cmd.serve")

		if !cfg.Channels.Telegram.Enabled {
			log.Error("No channels are enabled")
			return
		}

		adapter, err := telegram.NewAdapter(cfg.Channels.Telegram, cfg.View, log)
		if err != nil {
			log.Error("Failed to configure telegram channel", "error", err)
			return
		}

		enc, err := encoder.New(adapter, log)
		if err != nil {
			log.Error("Failed to initialize content encoder", "error", err)
			return
		}

		sink, closeSink, err := issueSink(cfg.Issues, log)
		if err != nil {
			log.Error("Failed to initialize issue sink", "error", err)
			return
		}
		if closeSink != nil {
			defer closeSink()
		}

		surface, err := view.New(cfg.View, view.Deps{
			Encoder:   enc,
			Issues:    sink,
			Transport: adapter,
			Log:       log,
		})
		if err != nil {
			log.Error("Failed to initialize view surface", "error", err)
			return
		}

		if echoMode {
			surface.OnMessage(echoCallback(surface, log))
		}

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, err := gateway.NewService(cfg, surface, []channel.Adapter{adapter}, log)
		if err != nil {
			log.Error("Failed to initialize gateway service", "error", err)
			return
		}

		log.Info("Service started", "variant", cfg.View.Variant, "channel", adapter.Name(), "echo", echoMode)
		if err := svc.Run(runCtx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Error("Service runtime failed", "error", err)
		}
	},
}

func init() {
	serveCmd.Flags().BoolVar(&echoMode, "echo", false, "answer every forwarded message with its own text")
	rootCmd.AddCommand(serveCmd)
}

func issueSink(cfg config.IssuesConfig, log *slog.Logger) (issue.Sink, func(), error) {
	if cfg.SQLitePath == "" {
		return issue.NewLogSink(log), nil, nil
	}

	sink, err := issue.OpenSQLiteSink(cfg.SQLitePath, log)
	if err != nil {
		return nil, nil, err
	}

	return sink, func() { _ = sink.Close() }, nil
}

// echoCallback is a stand-in orchestrator used for smoke testing the full
// message path without an orchestrator deployment.
func echoCallback(surface view.Surface, log *slog.Logger) view.Callback {
	return func(ctx context.Context, msg bus.Message) error {
		text := ""
		switch msg.Kind {
		case bus.KindText:
			text = "echo: " + msg.Text.Content
		case bus.KindImage:
			text = "echo: received an image"
		case bus.KindDocument:
			text = "echo: received " + msg.Document.FileName
		case bus.KindAudio:
			text = "echo: received an audio message"
		default:
			return nil
		}

		if err := surface.SendMessage(ctx, msg.ChatID, text); err != nil {
			log.Error("Echo send failed", "chat_id", msg.ChatID, "error", err)
			return err
		}

		return nil
	}
}
