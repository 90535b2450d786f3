// Package issue bundles a chat-history snapshot with a user-supplied
// description and hands it to a durable sink. Reports are not retained in
// memory after handoff.
package issue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Model source tags recorded with a report.
const (
	SourceUserSelected  = "user_selected"
	SourceConfigDefault = "config_default"
)

// ModelInfo records which model the session was using when the issue was
// reported, and how that model was chosen.
type ModelInfo struct {
	ID     string `json:"id"`
	Source string `json:"source"`
}

// HistoryEntry is one chat turn captured in the snapshot.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Report is one submitted issue. ID and Timestamp are assigned at
// construction.
type Report struct {
	ID          string         `json:"id"`
	Timestamp   time.Time      `json:"timestamp"`
	Model       ModelInfo      `json:"model"`
	History     []HistoryEntry `json:"history"`
	Description string         `json:"description"`
}

// NewReport assembles a report from the session snapshot.
func NewReport(model ModelInfo, history []HistoryEntry, description string) Report {
	return Report{
		ID:          uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		Model:       model,
		History:     history,
		Description: description,
	}
}

// FormatHistory renders the snapshot as "User:/AI:" lines for human review.
func FormatHistory(history []HistoryEntry) string {
	lines := make([]string, 0, len(history))
	for _, entry := range history {
		role := "AI"
		if entry.Role == "user" {
			role = "User"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", role, entry.Content))
	}

	return strings.Join(lines, "\n")
}

// Sink receives submitted reports. Implementations must be safe for
// concurrent use; the core does not retry failed appends.
type Sink interface {
	Append(ctx context.Context, report Report) error
}

// LogSink writes reports to the structured log only. It is the fallback
// when no durable backend is configured.
type LogSink struct {
	log *slog.Logger
}

// NewLogSink builds a log-only sink.
func NewLogSink(log *slog.Logger) *LogSink {
	if log == nil {
		log = slog.Default()
	}

	return &LogSink{log: log.With("component", "issue.log_sink")}
}

// Append logs the full report.
func (s *LogSink) Append(_ context.Context, report Report) error {
	s.log.Info("Issue report received",
		"report_id", report.ID,
		"model_id", report.Model.ID,
		"model_source", report.Model.Source,
		"history_turns", len(report.History),
		"description", report.Description,
	)
	s.log.Debug("Issue report thread", "report_id", report.ID, "thread", FormatHistory(report.History))
	return nil
}
