package issue

import (
	"context"
	"path/filepath"
	"testing"
)

func TestNewReportAssignsIDAndTimestamp(t *testing.T) {
	report := NewReport(ModelInfo{ID: "gpt-4o", Source: SourceUserSelected}, nil, "broken reply")

	if report.ID == "" {
		t.Fatal("expected report id")
	}
	if report.Timestamp.IsZero() {
		t.Fatal("expected timestamp")
	}
	if report.Description != "broken reply" {
		t.Fatalf("description = %q", report.Description)
	}

	other := NewReport(ModelInfo{}, nil, "x")
	if other.ID == report.ID {
		t.Fatal("report ids must be unique")
	}
}

func TestFormatHistory(t *testing.T) {
	history := []HistoryEntry{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi there"},
	}

	got := FormatHistory(history)
	want := "User: hello\nAI: hi there"
	if got != want {
		t.Fatalf("FormatHistory = %q, want %q", got, want)
	}

	if FormatHistory(nil) != "" {
		t.Fatal("FormatHistory(nil) should be empty")
	}
}

func TestSQLiteSinkAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "issues.db")
	sink, err := OpenSQLiteSink(path, nil)
	if err != nil {
		t.Fatalf("OpenSQLiteSink error: %v", err)
	}
	t.Cleanup(func() { _ = sink.Close() })

	ctx := context.Background()
	report := NewReport(
		ModelInfo{ID: "gpt-4o", Source: SourceConfigDefault},
		[]HistoryEntry{{Role: "user", Content: "hello"}},
		"reply was cut off",
	)
	if err := sink.Append(ctx, report); err != nil {
		t.Fatalf("Append error: %v", err)
	}

	count, err := sink.Count(ctx)
	if err != nil {
		t.Fatalf("Count error: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestOpenSQLiteSinkRequiresPath(t *testing.T) {
	if _, err := OpenSQLiteSink("  ", nil); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestLogSinkAppend(t *testing.T) {
	sink := NewLogSink(nil)
	if err := sink.Append(context.Background(), NewReport(ModelInfo{}, nil, "x")); err != nil {
		t.Fatalf("Append error: %v", err)
	}
}
