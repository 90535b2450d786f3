package session

import (
	"strconv"
	"sync"
	"testing"
	"time"
)

func TestAppendHistoryAndCopy(t *testing.T) {
	s := NewStore(10).Get("u1")
	s.Append(RoleUser, "hello")
	s.Append(RoleAssistant, "hi")
	s.Append("", "dropped")
	s.Append(RoleUser, "  ")

	history := s.History()
	if len(history) != 2 {
		t.Fatalf("len(history) = %d, want 2", len(history))
	}
	if history[0].Role != RoleUser || history[0].Content != "hello" {
		t.Fatalf("first entry = %+v", history[0])
	}

	history[0].Content = "mutated"
	if s.History()[0].Content != "hello" {
		t.Fatal("History() must return a copy")
	}
}

func TestHistoryEvictsOldestFirst(t *testing.T) {
	s := NewStore(3).Get("u1")
	for i := 0; i < 5; i++ {
		s.Append(RoleUser, "msg-"+strconv.Itoa(i))
	}

	history := s.History()
	if len(history) != 3 {
		t.Fatalf("len(history) = %d, want 3", len(history))
	}
	if history[0].Content != "msg-2" || history[2].Content != "msg-4" {
		t.Fatalf("history = %+v, want msg-2..msg-4", history)
	}
}

func TestResetForStartKeepsModel(t *testing.T) {
	s := NewStore(10).Get("u1")
	s.SetModel("gpt-4o")
	s.SetStage(StageAwaitingDescription)
	s.Append(RoleUser, "hello")

	s.ResetForStart()

	if s.Model() != "gpt-4o" {
		t.Fatalf("model = %q, want preserved", s.Model())
	}
	if s.Stage() != StageIdle {
		t.Fatalf("stage = %q, want idle", s.Stage())
	}
	if len(s.History()) != 0 {
		t.Fatal("expected empty history after start reset")
	}
}

func TestResetAllClearsModel(t *testing.T) {
	s := NewStore(10).Get("u1")
	s.SetModel("gpt-4o")
	s.Append(RoleUser, "hello")

	s.ResetAll()
	if s.Model() != "" {
		t.Fatalf("model = %q, want cleared", s.Model())
	}
	if len(s.History()) != 0 {
		t.Fatal("expected empty history")
	}

	// Resetting an already-empty session is a no-op, not an error.
	s.ResetAll()
	if len(s.History()) != 0 {
		t.Fatal("expected empty history after second reset")
	}
}

func TestStateAccessDuringEventHandling(t *testing.T) {
	s := NewStore(10).Get("u1")
	s.Lock()
	defer s.Unlock()

	// Outbound sends append through the state lock only; holding the
	// event-handling lock must not block them.
	done := make(chan struct{})
	go func() {
		s.Append(RoleAssistant, "proactive")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Append blocked while the event-handling lock was held")
	}

	if history := s.History(); len(history) != 1 || history[0].Content != "proactive" {
		t.Fatalf("history = %+v", history)
	}
}

func TestStoreLazyInitSharesSession(t *testing.T) {
	store := NewStore(10)

	const n = 32
	sessions := make([]*Session, n)

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			sessions[i] = store.Get("same-key")
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if sessions[i] != sessions[0] {
			t.Fatal("concurrent Get returned distinct sessions for one key")
		}
	}

	if store.Get("other") == sessions[0] {
		t.Fatal("distinct keys must get distinct sessions")
	}
}

func TestStoreSeparateKeysIndependent(t *testing.T) {
	store := NewStore(10)
	a := store.Get("a")
	b := store.Get("b")

	a.SetModel("m1")
	if b.Model() != "" {
		t.Fatal("sessions must not share model state")
	}
}
