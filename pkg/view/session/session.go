// Package session holds per-user ephemeral interaction state: the selected
// model, the issue-report flow stage, and a bounded rolling chat history.
// Sessions live for the process lifetime and are created lazily on first
// interaction.
package session

import (
	"strings"
	"sync"
)

// Stage is the interaction state machine position for one session.
type Stage string

const (
	StageIdle                Stage = "idle"
	StageAwaitingModel       Stage = "awaiting_model"
	StageAwaitingDescription Stage = "awaiting_description"
)

// Role tags one history entry.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const defaultHistoryLimit = 50

// Entry is one (role, content) turn in the rolling history.
type Entry struct {
	Role    string
	Content string
}

// Session is the mutable state tracked for one user/chat key. Two locks
// with distinct jobs: handleMu serializes whole-event handling so same-user
// events apply in receipt order, while mu guards the state fields with
// short critical sections. Outbound sends append to the history through mu
// only, so an orchestrator callback may send into the same chat while its
// triggering event is still being handled.
type Session struct {
	handleMu sync.Mutex
	mu       sync.Mutex

	model        string
	stage        Stage
	history      []Entry
	historyLimit int
}

// Lock serializes event handling for this session. It is not taken by the
// state accessors; callers must Unlock when the event is done.
func (s *Session) Lock() { s.handleMu.Lock() }

// Unlock releases the event-handling lock.
func (s *Session) Unlock() { s.handleMu.Unlock() }

// Model returns the selected model id, or "" when the config default applies.
func (s *Session) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// SetModel records an explicit model preference.
func (s *Session) SetModel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = strings.TrimSpace(id)
}

// Stage returns the current interaction stage.
func (s *Session) Stage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// SetStage moves the session to a new interaction stage.
func (s *Session) SetStage(stage Stage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stage = stage
}

// Append adds one turn to the rolling history, evicting the oldest entry
// once the limit is reached. Blank roles or content are dropped.
func (s *Session) Append(role string, content string) {
	role = strings.TrimSpace(role)
	content = strings.TrimSpace(content)
	if role == "" || content == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, Entry{Role: role, Content: content})
	if limit := s.limit(); len(s.history) > limit {
		s.history = append(s.history[:0], s.history[len(s.history)-limit:]...)
	}
}

// History returns a copy of the rolling history.
func (s *Session) History() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.history) == 0 {
		return nil
	}

	out := make([]Entry, len(s.history))
	copy(out, s.history)
	return out
}

// ResetForStart clears history and the issue flow but keeps the model
// preference: /start is a soft reset of the conversation, not of settings.
func (s *Session) ResetForStart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
	s.stage = StageIdle
}

// ResetAll clears everything including the model preference.
func (s *Session) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
	s.stage = StageIdle
	s.model = ""
}

func (s *Session) limit() int {
	if s.historyLimit > 0 {
		return s.historyLimit
	}

	return defaultHistoryLimit
}

// Store keeps sessions keyed by user/chat id. There is no global lock across
// sessions; unrelated users never contend.
type Store struct {
	mu           sync.RWMutex
	sessions     map[string]*Session
	historyLimit int
}

// NewStore builds a session store with the given history limit per session.
func NewStore(historyLimit int) *Store {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}

	return &Store{
		sessions:     make(map[string]*Session),
		historyLimit: historyLimit,
	}
}

// Get returns the session for a key, lazily creating it. Double-checked so
// concurrent first interactions share one session.
func (st *Store) Get(key string) *Session {
	st.mu.RLock()
	s, ok := st.sessions[key]
	st.mu.RUnlock()
	if ok {
		return s
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if s, ok = st.sessions[key]; ok {
		return s
	}

	s = &Session{stage: StageIdle, historyLimit: st.historyLimit}
	st.sessions[key] = s
	return s
}
