// Package call holds the per-call session state, the concurrency-safe
// session registry, and the pure decision logic that drives one simulated
// patient call from greeting capture through termination.
package call

import (
	"fmt"
	"sync"
	"time"
)

// Transcript line roles.
const (
	RoleScenario = "SCENARIO"
	RoleBot      = "BOT"
	RoleAgent    = "AGENT"
)

// Goodbye is the farewell line spoken when the turn budget is exhausted.
const Goodbye = "Thanks for your help. Goodbye."

// Session is the full state of one in-progress simulated call, keyed by the
// provider-assigned call SID. All fields are guarded by the session mutex;
// callers lock the session for the duration of one callback's processing so
// work for a single call is serialized while distinct calls proceed in
// parallel.
type Session struct {
	mu sync.Mutex

	CallSID   string
	Scenario  string // immutable after creation
	StartedAt time.Time

	TurnCount        int      // patient lines spoken so far
	Lines            []string // append-only "ROLE: text" entries
	GreetingCaptured bool
	LastRecordingSID string // rejects duplicate delivery of one artifact
	Saved            bool   // transcript persisted; guards the write-once save
}

// Lock acquires the session mutex.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session mutex.
func (s *Session) Unlock() { s.mu.Unlock() }

// Append adds one "ROLE: text" line to the transcript. Empty text is valid;
// a silent recording still produces an agent line.
func (s *Session) Append(role, text string) {
	s.Lines = append(s.Lines, fmt.Sprintf("%s: %s", role, text))
}

// EnsureHeader inserts the scenario header at index 0 if it is not already
// present. Called exactly once on the termination path, before persistence.
func (s *Session) EnsureHeader() {
	header := fmt.Sprintf("%s: %s", RoleScenario, s.Scenario)
	if len(s.Lines) > 0 && s.Lines[0] == header {
		return
	}
	s.Lines = append([]string{header}, s.Lines...)
}

// LastLine returns the most recent transcript line, or "" when empty.
func (s *Session) LastLine() string {
	if len(s.Lines) == 0 {
		return ""
	}
	return s.Lines[len(s.Lines)-1]
}

// Recent returns a copy of the last n transcript lines. The copy keeps the
// generator from observing later appends.
func (s *Session) Recent(n int) []string {
	start := len(s.Lines) - n
	if start < 0 {
		start = 0
	}
	out := make([]string, len(s.Lines)-start)
	copy(out, s.Lines[start:])
	return out
}
