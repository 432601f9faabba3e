// Package models defines the database row types.
package models

import "time"

// CallRecord is the operational record of one finished call session.
// Disposition is "completed" for calls that ran to the turn budget, or the
// provider's terminal status (busy, failed, no-answer, completed) for calls
// flushed by a status event.
type CallRecord struct {
	ID             int64
	CallSID        string
	Scenario       string
	StartedAt      time.Time
	EndedAt        time.Time
	Turns          int
	Disposition    string
	TranscriptPath string
}
