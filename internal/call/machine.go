package call

// Event is the decision-relevant slice of one inbound provider callback.
type Event struct {
	CallSID      string
	RecordingURL string // empty when no recording is attached
	RecordingSID string
	CallStatus   string
}

// Action classifies what the dispatcher must do for one callback.
type Action int

const (
	// ActionAwaitGreeting responds with a silent record-only document so the
	// agent's opening line can be captured without the patient speaking
	// over it. No session mutation.
	ActionAwaitGreeting Action = iota

	// ActionTurn runs one dialog turn: optionally process the attached
	// recording, then generate and speak the next patient line.
	ActionTurn

	// ActionTerminate wraps up the call: optionally process the attached
	// recording, speak the farewell, flush the transcript, and drop the
	// session from the registry.
	ActionTerminate
)

// Decision is the pure outcome of evaluating a session against one callback.
// The dispatcher executes the side effects it names, in order: fetch and
// transcribe the recording, then either a turn or termination.
type Decision struct {
	Action Action

	// ProcessRecording is true when a recording is attached and is not a
	// duplicate delivery of the last processed artifact.
	ProcessRecording bool

	// SayGoodbye is true on the max-turns termination path; the farewell
	// line is appended and spoken. Status-triggered termination leaves it
	// false since the call already ended.
	SayGoodbye bool

	// Persist is true when the transcript has not been saved yet. The Saved
	// flag makes a second persistence attempt structurally impossible.
	Persist bool
}

// Decide evaluates one turn-cycle callback against the session. It is pure:
// no I/O, no mutation. The caller must hold the session lock so the view is
// consistent with the mutations it will apply.
//
// The greeting-capture callback and a normal turn callback share the same
// entrypoint; they are disambiguated solely by the presence of a recording
// reference and the GreetingCaptured flag.
func Decide(s *Session, ev Event, maxTurns int) Decision {
	hasRecording := ev.RecordingURL != ""
	duplicate := hasRecording && ev.RecordingSID != "" && ev.RecordingSID == s.LastRecordingSID
	process := hasRecording && !duplicate

	if !s.GreetingCaptured && !hasRecording {
		return Decision{Action: ActionAwaitGreeting}
	}

	if s.TurnCount >= maxTurns {
		return Decision{
			Action:           ActionTerminate,
			ProcessRecording: process,
			SayGoodbye:       true,
			Persist:          !s.Saved,
		}
	}

	return Decision{Action: ActionTurn, ProcessRecording: process}
}

// DecideStatus evaluates a terminal call-status event. The session still
// exists, so the transcript must be flushed even though the turn budget was
// not reached — this is what keeps transcripts from being lost when a call
// ends abnormally mid-dialog. No goodbye line: the call is already gone.
// The caller must hold the session lock.
func DecideStatus(s *Session) Decision {
	return Decision{
		Action:  ActionTerminate,
		Persist: !s.Saved,
	}
}

// IsTerminalStatus reports whether a provider call-status value ends the
// call. These match the status callback events requested when the outbound
// call is created.
func IsTerminalStatus(status string) bool {
	switch status {
	case "completed", "busy", "failed", "no-answer":
		return true
	}
	return false
}
