package call

import "testing"

const testMaxTurns = 8

func TestDecideAwaitGreeting(t *testing.T) {
	s := &Session{CallSID: "CA1", Scenario: "refill"}

	d := Decide(s, Event{CallSID: "CA1"}, testMaxTurns)

	if d.Action != ActionAwaitGreeting {
		t.Fatalf("Action = %v, want ActionAwaitGreeting", d.Action)
	}
	if d.ProcessRecording {
		t.Error("ProcessRecording = true, want false")
	}
	if len(s.Lines) != 0 || s.TurnCount != 0 {
		t.Error("Decide mutated the session")
	}
}

func TestDecideFirstRecordingStartsTurn(t *testing.T) {
	s := &Session{CallSID: "CA1"}

	d := Decide(s, Event{
		CallSID:      "CA1",
		RecordingURL: "https://api.twilio.com/rec/RE1",
		RecordingSID: "RE1",
	}, testMaxTurns)

	if d.Action != ActionTurn {
		t.Fatalf("Action = %v, want ActionTurn", d.Action)
	}
	if !d.ProcessRecording {
		t.Error("ProcessRecording = false, want true")
	}
}

func TestDecideDuplicateRecordingSkipsProcessing(t *testing.T) {
	s := &Session{CallSID: "CA1", GreetingCaptured: true, LastRecordingSID: "RE1"}

	d := Decide(s, Event{
		CallSID:      "CA1",
		RecordingURL: "https://api.twilio.com/rec/RE1",
		RecordingSID: "RE1",
	}, testMaxTurns)

	if d.Action != ActionTurn {
		t.Fatalf("Action = %v, want ActionTurn", d.Action)
	}
	if d.ProcessRecording {
		t.Error("duplicate recording should not be reprocessed")
	}
}

func TestDecideRecordingDuringGreetingPhaseProcesses(t *testing.T) {
	// A recording attached while greeting is uncaptured must be processed,
	// not treated as another await-greeting round.
	s := &Session{CallSID: "CA1"}

	d := Decide(s, Event{CallSID: "CA1", RecordingURL: "https://x/RE9", RecordingSID: "RE9"}, testMaxTurns)

	if d.Action != ActionTurn || !d.ProcessRecording {
		t.Errorf("got %+v, want turn with recording processing", d)
	}
}

func TestDecideTerminatesAtMaxTurns(t *testing.T) {
	s := &Session{CallSID: "CA1", GreetingCaptured: true, TurnCount: testMaxTurns}

	d := Decide(s, Event{CallSID: "CA1", RecordingURL: "https://x/RE5", RecordingSID: "RE5"}, testMaxTurns)

	if d.Action != ActionTerminate {
		t.Fatalf("Action = %v, want ActionTerminate", d.Action)
	}
	if !d.SayGoodbye {
		t.Error("SayGoodbye = false, want true on the max-turns path")
	}
	if !d.ProcessRecording {
		t.Error("final agent recording should still be processed")
	}
	if !d.Persist {
		t.Error("Persist = false, want true for an unsaved session")
	}
}

func TestDecideTerminationWithoutRecording(t *testing.T) {
	// A termination callback that carries no recording must not plan a fetch.
	s := &Session{CallSID: "CA1", GreetingCaptured: true, TurnCount: testMaxTurns}

	d := Decide(s, Event{CallSID: "CA1"}, testMaxTurns)

	if d.Action != ActionTerminate {
		t.Fatalf("Action = %v, want ActionTerminate", d.Action)
	}
	if d.ProcessRecording {
		t.Error("no recording attached, nothing to process")
	}
}

func TestDecideSavedSessionSkipsPersist(t *testing.T) {
	s := &Session{CallSID: "CA1", GreetingCaptured: true, TurnCount: testMaxTurns, Saved: true}

	d := Decide(s, Event{CallSID: "CA1"}, testMaxTurns)

	if d.Persist {
		t.Error("Persist = true for an already-saved session")
	}
}

func TestDecideStatusFlushesUnsaved(t *testing.T) {
	s := &Session{CallSID: "CA1", TurnCount: 2}

	d := DecideStatus(s)

	if d.Action != ActionTerminate {
		t.Fatalf("Action = %v, want ActionTerminate", d.Action)
	}
	if d.SayGoodbye {
		t.Error("status-triggered termination must not add a goodbye line")
	}
	if !d.Persist {
		t.Error("Persist = false, want true")
	}

	s.Saved = true
	if DecideStatus(s).Persist {
		t.Error("Persist = true after save")
	}
}

func TestIsTerminalStatus(t *testing.T) {
	for _, status := range []string{"completed", "busy", "failed", "no-answer"} {
		if !IsTerminalStatus(status) {
			t.Errorf("IsTerminalStatus(%q) = false", status)
		}
	}
	for _, status := range []string{"ringing", "in-progress", "queued", ""} {
		if IsTerminalStatus(status) {
			t.Errorf("IsTerminalStatus(%q) = true", status)
		}
	}
}

func TestEnsureHeaderInsertedOnce(t *testing.T) {
	s := &Session{CallSID: "CA1", Scenario: "cough appointment"}
	s.Append(RoleAgent, "Doctor's office, how can I help?")
	s.Append(RoleBot, "Hi, I'd like to book an appointment.")

	s.EnsureHeader()
	s.EnsureHeader()

	if len(s.Lines) != 3 {
		t.Fatalf("len(Lines) = %d, want 3", len(s.Lines))
	}
	if s.Lines[0] != "SCENARIO: cough appointment" {
		t.Errorf("Lines[0] = %q", s.Lines[0])
	}
}

func TestAppendKeepsEmptyText(t *testing.T) {
	s := &Session{CallSID: "CA1"}
	s.Append(RoleAgent, "")
	if len(s.Lines) != 1 || s.Lines[0] != "AGENT: " {
		t.Errorf("Lines = %v, want one empty agent line", s.Lines)
	}
}

func TestRecentCapsAndCopies(t *testing.T) {
	s := &Session{CallSID: "CA1"}
	for i := 0; i < 5; i++ {
		s.Append(RoleBot, "line")
	}

	got := s.Recent(3)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}

	got[0] = "mutated"
	if s.Lines[2] == "mutated" {
		t.Error("Recent returned a view into the session's backing array")
	}

	if n := len(s.Recent(100)); n != 5 {
		t.Errorf("Recent(100) len = %d, want 5", n)
	}
}
