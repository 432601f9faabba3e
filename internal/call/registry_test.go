package call

import (
	"fmt"
	"sync"
	"testing"
)

func TestGetOrCreateInitialState(t *testing.T) {
	r := NewRegistry()

	s := r.GetOrCreate("CA1", func() string { return "refill" })

	if s.CallSID != "CA1" || s.Scenario != "refill" {
		t.Errorf("session = %+v", s)
	}
	if s.TurnCount != 0 || len(s.Lines) != 0 || s.GreetingCaptured || s.Saved {
		t.Error("new session is not zero-valued")
	}
}

func TestGetOrCreateReturnsExisting(t *testing.T) {
	r := NewRegistry()
	calls := 0
	fn := func() string { calls++; return "a" }

	first := r.GetOrCreate("CA1", fn)
	second := r.GetOrCreate("CA1", fn)

	if first != second {
		t.Error("GetOrCreate returned distinct sessions for one SID")
	}
	if calls != 1 {
		t.Errorf("scenario factory invoked %d times, want 1", calls)
	}
}

func TestGetAbsent(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Get("CA-missing"); ok {
		t.Error("Get returned ok for an absent SID")
	}
}

func TestRemove(t *testing.T) {
	r := NewRegistry()
	r.GetOrCreate("CA1", func() string { return "a" })

	r.Remove("CA1")
	if _, ok := r.Get("CA1"); ok {
		t.Error("session still present after Remove")
	}

	// Removing an absent SID is a no-op.
	r.Remove("CA1")
}

func TestConcurrentDistinctCalls(t *testing.T) {
	r := NewRegistry()
	const calls = 50
	const callbacksPerCall = 20

	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		sid := fmt.Sprintf("CA%03d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < callbacksPerCall; j++ {
				s := r.GetOrCreate(sid, func() string { return "scenario " + sid })
				s.Lock()
				s.Append(RoleAgent, fmt.Sprintf("line %d", j))
				s.Unlock()
			}
		}()
	}
	wg.Wait()

	if r.Len() != calls {
		t.Fatalf("Len() = %d, want %d", r.Len(), calls)
	}

	// Per-call append order must equal arrival order despite the
	// interleaved delivery across unrelated calls.
	for i := 0; i < calls; i++ {
		sid := fmt.Sprintf("CA%03d", i)
		s, ok := r.Get(sid)
		if !ok {
			t.Fatalf("session %s missing", sid)
		}
		if len(s.Lines) != callbacksPerCall {
			t.Fatalf("%s: %d lines, want %d", sid, len(s.Lines), callbacksPerCall)
		}
		for j, line := range s.Lines {
			want := fmt.Sprintf("AGENT: line %d", j)
			if line != want {
				t.Fatalf("%s: Lines[%d] = %q, want %q", sid, j, line, want)
			}
		}
	}
}

func TestConcurrentGetOrCreateSingleSession(t *testing.T) {
	r := NewRegistry()
	const n = 32

	results := make([]*Session, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.GetOrCreate("CA-race", func() string { return "s" })
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if results[i] != results[0] {
			t.Fatal("racing GetOrCreate produced more than one session")
		}
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}
