package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/patientdial/patientdial/internal/call"
	"github.com/patientdial/patientdial/internal/database/models"
)

// handleVoice is the turn-cycle callback that drives the dialog. The
// greeting-capture round and normal turns share this endpoint; the state
// machine disambiguates them from the payload.
func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form payload", http.StatusBadRequest)
		return
	}
	callSID := r.PostFormValue("CallSid")
	if callSID == "" {
		http.Error(w, "missing CallSid", http.StatusBadRequest)
		return
	}
	ev := call.Event{
		CallSID:      callSID,
		RecordingURL: r.PostFormValue("RecordingUrl"),
		RecordingSID: r.PostFormValue("RecordingSid"),
	}
	logger := s.logger.With("call_sid", callSID)

	// A new call's first callback never carries a recording, so a
	// recording-bearing callback for an unknown SID is a late delivery for
	// a call that already concluded: acknowledge it without resurrecting
	// the session.
	var sess *call.Session
	if ev.RecordingURL == "" {
		sess = s.registry.GetOrCreate(callSID, s.scenarios.Pick)
	} else {
		var ok bool
		if sess, ok = s.registry.Get(callSID); !ok {
			logger.Debug("turn callback for concluded call")
			doc, err := hangupDoc()
			s.respondTwiML(w, doc, err)
			return
		}
	}
	sess.Lock()
	defer sess.Unlock()

	d := call.Decide(sess, ev, s.cfg.MaxTurns)

	if d.Action == call.ActionAwaitGreeting {
		logger.Info("awaiting greeting", "scenario", sess.Scenario)
		doc, err := s.recordOnlyDoc()
		s.respondTwiML(w, doc, err)
		return
	}

	if ev.RecordingURL != "" && !d.ProcessRecording {
		s.metrics.DuplicateRecordings.Inc()
		logger.Debug("duplicate recording delivery skipped", "recording_sid", ev.RecordingSID)
		// A redelivered turn callback must not generate a second patient
		// line; re-open the capture window instead. Termination retries
		// fall through so a failed flush can be retried.
		if d.Action == call.ActionTurn {
			doc, err := s.recordOnlyDoc()
			s.respondTwiML(w, doc, err)
			return
		}
	}

	if d.ProcessRecording {
		if ok := s.processRecording(r.Context(), w, sess, ev, logger); !ok {
			return
		}
	}

	if d.Action == call.ActionTerminate {
		// A retried termination callback (earlier flush failed) must not
		// stack farewell lines.
		if d.SayGoodbye && sess.LastLine() != call.RoleBot+": "+call.Goodbye {
			sess.Append(call.RoleBot, call.Goodbye)
		}
		s.finishSession(r.Context(), sess, "completed", logger)
		doc, err := goodbyeDoc(call.Goodbye)
		s.respondTwiML(w, doc, err)
		return
	}

	// Normal turn: hand the scenario and recent history to the generator.
	utterance, err := s.generator.NextUtterance(r.Context(), sess.Scenario, sess.Recent(s.cfg.HistoryLines))
	if err != nil {
		s.metrics.GenerationFailures.Inc()
		logger.Error("utterance generation failed", "error", err)
		// No fabricated line: apologize and hang up. The terminal status
		// callback will flush whatever transcript exists.
		doc, derr := goodbyeDoc(apologyLine)
		s.respondTwiML(w, doc, derr)
		return
	}

	sess.Append(call.RoleBot, utterance)
	sess.TurnCount++
	s.metrics.TurnsTotal.Inc()
	logger.Info("turn taken", "turn", sess.TurnCount, "utterance", utterance)

	doc, derr := s.speakAndRecordDoc(utterance)
	s.respondTwiML(w, doc, derr)
}

// processRecording fetches and transcribes the attached recording, then
// appends the agent line. On failure it aborts the callback with no session
// mutation and answers with a fresh capture window, so the call degrades to
// a missed agent line instead of crashing or corrupting state. Returns
// false when the callback is already answered.
func (s *Server) processRecording(ctx context.Context, w http.ResponseWriter, sess *call.Session, ev call.Event, logger *slog.Logger) bool {
	audioPath, err := s.fetcher.FetchTurn(ctx, ev.CallSID, ev.RecordingSID, ev.RecordingURL)
	if err != nil {
		s.metrics.FetchFailures.Inc()
		logger.Error("recording fetch failed", "recording_sid", ev.RecordingSID, "error", err)
		doc, derr := s.recordOnlyDoc()
		s.respondTwiML(w, doc, derr)
		return false
	}
	// Turn audio is transient; remove it whether or not transcription
	// succeeded. Only this callback created it, so only this callback
	// cleans it up.
	defer s.fetcher.Cleanup(audioPath)

	text, err := s.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		logger.Error("transcription failed", "recording_sid", ev.RecordingSID, "error", err)
		doc, derr := s.recordOnlyDoc()
		s.respondTwiML(w, doc, derr)
		return false
	}

	// Empty text is a valid result (silence); the agent line is appended
	// regardless.
	sess.Append(call.RoleAgent, text)
	sess.LastRecordingSID = ev.RecordingSID
	if !sess.GreetingCaptured {
		sess.GreetingCaptured = true
		logger.Info("greeting captured", "text", text)
	}
	return true
}

// handleCallStatus receives terminal call-status events. A session that is
// still unsaved is force-flushed so transcripts survive calls that end
// abnormally mid-dialog. Unknown call SIDs are a successful no-op.
func (s *Server) handleCallStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form payload", http.StatusBadRequest)
		return
	}
	callSID := r.PostFormValue("CallSid")
	status := r.PostFormValue("CallStatus")
	if callSID == "" || !call.IsTerminalStatus(status) {
		writeOK(w)
		return
	}
	logger := s.logger.With("call_sid", callSID, "call_status", status)

	sess, ok := s.registry.Get(callSID)
	if !ok {
		logger.Debug("status event for unknown call")
		writeOK(w)
		return
	}

	sess.Lock()
	defer sess.Unlock()

	d := call.DecideStatus(sess)
	if d.Persist {
		logger.Info("flushing session on terminal status", "turns", sess.TurnCount)
	}
	s.finishSession(r.Context(), sess, status, logger)
	writeOK(w)
}

// handleCallRecording archives the full raw call recording delivered on the
// side channel. It never touches transcript state; an unknown call SID
// means the call already concluded and is a no-op success.
func (s *Server) handleCallRecording(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form payload", http.StatusBadRequest)
		return
	}
	callSID := r.PostFormValue("CallSid")
	recordingURL := r.PostFormValue("RecordingUrl")
	recordingSID := r.PostFormValue("RecordingSid")
	logger := s.logger.With("call_sid", callSID)

	if _, ok := s.registry.Get(callSID); !ok {
		logger.Debug("full recording for unknown call, skipping")
		writeOK(w)
		return
	}
	if recordingURL == "" {
		writeOK(w)
		return
	}

	path, err := s.fetcher.Archive(r.Context(), callSID, recordingSID, recordingURL)
	if err != nil {
		s.metrics.FetchFailures.Inc()
		logger.Error("call recording archive failed", "error", err)
		writeOK(w)
		return
	}
	logger.Info("call recording archived", "path", path)
	writeOK(w)
}

// finishSession flushes the transcript, records the call, and removes the
// session from the registry. When the transcript write fails, the session
// is left in place unsaved so a later terminal-status event can retry the
// flush.
func (s *Server) finishSession(ctx context.Context, sess *call.Session, disposition string, logger *slog.Logger) {
	if !sess.Saved {
		sess.EnsureHeader()
		path, err := s.transcripts.Write(sess.CallSID, sess.Lines)
		if err != nil {
			logger.Error("transcript save failed", "error", err)
			return
		}
		sess.Saved = true
		s.metrics.TranscriptsSaved.Inc()
		logger.Info("transcript saved", "path", path, "lines", len(sess.Lines), "turns", sess.TurnCount)

		s.recordCall(ctx, sess, disposition, path, logger)
	}
	s.registry.Remove(sess.CallSID)
}

// recordCall inserts the operational call record. Best effort: a database
// failure never blocks transcript persistence or session teardown.
func (s *Server) recordCall(ctx context.Context, sess *call.Session, disposition, transcriptPath string, logger *slog.Logger) {
	if s.records == nil {
		return
	}
	rec := &models.CallRecord{
		CallSID:        sess.CallSID,
		Scenario:       sess.Scenario,
		StartedAt:      sess.StartedAt.UTC(),
		EndedAt:        time.Now().UTC(),
		Turns:          sess.TurnCount,
		Disposition:    disposition,
		TranscriptPath: transcriptPath,
	}
	if err := s.records.Create(ctx, rec); err != nil {
		logger.Warn("call record insert failed", "error", err)
	}
}
