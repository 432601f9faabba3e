package api

import (
	"net/http"
	"strconv"

	"github.com/twilio/twilio-go/twiml"
)

// apologyLine is spoken when utterance generation fails mid-call. The turn
// is abandoned rather than continued with fabricated text.
const apologyLine = "I'm sorry, I'm having some trouble on my end. I'll call back later. Goodbye."

// recordOnlyDoc instructs the provider to silently capture spoken audio and
// call back to the voice endpoint: no bot speech, no beep, silence trimmed.
// Used for the greeting-capture window and to retry a failed capture. The
// trailing redirect covers recording windows that expire with no audio.
func (s *Server) recordOnlyDoc() (string, error) {
	return twiml.Voice([]twiml.Element{
		s.recordVerb(),
		&twiml.VoiceRedirect{Url: s.voiceAction(), Method: "POST"},
	})
}

// speakAndRecordDoc speaks the patient's line, then opens a new capture
// window for the agent's reply.
func (s *Server) speakAndRecordDoc(utterance string) (string, error) {
	return twiml.Voice([]twiml.Element{
		&twiml.VoiceSay{Message: utterance},
		s.recordVerb(),
		&twiml.VoiceRedirect{Url: s.voiceAction(), Method: "POST"},
	})
}

// hangupDoc ends the call with no speech. Used to acknowledge late
// callbacks for calls that already concluded.
func hangupDoc() (string, error) {
	return twiml.Voice([]twiml.Element{&twiml.VoiceHangup{}})
}

// goodbyeDoc speaks the farewell and ends the call.
func goodbyeDoc(farewell string) (string, error) {
	return twiml.Voice([]twiml.Element{
		&twiml.VoiceSay{Message: farewell},
		&twiml.VoiceHangup{},
	})
}

func (s *Server) recordVerb() *twiml.VoiceRecord {
	return &twiml.VoiceRecord{
		Action:    s.voiceAction(),
		Method:    "POST",
		MaxLength: strconv.Itoa(s.cfg.MaxRecordingSeconds),
		PlayBeep:  "false",
		Trim:      "trim-silence",
	}
}

// voiceAction is the callback target for record/redirect verbs. Relative
// URLs resolve against the current document, which keeps local testing
// working when no public base URL is configured.
func (s *Server) voiceAction() string {
	if s.cfg.PublicBaseURL == "" {
		return "/voice"
	}
	return s.cfg.VoiceURL()
}

// respondTwiML writes the document, or a 500 if building it failed. A build
// failure means a malformed verb, which is a programming error.
func (s *Server) respondTwiML(w http.ResponseWriter, doc string, err error) {
	if err != nil {
		s.logger.Error("building twiml response", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeTwiML(w, doc)
}
