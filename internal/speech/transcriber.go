// Package speech adapts downloaded call audio to text via the OpenAI audio
// transcription API. Silence or noise transcribing to an empty string is a
// valid result, not an error.
package speech

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Transcriber transcribes local WAV files.
type Transcriber struct {
	client  openai.Client
	model   openai.AudioModel
	timeout time.Duration
}

// NewTranscriber creates a Transcriber. baseURL may be empty to use the
// default OpenAI endpoint.
func NewTranscriber(apiKey, baseURL string, timeout time.Duration) *Transcriber {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Transcriber{
		client:  openai.NewClient(opts...),
		model:   openai.AudioModelWhisper1,
		timeout: timeout,
	}
}

// Transcribe converts the audio file at path to text. The request carries
// its own timeout so a hung capability cannot stall the call's response
// deadline.
func (t *Transcriber) Transcribe(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening audio %s: %w", path, err)
	}
	defer f.Close()

	resp, err := t.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model: t.model,
		File:  f,
	})
	if err != nil {
		return "", fmt.Errorf("transcribing %s: %w", path, err)
	}

	return strings.TrimSpace(resp.Text), nil
}
