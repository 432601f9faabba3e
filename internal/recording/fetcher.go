// Package recording downloads recorded call audio from the telephony
// provider: per-turn utterance recordings for transcription, and the
// side-channel full-call archive.
package recording

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// wavSuffix is appended to the provider's recording URL; the URL itself
// carries no extension.
const wavSuffix = ".wav"

// FetchError describes a recording download that did not complete. The
// callback that triggered the fetch must abort before any transcript
// mutation.
type FetchError struct {
	URL        string
	StatusCode int // zero on transport errors
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching recording %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetching recording %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher downloads recording artifacts with the provider's basic-auth
// credentials.
type Fetcher struct {
	client     *http.Client
	accountSID string
	authToken  string
	dir        string
	logger     *slog.Logger
}

// NewFetcher creates a Fetcher storing audio under dir.
func NewFetcher(accountSID, authToken, dir string, logger *slog.Logger) (*Fetcher, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating recording directory: %w", err)
	}
	return &Fetcher{
		client:     &http.Client{Timeout: 30 * time.Second},
		accountSID: accountSID,
		authToken:  authToken,
		dir:        dir,
		logger:     logger.With("component", "recording"),
	}, nil
}

// FetchTurn downloads one per-turn recording and returns the local path.
// The name derives from (callSID, recordingSID), so re-delivery of the same
// artifact reuses the already-downloaded file instead of fetching again.
func (f *Fetcher) FetchTurn(ctx context.Context, callSID, recordingSID, recordingURL string) (string, error) {
	name := fmt.Sprintf("%s_%s.wav", sanitize(callSID), sanitize(recordingSID))
	return f.fetch(ctx, recordingURL, filepath.Join(f.dir, name))
}

// Archive downloads the full-call recording delivered on the side channel.
func (f *Fetcher) Archive(ctx context.Context, callSID, recordingSID, recordingURL string) (string, error) {
	name := fmt.Sprintf("%s_full_%s.wav", sanitize(callSID), sanitize(recordingSID))
	return f.fetch(ctx, recordingURL, filepath.Join(f.dir, name))
}

func (f *Fetcher) fetch(ctx context.Context, recordingURL, path string) (string, error) {
	if _, err := os.Stat(path); err == nil {
		f.logger.Debug("recording already downloaded", "path", path)
		return path, nil
	}

	audioURL := recordingURL + wavSuffix
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return "", &FetchError{URL: audioURL, Err: err}
	}
	req.SetBasicAuth(f.accountSID, f.authToken)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &FetchError{URL: audioURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &FetchError{URL: audioURL, StatusCode: resp.StatusCode}
	}

	// Download to a temp file first so a torn write never leaves a partial
	// artifact under the final name.
	tmp, err := os.CreateTemp(f.dir, ".download-*")
	if err != nil {
		return "", &FetchError{URL: audioURL, Err: err}
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", &FetchError{URL: audioURL, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", &FetchError{URL: audioURL, Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", &FetchError{URL: audioURL, Err: err}
	}

	f.logger.Debug("recording downloaded", "path", path)
	return path, nil
}

// Cleanup removes a downloaded per-turn audio file. Best effort: the file
// may legitimately be absent, and a leftover file is not worth failing a
// callback over.
func (f *Fetcher) Cleanup(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		f.logger.Warn("failed to remove turn audio", "path", path, "error", err)
	}
}

func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, id)
}
