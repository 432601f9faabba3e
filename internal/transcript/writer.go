// Package transcript persists the finished conversation of one call as a
// plain-text artifact, one line per entry, written exactly once.
package transcript

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Writer writes one artifact per call session under its directory. The
// caller guarantees at most one write per session via the session's Saved
// flag; the writer's own duty is to never silently overwrite an existing
// artifact of the same name.
type Writer struct {
	dir     string
	nowFunc func() time.Time // injectable for testing
}

// NewWriter creates a Writer rooted at dir, creating the directory if
// needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating transcript directory: %w", err)
	}
	return &Writer{dir: dir, nowFunc: time.Now}, nil
}

// Write persists the ordered transcript lines for callSID and returns the
// artifact path. Names carry a UTC timestamp plus the call SID so repeated
// sessions never collide; if a name is somehow taken anyway, one retry with
// a random suffix keeps the existing artifact intact.
func (w *Writer) Write(callSID string, lines []string) (string, error) {
	stamp := w.nowFunc().UTC().Format("20060102T150405")
	name := fmt.Sprintf("%s_%s.txt", stamp, sanitize(callSID))

	path := filepath.Join(w.dir, name)
	err := writeExclusive(path, lines)
	if errors.Is(err, os.ErrExist) {
		name = fmt.Sprintf("%s_%s_%s.txt", stamp, sanitize(callSID), uuid.NewString()[:8])
		path = filepath.Join(w.dir, name)
		err = writeExclusive(path, lines)
	}
	if err != nil {
		return "", fmt.Errorf("writing transcript for %s: %w", callSID, err)
	}
	return path, nil
}

// writeExclusive creates the file, failing if it already exists.
func writeExclusive(path string, lines []string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0640)
	if err != nil {
		return err
	}

	if _, err := f.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// sanitize strips path-hostile characters from a provider identifier before
// it is used in a file name.
func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, id)
}
