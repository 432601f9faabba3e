package recording

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFetchTurnDownloadsWithAuth(t *testing.T) {
	var gotPath, gotUser, gotPass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		w.Write([]byte("RIFFfakewav"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	f, err := NewFetcher("ACxxx", "secret", dir, discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	path, err := f.FetchTurn(context.Background(), "CA1", "RE1", srv.URL+"/rec/RE1")
	if err != nil {
		t.Fatalf("FetchTurn() error: %v", err)
	}

	if gotPath != "/rec/RE1.wav" {
		t.Errorf("requested path = %q, want /rec/RE1.wav", gotPath)
	}
	if gotUser != "ACxxx" || gotPass != "secret" {
		t.Errorf("basic auth = %q/%q", gotUser, gotPass)
	}
	if want := filepath.Join(dir, "CA1_RE1.wav"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "RIFFfakewav" {
		t.Errorf("content = %q", data)
	}
}

func TestFetchTurnIdempotent(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("audio"))
	}))
	defer srv.Close()

	f, err := NewFetcher("AC", "tok", t.TempDir(), discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	first, err := f.FetchTurn(ctx, "CA1", "RE1", srv.URL+"/r/RE1")
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.FetchTurn(ctx, "CA1", "RE1", srv.URL+"/r/RE1")
	if err != nil {
		t.Fatal(err)
	}

	if first != second {
		t.Errorf("paths differ: %q vs %q", first, second)
	}
	if hits != 1 {
		t.Errorf("server hit %d times, want 1", hits)
	}
}

func TestFetchTurnNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	f, err := NewFetcher("AC", "tok", dir, discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.FetchTurn(context.Background(), "CA1", "RE404", srv.URL+"/r/RE404")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want *FetchError", err)
	}
	if fe.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", fe.StatusCode)
	}

	// No partial artifact may remain.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("directory not empty after failed fetch: %v", entries)
	}
}

func TestFetchTurnTransportError(t *testing.T) {
	f, err := NewFetcher("AC", "tok", t.TempDir(), discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.FetchTurn(context.Background(), "CA1", "RE1", "http://127.0.0.1:1/rec")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want *FetchError", err)
	}
	if fe.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0 for transport error", fe.StatusCode)
	}
}

func TestArchiveUsesDistinctName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("full call"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	f, err := NewFetcher("AC", "tok", dir, discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	path, err := f.Archive(context.Background(), "CA1", "RE1", srv.URL+"/r/RE1")
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "CA1_full_RE1.wav"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
}

func TestCleanupBestEffort(t *testing.T) {
	f, err := NewFetcher("AC", "tok", t.TempDir(), discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	// Absent file and empty path must both be silent no-ops.
	f.Cleanup(filepath.Join(t.TempDir(), "never-created.wav"))
	f.Cleanup("")

	path := filepath.Join(t.TempDir(), "turn.wav")
	if err := os.WriteFile(path, []byte("x"), 0640); err != nil {
		t.Fatal(err)
	}
	f.Cleanup(path)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Cleanup left the file behind")
	}
}
