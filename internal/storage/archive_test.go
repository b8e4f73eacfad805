package storage

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestArchiveCreate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	a := NewArchive(dir)
	a.now = func() time.Time { return time.Date(2022, 5, 16, 10, 0, 0, 0, time.UTC) }

	w, path, err := a.Create("mesa ci/job", 2)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if want := filepath.Join(dir, "mesacijob_attempt2_20220516_100000.log"); path != want {
		t.Errorf("path = %s, want %s", path, want)
	}
	io.WriteString(w, "hwci: mesa: pass\n")
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hwci: mesa: pass\n" {
		t.Errorf("archived %q", data)
	}
}

func TestSanitize(t *testing.T) {
	tests := map[string]string{
		"deqp-runner": "deqp-runner",
		"a b/c":       "abc",
		"../..":       "job",
		"":            "job",
	}
	for in, want := range tests {
		if got := sanitize(in); got != want {
			t.Errorf("sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}
