package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lava-submitter/internal/core"
)

// Archive keeps the console output of every attempt in its own file.
type Archive struct {
	BaseDir string
	now     func() time.Time
}

var _ core.LogArchive = (*Archive)(nil)

func NewArchive(baseDir string) *Archive {
	return &Archive{BaseDir: baseDir, now: time.Now}
}

// Create opens <name>_attempt<N>_<timestamp>.log for writing.
func (a *Archive) Create(name string, attempt int) (io.WriteCloser, string, error) {
	if err := os.MkdirAll(a.BaseDir, 0775); err != nil {
		return nil, "", err
	}

	timestamp := a.now().Format("20060102_150405")
	filename := fmt.Sprintf("%s_attempt%d_%s.log", sanitize(name), attempt, timestamp)
	path := filepath.Join(a.BaseDir, filename)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, "", err
	}
	return f, path, nil
}

// sanitize keeps the characters safe in a file name.
func sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "job"
	}
	return b.String()
}
