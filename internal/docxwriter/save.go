package docxwriter

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MaxSaveAttempts bounds the alternate names tried for a locked target.
const MaxSaveAttempts = 5

// ErrLocked is returned when every save attempt hit a permission error.
var ErrLocked = errors.New("output file is locked; close any program using it")

// Test hooks.
var (
	now    = time.Now
	rename = os.Rename
)

// SaveFile renders with write and stores the result at path. When the
// target cannot be replaced because of a permission error (typically the
// file is open in a word processor) it retries under
// "<name>_<unix seconds><ext>". It returns the path written. Nothing is
// left on disk when rendering fails.
func SaveFile(path string, write func(io.Writer) error) (string, error) {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return "", err
	}

	target := path
	for attempt := 0; attempt < MaxSaveAttempts; attempt++ {
		err := writeAtomic(target, buf.Bytes())
		if err == nil {
			return target, nil
		}
		if !errors.Is(err, fs.ErrPermission) {
			return "", err
		}
		target = alternateName(path, now())
	}
	return "", fmt.Errorf("%w: %s", ErrLocked, path)
}

// alternateName returns path with a timestamp before its extension.
func alternateName(path string, t time.Time) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	return fmt.Sprintf("%s_%d%s", stem, t.Unix(), ext)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".md2docx-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
