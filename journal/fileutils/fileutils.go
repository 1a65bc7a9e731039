package fileutils

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// SanitizeNewlines escapes line breaks so a value fits on one log line.
func SanitizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

// Truncate trims s and cuts it to max runes, marking the cut with "...".
func Truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

// WriteFileAtomicSameDir writes data plus a trailing newline to a temp file next to path,
// syncs it and renames it into place.
func WriteFileAtomicSameDir(path string, data []byte, mode fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp_journal_*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write([]byte("\n")); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// CreateFileExclusive writes data to path only if path does not exist yet.
// The content is staged in a temp file and hard-linked into place, so readers never see a
// partial file and two writers cannot both win. It returns an error wrapping fs.ErrExist
// when path is already taken.
func CreateFileExclusive(path string, data []byte, mode fs.FileMode) error {
	if path == "" {
		return errors.New("CreateFileExclusive: empty path")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("CreateFileExclusive: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp_artifact_*")
	if err != nil {
		return fmt.Errorf("CreateFileExclusive: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("CreateFileExclusive: chmod: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("CreateFileExclusive: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("CreateFileExclusive: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("CreateFileExclusive: close: %w", err)
	}

	if err := os.Link(tmpName, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("CreateFileExclusive: %s: %w", path, fs.ErrExist)
		}
		return fmt.Errorf("CreateFileExclusive: link: %w", err)
	}
	return nil
}

// WriteJSONLinesAtomic writes one JSON document per line.
func WriteJSONLinesAtomic[T any](path string, items []T) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, it := range items {
		if err := enc.Encode(it); err != nil {
			return fmt.Errorf("encode line %d: %w", i+1, err)
		}
	}
	out := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	if err := WriteFileAtomicSameDir(path, out, 0o644); err != nil {
		return fmt.Errorf("write jsonl: %w", err)
	}
	return nil
}
