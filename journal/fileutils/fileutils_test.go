package fileutils

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCreateFileExclusive(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dst := filepath.Join(dir, "out", "note.md")

	if err := CreateFileExclusive(dst, []byte("first"), 0o644); err != nil {
		t.Fatalf("first create: %v", err)
	}
	b, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read dst: %v", err)
	}
	if string(b) != "first" {
		t.Fatalf("dst=%q", string(b))
	}

	err = CreateFileExclusive(dst, []byte("second"), 0o644)
	if !errors.Is(err, fs.ErrExist) {
		t.Fatalf("second create err=%v, want fs.ErrExist", err)
	}
	b, _ = os.ReadFile(dst)
	if string(b) != "first" {
		t.Fatalf("dst changed unexpectedly: %q", string(b))
	}

	entries, err := os.ReadDir(filepath.Dir(dst))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries=%d, want 1 (temp files must be cleaned up)", len(entries))
	}
}

func TestWriteFileAtomicSameDirReplaces(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "checkpoint.json")
	if err := WriteFileAtomicSameDir(path, []byte("{}"), 0o644); err != nil {
		t.Fatalf("write 1: %v", err)
	}
	if err := WriteFileAtomicSameDir(path, []byte(`{"a":1}`), 0o644); err != nil {
		t.Fatalf("write 2: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "{\"a\":1}\n" {
		t.Fatalf("content=%q", string(b))
	}
}

func TestWriteJSONLinesAtomic(t *testing.T) {
	t.Parallel()

	type row struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	}
	path := filepath.Join(t.TempDir(), "requests.jsonl")
	if err := WriteJSONLinesAtomic(path, []row{{ID: "1", Text: "<a>"}, {ID: "2", Text: "b"}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(string(b), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines=%d, want 2: %q", len(lines), string(b))
	}
	if lines[0] != `{"id":"1","text":"<a>"}` {
		t.Fatalf("line 1=%q", lines[0])
	}
	if strings.HasSuffix(string(b), "\n") {
		t.Fatalf("trailing newline: %q", string(b))
	}
}

func TestWriteJSONLinesAtomicEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "requests.jsonl")
	if err := WriteJSONLinesAtomic(path, []int(nil)); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(b) != 0 {
		t.Fatalf("content=%q, want empty", string(b))
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	if got := Truncate("  short  ", 10); got != "short" {
		t.Fatalf("Truncate short=%q", got)
	}
	if got := Truncate("äöüäöü", 3); got != "äöü..." {
		t.Fatalf("Truncate runes=%q", got)
	}
	if got := Truncate("abc", 0); got != "abc" {
		t.Fatalf("Truncate max=0 %q", got)
	}
}

func TestSanitizeNewlines(t *testing.T) {
	t.Parallel()

	if got := SanitizeNewlines("a\r\nb\rc\nd"); got != `a\nb\nc\nd` {
		t.Fatalf("SanitizeNewlines=%q", got)
	}
}
