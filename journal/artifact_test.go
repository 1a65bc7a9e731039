package journal

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestRenderArtifact(t *testing.T) {
	t.Parallel()

	if got, want := RenderArtifact("Body", "Work", nil), "Body\n\n---\n\n#Work\n"; got != want {
		t.Fatalf("no links: got %q, want %q", got, want)
	}
	got := RenderArtifact("Body", "Work", []string{"https://a", "https://b"})
	want := "Body\n\n---\n\n#Work\n\n## Links\n- https://a\n- https://b\n"
	if got != want {
		t.Fatalf("links: got %q, want %q", got, want)
	}
}

func TestArtifactWriterNeverOverwrites(t *testing.T) {
	t.Parallel()

	w := ArtifactWriter{Dir: filepath.Join(t.TempDir(), "notes")}
	req := Request{Title: "A/B", Category: "x"}

	if ok, err := w.Exists(req.Title); err != nil || ok {
		t.Fatalf("Exists before write: %v %v", ok, err)
	}
	path, err := w.Write(req, "first")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if filepath.Base(path) != "AB.md" {
		t.Fatalf("path=%s", path)
	}
	if ok, _ := w.Exists(req.Title); !ok {
		t.Fatalf("Exists after write=false")
	}

	if _, err := w.Write(req, "second"); !errors.Is(err, ErrArtifactExists) {
		t.Fatalf("second Write err=%v, want ErrArtifactExists", err)
	}
	b, _ := os.ReadFile(path)
	if string(b) != "first\n\n---\n\n#x\n" {
		t.Fatalf("content=%q", string(b))
	}
}

func TestDocumentSchema(t *testing.T) {
	t.Parallel()

	b, err := DocumentSchema()
	if err != nil {
		t.Fatalf("DocumentSchema: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	if m["type"] != "object" {
		t.Fatalf("type=%v", m["type"])
	}
	if _, ok := m["additionalProperties"]; !ok {
		t.Fatalf("schema has no additionalProperties for threads: %s", b)
	}
}
