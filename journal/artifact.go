package journal

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/theimaginaryfoundation/journal-distiller/journal/fileutils"
)

// ErrArtifactExists is returned by ArtifactWriter.Write when the destination is already taken.
var ErrArtifactExists = errors.New("artifact already exists")

// ArtifactWriter persists generated notes as markdown files named after the thread title.
type ArtifactWriter struct {
	Dir string
}

// Path is where the artifact for title lives.
func (w ArtifactWriter) Path(title string) string {
	return filepath.Join(w.Dir, SanitizeFilename(title)+".md")
}

// Exists reports whether an artifact for title is already on disk.
func (w ArtifactWriter) Exists(title string) (bool, error) {
	_, err := os.Stat(w.Path(title))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("ArtifactWriter.Exists: %w", err)
}

// Write renders and stores the artifact for req. It never overwrites an existing file.
func (w ArtifactWriter) Write(req Request, body string) (string, error) {
	path := w.Path(req.Title)
	err := fileutils.CreateFileExclusive(path, []byte(RenderArtifact(body, req.Category, req.Links)), 0o644)
	if errors.Is(err, fs.ErrExist) {
		return path, fmt.Errorf("ArtifactWriter.Write: %s: %w", path, ErrArtifactExists)
	}
	if err != nil {
		return path, fmt.Errorf("ArtifactWriter.Write: %w", err)
	}
	return path, nil
}

// RenderArtifact lays out the markdown note: body, separator, category tag, optional links.
func RenderArtifact(body, category string, links []string) string {
	var b strings.Builder
	b.WriteString(body)
	b.WriteString("\n\n---\n")
	b.WriteString("\n#")
	b.WriteString(category)
	b.WriteString("\n")
	if len(links) > 0 {
		b.WriteString("\n## Links\n")
		for _, l := range links {
			b.WriteString("- ")
			b.WriteString(l)
			b.WriteString("\n")
		}
	}
	return b.String()
}
