package journal

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MaxFilenameRunes caps the length of a sanitized artifact name.
const MaxFilenameRunes = 200

// DefaultFilename is used when a title sanitizes to nothing.
const DefaultFilename = "untitled_topic"

var (
	forbiddenFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f\x7f]`)
	whitespaceRun          = regexp.MustCompile(`\s+`)
	dotRun                 = regexp.MustCompile(`\.+`)
)

// SanitizeFilename turns a thread title into a safe file base name (without extension).
// The result never contains <>:"/\|?* or control characters, is at most MaxFilenameRunes
// long and is never empty.
func SanitizeFilename(title string) string {
	s := norm.NFC.String(title)
	s = forbiddenFilenameChars.ReplaceAllString(s, "")

	if r := []rune(s); len(r) > MaxFilenameRunes {
		cut := string(r[:MaxFilenameRunes])
		if i := strings.LastIndex(cut, " "); i > 0 {
			cut = cut[:i]
		}
		s = cut
	}

	s = strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
	s = strings.Trim(dotRun.ReplaceAllString(s, "."), ".")
	s = strings.TrimSpace(s)

	if s == "" {
		return DefaultFilename
	}
	return s
}
