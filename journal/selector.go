package journal

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// Selector sentinels that choose every thread.
const (
	SelectAll       = "*all*"
	SelectAllLegacy = "*alle*"
)

// Selector picks the threads SplitByTimeGap works on.
//
// Bare tokens are classified heuristically: a token made only of letters, digits and
// underscores that contains at least one digit is a thread ID, anything else is a
// category. Prefix a token with "id:" or "cat:" to skip the heuristic.
type Selector struct {
	All        bool
	IDs        []string
	Categories []string
}

// ParseSelector parses a comma-separated selector such as "123_45, Travel, cat:2024".
func ParseSelector(s string) Selector {
	var sel Selector
	for _, raw := range strings.Split(s, ",") {
		tok := strings.TrimSpace(raw)
		if tok == "" {
			continue
		}
		switch {
		case tok == SelectAll || tok == SelectAllLegacy:
			sel.All = true
		case strings.HasPrefix(tok, "id:"):
			if id := strings.TrimSpace(strings.TrimPrefix(tok, "id:")); id != "" {
				sel.IDs = append(sel.IDs, id)
			}
		case strings.HasPrefix(tok, "cat:"):
			if cat := strings.TrimSpace(strings.TrimPrefix(tok, "cat:")); cat != "" {
				sel.Categories = append(sel.Categories, foldCategory(cat))
			}
		case looksLikeThreadID(tok):
			sel.IDs = append(sel.IDs, tok)
		default:
			sel.Categories = append(sel.Categories, foldCategory(tok))
		}
	}
	return sel
}

// Empty reports whether the selector chooses nothing.
func (s Selector) Empty() bool {
	return !s.All && len(s.IDs) == 0 && len(s.Categories) == 0
}

// Matches reports whether t is selected. Categories compare case-insensitively.
func (s Selector) Matches(t Thread) bool {
	if s.All {
		return true
	}
	for _, id := range s.IDs {
		if id == t.ID {
			return true
		}
	}
	if len(s.Categories) == 0 {
		return false
	}
	cat := foldCategory(t.Category)
	for _, c := range s.Categories {
		if c == cat {
			return true
		}
	}
	return false
}

// String renders the selector back into tagged form.
func (s Selector) String() string {
	var parts []string
	if s.All {
		parts = append(parts, SelectAll)
	}
	for _, id := range s.IDs {
		parts = append(parts, "id:"+id)
	}
	for _, c := range s.Categories {
		parts = append(parts, "cat:"+c)
	}
	return strings.Join(parts, ",")
}

func looksLikeThreadID(tok string) bool {
	stripped := strings.ReplaceAll(tok, "_", "")
	if stripped == "" {
		return false
	}
	hasDigit := false
	for _, r := range stripped {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
		if unicode.IsDigit(r) {
			hasDigit = true
		}
	}
	return hasDigit
}

func foldCategory(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}
