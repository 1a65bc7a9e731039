package journal

import (
	"golang.org/x/text/language"
)

// Labels holds the fixed wording used inside assembled prompts.
type Labels struct {
	Topic                 string
	Thought               string
	ContextFor            string
	ContextWithoutThought string
	MemberQuote           string
	Quote                 string
	UnknownDate           string
	UnknownTitle          string
	Uncategorized         string
}

var EnglishLabels = Labels{
	Topic:                 "Topic",
	Thought:               "Thought",
	ContextFor:            "Context for Thought",
	ContextWithoutThought: "Context (not tied to a thought)",
	MemberQuote:           "Member quote",
	Quote:                 "Quote",
	UnknownDate:           "unknown date",
	UnknownTitle:          "Untitled topic",
	Uncategorized:         "Uncategorized",
}

var GermanLabels = Labels{
	Topic:                 "Thema",
	Thought:               "Mein Gedanke",
	ContextFor:            "Kontext zu Gedanke",
	ContextWithoutThought: "Kontext (ohne direkten Gedankenzuordnung)",
	MemberQuote:           "Zitat von Mitglied",
	Quote:                 "Zitat",
	UnknownDate:           "Datum unbekannt",
	UnknownTitle:          "Unbekanntes Thema",
	Uncategorized:         "Unkategorisiert",
}

var (
	labelTags    = []language.Tag{language.English, language.German}
	labelSets    = []Labels{EnglishLabels, GermanLabels}
	labelMatcher = language.NewMatcher(labelTags)
)

// LabelsFor picks the label set closest to a BCP 47 tag ("de", "de-AT", "en-GB", ...).
// Unknown or empty tags get English.
func LabelsFor(tag string) Labels {
	if tag == "" {
		return EnglishLabels
	}
	t, err := language.Parse(tag)
	if err != nil {
		return EnglishLabels
	}
	_, i, conf := labelMatcher.Match(t)
	if conf == language.No || i < 0 || i >= len(labelSets) {
		return EnglishLabels
	}
	return labelSets[i]
}
