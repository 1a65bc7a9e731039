package journal

import (
	"reflect"
	"strings"
	"testing"
)

func TestAssemblePromptLayout(t *testing.T) {
	t.Parallel()

	p1 := post("p1", "02.01.2024", " Second ")
	p2 := post("p2", "1.1.2024", "First")
	p2.MemberQuotes = []MemberQuote{{ID: "m1", Text: " mq "}}
	p2.Quotes = []string{"q1", "  "}
	p3 := post("p3", "", "")
	p3.Quotes = []string{"late"}
	th := thread("t", "Trip", "Travel", p1, p2, p3)

	req, ok := AssemblePrompt(th, "SYSTEM", EnglishLabels)
	if !ok {
		t.Fatalf("AssemblePrompt rejected thread")
	}

	want := "# Topic: Trip\n" +
		"## Thought 1 (01.01.2024)\nFirst" +
		"\n### Context for Thought 1\n- Member quote: mq\n- Quote: q1" +
		"\n---\n" +
		"## Thought 2 (02.01.2024)\nSecond" +
		"\n---\n" +
		"\n### Context for Thought 2\n- Quote: late"
	if req.UserPrompt != want {
		t.Fatalf("prompt mismatch:\n got %q\nwant %q", req.UserPrompt, want)
	}
	if req.ThreadID != "t" || req.Title != "Trip" || req.Category != "Travel" || req.SystemPrompt != "SYSTEM" {
		t.Fatalf("request fields=%+v", req)
	}
}

func TestAssemblePromptContextBeforeAnyThought(t *testing.T) {
	t.Parallel()

	p1 := post("p1", "01.01.2024", "")
	p1.MemberQuotes = []MemberQuote{{ID: "m", Text: "early"}}
	p2 := post("p2", "32.01.2024", "odd date")
	p3 := post("p3", "", "no date")
	th := thread("t", "T", "x", p1, p2, p3)

	req, ok := AssemblePrompt(th, "", EnglishLabels)
	if !ok {
		t.Fatalf("rejected")
	}
	lines := strings.Split(req.UserPrompt, "\n")
	if lines[1] != "" || lines[2] != "### Context (not tied to a thought)" {
		t.Fatalf("lines=%q", lines[:3])
	}
	if !strings.Contains(req.UserPrompt, "## Thought 1 (32.01.2024)\nodd date") {
		t.Fatalf("raw date not used:\n%s", req.UserPrompt)
	}
	if !strings.Contains(req.UserPrompt, "## Thought 2 (unknown date)\nno date") {
		t.Fatalf("unknown date label missing:\n%s", req.UserPrompt)
	}
}

func TestAssemblePromptIsDeterministic(t *testing.T) {
	t.Parallel()

	a := post("a", "01.01.2024", "same day one")
	b := post("b", "01.01.2024", "same day two")
	b.Links = []string{"https://z", "https://y"}
	th := thread("t", "T", "x", a, b)

	r1, _ := AssemblePrompt(th, "s", EnglishLabels)
	r2, _ := AssemblePrompt(th, "s", EnglishLabels)
	if !reflect.DeepEqual(r1, r2) {
		t.Fatalf("assembly not idempotent:\n%+v\n%+v", r1, r2)
	}
	if strings.Index(r1.UserPrompt, "same day one") > strings.Index(r1.UserPrompt, "same day two") {
		t.Fatalf("ties must keep document order")
	}
	if th.Posts[0].ID != "a" {
		t.Fatalf("input posts reordered")
	}
}

func TestAssemblePromptRejectsEmptyContent(t *testing.T) {
	t.Parallel()

	p1 := post("p1", "01.01.2024", "   ")
	p1.Quotes = []string{" ", ""}
	p1.Links = []string{"https://only-a-link"}
	th := thread("t", "T", "x", p1, post("p2", "", ""))

	if _, ok := AssemblePrompt(th, "s", EnglishLabels); ok {
		t.Fatalf("thread without content was accepted")
	}
	if _, ok := AssemblePrompt(thread("e", "E", "x"), "s", EnglishLabels); ok {
		t.Fatalf("thread without posts was accepted")
	}
}

func TestAssemblePromptLinksDedupedAndSorted(t *testing.T) {
	t.Parallel()

	p1 := post("p1", "01.01.2024", "one")
	p1.Links = []string{"https://b", "https://a"}
	p2 := post("p2", "02.01.2024", "two")
	p2.Links = []string{"https://a", "  "}
	req, ok := AssemblePrompt(thread("t", "T", "x", p1, p2), "s", EnglishLabels)
	if !ok {
		t.Fatalf("rejected")
	}
	if want := []string{"https://a", "https://b"}; !reflect.DeepEqual(req.Links, want) {
		t.Fatalf("links=%v, want %v", req.Links, want)
	}
}

func TestAssemblePromptGermanLabels(t *testing.T) {
	t.Parallel()

	p := post("p", "01.01.2024", "Text")
	p.Quotes = []string{"Zitat eins"}
	req, ok := AssemblePrompt(thread("t", "Reise", "x", p), "", LabelsFor("de-AT"))
	if !ok {
		t.Fatalf("rejected")
	}
	want := "# Thema: Reise\n## Mein Gedanke 1 (01.01.2024)\nText\n### Kontext zu Gedanke 1\n- Zitat: Zitat eins"
	if req.UserPrompt != want {
		t.Fatalf("got %q\nwant %q", req.UserPrompt, want)
	}
}

func TestLabelsFor(t *testing.T) {
	t.Parallel()

	for tag, want := range map[string]Labels{
		"":      EnglishLabels,
		"en":    EnglishLabels,
		"de":    GermanLabels,
		"de-CH": GermanLabels,
		"!!bad": EnglishLabels,
	} {
		if got := LabelsFor(tag); got != want {
			t.Fatalf("LabelsFor(%q)=%+v", tag, got)
		}
	}
}

func TestPrepareRequests(t *testing.T) {
	t.Parallel()

	c := NewCollection(
		thread("a", "A", "x", post("1", "01.01.2024", "has text")),
		thread("b", "B", "x", post("2", "01.01.2024", "")),
		thread("c", "C", "x"),
		thread("d", "D", "x", post("3", "01.01.2024", "more")),
	)
	reqs, rejected := PrepareRequests(c, "sys", EnglishLabels)
	if len(reqs) != 2 || reqs[0].ThreadID != "a" || reqs[1].ThreadID != "d" {
		t.Fatalf("requests=%+v", reqs)
	}
	if want := []string{"b", "c"}; !reflect.DeepEqual(rejected, want) {
		t.Fatalf("rejected=%v, want %v", rejected, want)
	}
}

func TestAssemblePromptDefaultsMissingTitleAndCategory(t *testing.T) {
	t.Parallel()

	c, _, err := DecodeCollection(strings.NewReader(`{"t1":{"diary":{"p":{"date":"01.01.2024","article":"hello"}}}}`))
	if err != nil {
		t.Fatalf("DecodeCollection: %v", err)
	}
	th := mustGet(t, c, "t1")

	req, ok := AssemblePrompt(th, "", EnglishLabels)
	if !ok {
		t.Fatalf("rejected")
	}
	if want := "# Topic: Untitled topic\n## Thought 1 (01.01.2024)\nhello"; req.UserPrompt != want {
		t.Fatalf("prompt=%q, want %q", req.UserPrompt, want)
	}
	if req.Title != "Untitled topic" || req.Category != "Uncategorized" {
		t.Fatalf("title=%q category=%q", req.Title, req.Category)
	}
	if got := RenderArtifact("body", req.Category, nil); got != "body\n\n---\n\n#Uncategorized\n" {
		t.Fatalf("artifact=%q", got)
	}

	de, _ := AssemblePrompt(th, "", GermanLabels)
	if de.Title != "Unbekanntes Thema" || de.Category != "Unkategorisiert" {
		t.Fatalf("german title=%q category=%q", de.Title, de.Category)
	}
}
