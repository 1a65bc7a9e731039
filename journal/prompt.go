package journal

import (
	"fmt"
	"sort"
	"strings"
)

const postSeparator = "\n---\n"

// Request is one generation job: the prompts for a single thread plus what the artifact needs.
type Request struct {
	ThreadID     string   `json:"thread_id"`
	Title        string   `json:"title"`
	Category     string   `json:"category"`
	SystemPrompt string   `json:"system_prompt"`
	UserPrompt   string   `json:"user_prompt"`
	Links        []string `json:"links"`
}

// AssemblePrompt turns a thread into a generation request.
//
// Posts are taken in date order (undated last). Each post with an article opens a numbered
// thought; member quotes and quotes become a context block attached to the latest thought.
// Links from every post are deduplicated and sorted. It returns false when the prompt would
// carry nothing beyond the topic line. A blank title or category is replaced by the
// UnknownTitle and Uncategorized labels.
func AssemblePrompt(t Thread, systemPrompt string, labels Labels) (Request, bool) {
	posts := make([]Post, len(t.Posts))
	copy(posts, t.Posts)
	sort.SliceStable(posts, func(i, j int) bool {
		return sortDate(posts[i]).Before(sortDate(posts[j]))
	})

	title := orDefault(t.Title, labels.UnknownTitle)
	category := orDefault(t.Category, labels.Uncategorized)

	parts := []string{fmt.Sprintf("# %s: %s\n", labels.Topic, title)}
	links := make(map[string]struct{})
	thought := 0

	for _, p := range posts {
		var content []string

		if article := strings.TrimSpace(p.Article); article != "" {
			thought++
			content = append(content, fmt.Sprintf("## %s %d (%s)\n%s", labels.Thought, thought, promptDate(p, labels), article))
		}

		var ctx []string
		for _, q := range p.MemberQuotes {
			if s := strings.TrimSpace(q.Text); s != "" {
				ctx = append(ctx, fmt.Sprintf("- %s: %s", labels.MemberQuote, s))
			}
		}
		for _, q := range p.Quotes {
			if s := strings.TrimSpace(q); s != "" {
				ctx = append(ctx, fmt.Sprintf("- %s: %s", labels.Quote, s))
			}
		}
		if len(ctx) > 0 {
			header := "\n### " + labels.ContextWithoutThought
			if thought > 0 {
				header = fmt.Sprintf("\n### %s %d", labels.ContextFor, thought)
			}
			content = append(content, header+"\n"+strings.Join(ctx, "\n"))
		}

		if len(content) > 0 {
			parts = append(parts, content...)
			parts = append(parts, postSeparator)
		}

		for _, l := range p.Links {
			if strings.TrimSpace(l) != "" {
				links[l] = struct{}{}
			}
		}
	}

	if parts[len(parts)-1] == postSeparator {
		parts = parts[:len(parts)-1]
	}
	body := strings.TrimSpace(strings.Join(parts, ""))
	if !hasContentBeyondTitle(body) {
		return Request{}, false
	}

	sorted := make([]string, 0, len(links))
	for l := range links {
		sorted = append(sorted, l)
	}
	sort.Strings(sorted)

	return Request{
		ThreadID:     t.ID,
		Title:        title,
		Category:     category,
		SystemPrompt: systemPrompt,
		UserPrompt:   body,
		Links:        sorted,
	}, true
}

// PrepareRequests assembles one request per thread in collection order.
// It also returns the IDs of threads rejected for lack of content.
func PrepareRequests(c Collection, systemPrompt string, labels Labels) ([]Request, []string) {
	var (
		reqs     []Request
		rejected []string
	)
	for _, t := range c.threads {
		if len(t.Posts) == 0 {
			rejected = append(rejected, t.ID)
			continue
		}
		req, ok := AssemblePrompt(t, systemPrompt, labels)
		if !ok {
			rejected = append(rejected, t.ID)
			continue
		}
		reqs = append(reqs, req)
	}
	return reqs, rejected
}

// orDefault substitutes def for a blank document field.
func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func promptDate(p Post, labels Labels) string {
	if d, ok := p.ParsedDate(); ok {
		return FormatDate(d)
	}
	if p.Date != "" {
		return p.Date
	}
	return labels.UnknownDate
}

func hasContentBeyondTitle(body string) bool {
	lines := strings.Split(body, "\n")
	for _, l := range lines[1:] {
		if strings.TrimSpace(l) != "" {
			return true
		}
	}
	return false
}
