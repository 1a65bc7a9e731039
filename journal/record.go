package journal

import (
	"time"
)

// Collection is an insertion-ordered set of threads keyed by thread ID.
// The zero value is an empty collection ready for use.
type Collection struct {
	threads []Thread
	index   map[string]int
}

// Thread is one diary topic: a title, a category and its posts in document order.
type Thread struct {
	ID       string
	Title    string
	Category string
	Posts    []Post
}

// Post is a single dated diary entry.
type Post struct {
	ID string

	// Date is the raw DD.MM.YYYY string as stored; it may be empty or unparseable.
	Date string

	Article      string
	MemberQuotes []MemberQuote
	Quotes       []string
	Links        []string
}

// MemberQuote is a quote attributed to a forum member, keyed by its quote ID.
type MemberQuote struct {
	ID   string
	Text string
}

// NewCollection builds a collection from threads in the given order.
// A later thread with an ID already present replaces the earlier one in place.
func NewCollection(threads ...Thread) Collection {
	var c Collection
	for _, t := range threads {
		c.Put(t)
	}
	return c
}

// Len returns the number of threads.
func (c Collection) Len() int {
	return len(c.threads)
}

// Threads returns the threads in order. The returned slice is a copy; the posts are shared.
func (c Collection) Threads() []Thread {
	return append([]Thread(nil), c.threads...)
}

// IDs returns the thread IDs in order.
func (c Collection) IDs() []string {
	ids := make([]string, len(c.threads))
	for i, t := range c.threads {
		ids[i] = t.ID
	}
	return ids
}

// Get looks up a thread by ID.
func (c Collection) Get(id string) (Thread, bool) {
	i, ok := c.index[id]
	if !ok {
		return Thread{}, false
	}
	return c.threads[i], true
}

// Has reports whether a thread with the ID exists.
func (c Collection) Has(id string) bool {
	_, ok := c.index[id]
	return ok
}

// Put appends t, or replaces the thread with the same ID keeping its position.
func (c *Collection) Put(t Thread) {
	if c.index == nil {
		c.index = make(map[string]int)
	}
	if i, ok := c.index[t.ID]; ok {
		c.threads[i] = t
		return
	}
	c.index[t.ID] = len(c.threads)
	c.threads = append(c.threads, t)
}

// Clone returns a deep copy; no slice is shared with c.
func (c Collection) Clone() Collection {
	out := Collection{
		threads: make([]Thread, len(c.threads)),
		index:   make(map[string]int, len(c.threads)),
	}
	for i, t := range c.threads {
		out.threads[i] = t.clone()
		out.index[t.ID] = i
	}
	return out
}

// PostCount returns the total number of posts across all threads.
func (c Collection) PostCount() int {
	n := 0
	for _, t := range c.threads {
		n += len(t.Posts)
	}
	return n
}

func (t Thread) clone() Thread {
	out := t
	if t.Posts != nil {
		out.Posts = make([]Post, len(t.Posts))
		for i, p := range t.Posts {
			out.Posts[i] = p.clone()
		}
	}
	return out
}

// ArticleLength is the summed character count of every article in the thread.
func (t Thread) ArticleLength() int {
	n := 0
	for _, p := range t.Posts {
		n += runeLen(p.Article)
	}
	return n
}

func (p Post) clone() Post {
	out := p
	if p.MemberQuotes != nil {
		out.MemberQuotes = append([]MemberQuote(nil), p.MemberQuotes...)
	}
	if p.Quotes != nil {
		out.Quotes = append([]string(nil), p.Quotes...)
	}
	if p.Links != nil {
		out.Links = append([]string(nil), p.Links...)
	}
	return out
}

// ParsedDate returns the post date, or false when it is missing or unparseable.
func (p Post) ParsedDate() (time.Time, bool) {
	return ParseDate(p.Date)
}

func runeLen(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}
