package journal

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// PartTitleFormat renders the title of a split part from the original title and the 1-based part index.
const PartTitleFormat = "%s Teil %d"

// SplitStats counts what SplitByTimeGap did.
type SplitStats struct {
	Targets      int
	ThreadsSplit int
	PartsCreated int
}

// SplitByTimeGap splits every selected thread wherever two consecutive posts (in date order)
// are more than days apart.
//
// The first part keeps the thread ID; later parts are "<id>_part<N>" with N starting at 2 and
// are appended after all existing threads. When a split happens every part is titled
// "<title> Teil <N>", or "Teil <N>" when the title is blank. Posts without a parseable date
// go to the last part. Threads with fewer than two dated posts are left alone.
func SplitByTimeGap(c Collection, sel Selector, days int) (Collection, SplitStats) {
	out := c.Clone()
	var stats SplitStats
	if days <= 0 || sel.Empty() {
		return out, stats
	}

	taken := make(map[string]bool, out.Len())
	for _, id := range out.IDs() {
		taken[id] = true
	}

	var created []Thread
	n := len(out.threads)
	for i := 0; i < n; i++ {
		t := out.threads[i]
		if !sel.Matches(t) {
			continue
		}
		stats.Targets++

		parts := splitThread(t, days)
		if len(parts) == 0 {
			continue
		}
		out.threads[i] = parts[0]
		if len(parts) == 1 {
			continue
		}

		stats.ThreadsSplit++
		for _, p := range parts[1:] {
			p.ID = uniqueThreadID(p.ID, taken)
			taken[p.ID] = true
			created = append(created, p)
		}
	}

	for _, t := range created {
		out.Put(t)
	}
	stats.PartsCreated = len(created)
	return out, stats
}

type datedPost struct {
	post Post
	date time.Time
}

// splitThread returns the parts of t in chronological order, or nil when t has fewer
// than two dated posts.
func splitThread(t Thread, days int) []Thread {
	var (
		dated   []datedPost
		undated []Post
	)
	for _, p := range t.Posts {
		if d, ok := p.ParsedDate(); ok {
			dated = append(dated, datedPost{post: p, date: d})
		} else {
			undated = append(undated, p)
		}
	}
	if len(dated) < 2 {
		return nil
	}

	sort.SliceStable(dated, func(i, j int) bool {
		return dated[i].date.Before(dated[j].date)
	})

	boundaries := []int{0}
	for i := 1; i < len(dated); i++ {
		if daysBetween(dated[i-1].date, dated[i].date) > days {
			boundaries = append(boundaries, i)
		}
	}
	boundaries = append(boundaries, len(dated))

	parts := make([]Thread, 0, len(boundaries)-1)
	for i := 0; i+1 < len(boundaries); i++ {
		posts := make([]Post, 0, boundaries[i+1]-boundaries[i])
		for _, dp := range dated[boundaries[i]:boundaries[i+1]] {
			posts = append(posts, dp.post)
		}
		parts = append(parts, Thread{
			ID:       partID(t.ID, i+1),
			Title:    t.Title,
			Category: t.Category,
			Posts:    posts,
		})
	}

	last := &parts[len(parts)-1]
	last.Posts = append(last.Posts, undated...)

	if len(parts) > 1 {
		for i := range parts {
			parts[i].Title = strings.TrimSpace(fmt.Sprintf(PartTitleFormat, strings.TrimSpace(t.Title), i+1))
		}
	}
	return parts
}

func partID(base string, n int) string {
	if n == 1 {
		return base
	}
	return fmt.Sprintf("%s_part%d", base, n)
}

// uniqueThreadID appends _<k> (k >= 2) until id is unused.
func uniqueThreadID(id string, taken map[string]bool) string {
	if !taken[id] {
		return id
	}
	for k := 2; ; k++ {
		cand := fmt.Sprintf("%s_%d", id, k)
		if !taken[cand] {
			return cand
		}
	}
}
