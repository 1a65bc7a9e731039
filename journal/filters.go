package journal

import (
	"time"
)

// Filters in this file are pure: they never modify their input and always return
// a collection that shares no slices with it.

// FilterByTotalArticleLength drops every thread whose summed article length is below threshold.
// It returns the filtered collection and the number of threads removed.
func FilterByTotalArticleLength(c Collection, threshold int) (Collection, int) {
	if threshold <= 0 {
		return c.Clone(), 0
	}
	var out Collection
	removed := 0
	for _, t := range c.threads {
		if t.ArticleLength() < threshold {
			removed++
			continue
		}
		out.Put(t.clone())
	}
	return out, removed
}

// FilterByMemberQuoteLength drops member quotes shorter than threshold.
// Posts are kept even when all their member quotes go.
// It returns the filtered collection and the number of quotes removed.
func FilterByMemberQuoteLength(c Collection, threshold int) (Collection, int) {
	if threshold <= 0 {
		return c.Clone(), 0
	}
	out := c.Clone()
	removed := 0
	for ti := range out.threads {
		posts := out.threads[ti].Posts
		for pi := range posts {
			kept := posts[pi].MemberQuotes[:0]
			for _, q := range posts[pi].MemberQuotes {
				if runeLen(q.Text) < threshold {
					removed++
					continue
				}
				kept = append(kept, q)
			}
			if len(kept) == 0 {
				kept = nil
			}
			posts[pi].MemberQuotes = kept
		}
	}
	return out, removed
}

// DateRangeStats counts what FilterByDateRange removed.
type DateRangeStats struct {
	PostsRemoved   int
	ThreadsRemoved int
}

// FilterByDateRange keeps posts dated within [start, end], compared by calendar day.
// A nil bound is open. Posts without a parseable date are always kept.
// Threads left without posts are dropped; threads that were already empty are not.
func FilterByDateRange(c Collection, start, end *time.Time) (Collection, DateRangeStats) {
	if start == nil && end == nil {
		return c.Clone(), DateRangeStats{}
	}

	var lo, hi time.Time
	if start != nil {
		lo = calendarDay(*start)
	}
	if end != nil {
		hi = calendarDay(*end)
	}

	var (
		out   Collection
		stats DateRangeStats
	)
	for _, t := range c.threads {
		kept := make([]Post, 0, len(t.Posts))
		for _, p := range t.Posts {
			d, ok := p.ParsedDate()
			if ok && ((start != nil && d.Before(lo)) || (end != nil && d.After(hi))) {
				stats.PostsRemoved++
				continue
			}
			kept = append(kept, p.clone())
		}
		if len(kept) == 0 && len(t.Posts) > 0 {
			stats.ThreadsRemoved++
			continue
		}
		nt := t
		nt.Posts = kept
		out.Put(nt)
	}
	return out, stats
}
