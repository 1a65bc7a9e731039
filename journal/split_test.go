package journal

import (
	"reflect"
	"testing"
)

func TestSplitByTimeGapTwoParts(t *testing.T) {
	t.Parallel()

	in := NewCollection(thread("t", "Trip", "Travel",
		post("p1", "01.01.2024", "a"),
		post("p2", "02.01.2024", "b"),
		post("p3", "01.03.2024", "c"),
	))

	out, stats := SplitByTimeGap(in, ParseSelector("id:t"), 10)
	if got := out.IDs(); !reflect.DeepEqual(got, []string{"t", "t_part2"}) {
		t.Fatalf("IDs=%v", got)
	}
	first := mustGet(t, out, "t")
	if first.Title != "Trip Teil 1" || !reflect.DeepEqual(postIDs(first), []string{"p1", "p2"}) {
		t.Fatalf("part 1=%q %v", first.Title, postIDs(first))
	}
	second := mustGet(t, out, "t_part2")
	if second.Title != "Trip Teil 2" || !reflect.DeepEqual(postIDs(second), []string{"p3"}) {
		t.Fatalf("part 2=%q %v", second.Title, postIDs(second))
	}
	if second.Category != "Travel" {
		t.Fatalf("category=%q", second.Category)
	}
	if stats != (SplitStats{Targets: 1, ThreadsSplit: 1, PartsCreated: 1}) {
		t.Fatalf("stats=%+v", stats)
	}

	if orig := mustGet(t, in, "t"); orig.Title != "Trip" || len(orig.Posts) != 3 {
		t.Fatalf("input mutated: %+v", orig)
	}
}

func TestSplitByTimeGapNoSplitKeepsIdentity(t *testing.T) {
	t.Parallel()

	in := NewCollection(thread("t", "Trip", "Travel",
		post("p2", "11.01.2024", "b"),
		post("p1", "01.01.2024", "a"),
		post("p3", "21.01.2024", "c"),
	))

	out, stats := SplitByTimeGap(in, ParseSelector(SelectAll), 10)
	if got := out.IDs(); !reflect.DeepEqual(got, []string{"t"}) {
		t.Fatalf("IDs=%v", got)
	}
	th := mustGet(t, out, "t")
	if th.Title != "Trip" {
		t.Fatalf("title=%q, want unsuffixed", th.Title)
	}
	if got := postIDs(th); !reflect.DeepEqual(got, []string{"p1", "p2", "p3"}) {
		t.Fatalf("posts=%v, want date order", got)
	}
	if stats.ThreadsSplit != 0 || stats.PartsCreated != 0 {
		t.Fatalf("stats=%+v", stats)
	}
}

func TestSplitByTimeGapRetainsUndatedPostsInLastPart(t *testing.T) {
	t.Parallel()

	in := NewCollection(thread("t", "T", "x",
		post("u1", "", "no date"),
		post("p1", "01.01.2024", "a"),
		post("u2", "99.99.2024", "bad date"),
		post("p2", "01.06.2024", "b"),
	))

	out, _ := SplitByTimeGap(in, ParseSelector("id:t"), 30)
	if out.PostCount() != in.PostCount() {
		t.Fatalf("post count %d, want %d", out.PostCount(), in.PostCount())
	}
	last := mustGet(t, out, "t_part2")
	if got := postIDs(last); !reflect.DeepEqual(got, []string{"p2", "u1", "u2"}) {
		t.Fatalf("last part posts=%v", got)
	}
}

func TestSplitByTimeGapManyParts(t *testing.T) {
	t.Parallel()

	in := NewCollection(
		thread("a", "A", "Diary",
			post("1", "01.01.2024", "x"),
			post("2", "01.02.2024", "x"),
			post("3", "03.02.2024", "x"),
			post("4", "01.05.2024", "x"),
		),
		thread("b", "B", "Other", post("5", "01.01.2024", "x"), post("6", "01.01.2025", "x")),
	)

	out, stats := SplitByTimeGap(in, ParseSelector("diary"), 7)
	if got := out.IDs(); !reflect.DeepEqual(got, []string{"a", "b", "a_part2", "a_part3"}) {
		t.Fatalf("IDs=%v", got)
	}
	if got := mustGet(t, out, "a_part3").Title; got != "A Teil 3" {
		t.Fatalf("title=%q", got)
	}
	if got := mustGet(t, out, "b").Title; got != "B" {
		t.Fatalf("unselected thread changed: %q", got)
	}
	if stats.Targets != 1 || stats.PartsCreated != 2 {
		t.Fatalf("stats=%+v", stats)
	}
}

func TestSplitByTimeGapAvoidsIDCollisions(t *testing.T) {
	t.Parallel()

	in := NewCollection(
		thread("t", "T", "x", post("1", "01.01.2024", "x"), post("2", "01.01.2025", "x")),
		thread("t_part2", "Existing", "x", post("3", "01.01.2024", "x")),
	)

	out, _ := SplitByTimeGap(in, ParseSelector("id:t"), 10)
	if got := mustGet(t, out, "t_part2").Title; got != "Existing" {
		t.Fatalf("existing thread overwritten: %q", got)
	}
	if got := postIDs(mustGet(t, out, "t_part2_2")); !reflect.DeepEqual(got, []string{"2"}) {
		t.Fatalf("renamed part posts=%v", got)
	}
}

func TestSplitByTimeGapSkipsThreadsWithFewDatedPosts(t *testing.T) {
	t.Parallel()

	in := NewCollection(thread("t", "T", "x", post("u", "", "x"), post("1", "01.01.2024", "x")))
	out, stats := SplitByTimeGap(in, ParseSelector(SelectAllLegacy), 1)
	if !reflect.DeepEqual(out.Threads(), in.Threads()) {
		t.Fatalf("thread with one dated post must be untouched")
	}
	if stats.Targets != 1 || stats.ThreadsSplit != 0 {
		t.Fatalf("stats=%+v", stats)
	}
}

func TestSplitByTimeGapNoOps(t *testing.T) {
	t.Parallel()

	in := NewCollection(thread("t", "T", "x", post("1", "01.01.2024", "x"), post("2", "01.01.2025", "x")))
	for name, got := range map[string]Collection{
		"zero days":      first(SplitByTimeGap(in, ParseSelector(SelectAll), 0)),
		"negative days":  first(SplitByTimeGap(in, ParseSelector(SelectAll), -3)),
		"empty selector": first(SplitByTimeGap(in, ParseSelector(" , "), 10)),
	} {
		if !reflect.DeepEqual(got.Threads(), in.Threads()) {
			t.Fatalf("%s: collection changed", name)
		}
	}
}

func first(c Collection, _ SplitStats) Collection { return c }

func TestSplitGapIsMeasuredFromPreviousPost(t *testing.T) {
	t.Parallel()

	// Each gap is 6 days, the span is 18; no split at threshold 7.
	in := NewCollection(thread("t", "T", "x",
		post("1", "01.01.2024", "x"),
		post("2", "07.01.2024", "x"),
		post("3", "13.01.2024", "x"),
		post("4", "19.01.2024", "x"),
	))
	out, _ := SplitByTimeGap(in, ParseSelector(SelectAll), 7)
	if out.Len() != 1 {
		t.Fatalf("IDs=%v, want single part", out.IDs())
	}

	// A gap of exactly the threshold does not split.
	in = NewCollection(thread("t", "T", "x", post("1", "01.01.2024", "x"), post("2", "08.01.2024", "x")))
	out, _ = SplitByTimeGap(in, ParseSelector(SelectAll), 7)
	if out.Len() != 1 {
		t.Fatalf("gap equal to threshold split the thread")
	}
}

func TestSplitByTimeGapHandlesGapsOverCenturies(t *testing.T) {
	t.Parallel()

	// 364877 days separate these posts, far beyond what a time.Duration can hold.
	in := NewCollection(thread("t", "Old", "x",
		post("1", "01.01.0001", "a"),
		post("2", "01.01.1000", "b"),
	))
	out, stats := SplitByTimeGap(in, ParseSelector(SelectAll), 200000)
	if got := out.IDs(); !reflect.DeepEqual(got, []string{"t", "t_part2"}) {
		t.Fatalf("IDs=%v", got)
	}
	if stats.PartsCreated != 1 {
		t.Fatalf("stats=%+v", stats)
	}

	a, _ := ParseDate("01.01.0001")
	b, _ := ParseDate("01.01.1000")
	if got := daysBetween(a, b); got != 364877 {
		t.Fatalf("daysBetween=%d, want 364877", got)
	}
}

func TestSplitByTimeGapBlankTitle(t *testing.T) {
	t.Parallel()

	in := NewCollection(thread("t", "", "x",
		post("1", "01.01.2024", "a"),
		post("2", "01.06.2024", "b"),
	))
	out, _ := SplitByTimeGap(in, ParseSelector(SelectAll), 30)
	if got := mustGet(t, out, "t").Title; got != "Teil 1" {
		t.Fatalf("part 1 title=%q", got)
	}
	if got := mustGet(t, out, "t_part2").Title; got != "Teil 2" {
		t.Fatalf("part 2 title=%q", got)
	}
}
