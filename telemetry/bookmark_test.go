package telemetry

import "testing"

func hasBookmark(bookmarks []Bookmark, typ BookmarkType) bool {
	for _, bm := range bookmarks {
		if bm.Type == typ {
			return true
		}
	}
	return false
}

func TestBookmarkDetector_PollinationBreakthrough(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := 0; i < 5; i++ {
		bd.Check(WindowSummary{EndTick: int32(i * 100), Pollinations: 4, Agents: 10})
	}

	bookmarks := bd.Check(WindowSummary{EndTick: 500, Pollinations: 12, Agents: 10})
	if !hasBookmark(bookmarks, BookmarkPollinationBreakthrough) {
		t.Error("expected pollination_breakthrough bookmark")
	}
}

func TestBookmarkDetector_ColonyCollapse(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := 0; i < 5; i++ {
		bd.Check(WindowSummary{EndTick: int32(i * 100), Agents: 20})
	}

	bookmarks := bd.Check(WindowSummary{EndTick: 500, Agents: 10})
	if !hasBookmark(bookmarks, BookmarkColonyCollapse) {
		t.Error("expected colony_collapse bookmark")
	}

	// The peak resets after a collapse.
	bookmarks = bd.Check(WindowSummary{EndTick: 600, Agents: 9})
	if hasBookmark(bookmarks, BookmarkColonyCollapse) {
		t.Error("collapse should not retrigger on a small further drop")
	}
}

func TestBookmarkDetector_ConstancyShift(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := 0; i < 5; i++ {
		bd.Check(WindowSummary{EndTick: int32(i * 100), Landings: 90, Declines: 10, Agents: 10})
	}

	bookmarks := bd.Check(WindowSummary{EndTick: 500, Landings: 50, Declines: 50, Agents: 10})
	if !hasBookmark(bookmarks, BookmarkConstancyShift) {
		t.Error("expected constancy_shift bookmark")
	}
}

func TestBookmarkDetector_PreferenceConvergenceOnce(t *testing.T) {
	bd := NewBookmarkDetector(10)

	var count int
	for i := 0; i < 8; i++ {
		bookmarks := bd.Check(WindowSummary{EndTick: int32(i * 100), Agents: 10, DriftMean: 0.3, DriftStd: 0.01})
		if hasBookmark(bookmarks, BookmarkPreferenceConvergence) {
			count++
			if i != 4 {
				t.Errorf("convergence fired at window %d, want 4", i)
			}
		}
	}
	if count != 1 {
		t.Errorf("convergence fired %d times, want 1", count)
	}
}

func TestBookmarkDetector_QuietRun(t *testing.T) {
	bd := NewBookmarkDetector(5)

	for i := 0; i < 20; i++ {
		w := WindowSummary{EndTick: int32(i * 100), Landings: 40, Declines: 4, Pollinations: 8, Agents: 10, DriftMean: 0.2, DriftStd: 0.2}
		if bookmarks := bd.Check(w); len(bookmarks) != 0 {
			t.Errorf("window %d: unexpected bookmarks %v", i, bookmarks)
		}
	}
}
