package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkPollinationBreakthrough BookmarkType = "pollination_breakthrough"
	BookmarkColonyCollapse          BookmarkType = "colony_collapse"
	BookmarkPreferenceConvergence   BookmarkType = "preference_convergence"
	BookmarkConstancyShift          BookmarkType = "constancy_shift"
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `csv:"type" json:"type"`
	Tick        int32        `csv:"tick" json:"tick"`
	Description string       `csv:"description" json:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"tick", b.Tick,
		"description", b.Description,
	)
}

// BookmarkDetector flags notable windows by comparing each window summary
// with the ones before it.
type BookmarkDetector struct {
	history []WindowSummary // oldest first, at most limit entries
	limit   int

	agentPeak  int // highest population since the last collapse
	stableRuns int // consecutive windows with converged preferences
}

// NewBookmarkDetector keeps up to historySize windows (at least 5).
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	return &BookmarkDetector{limit: max(historySize, 5)}
}

// Check returns the bookmarks raised by w, then adds w to the history.
func (bd *BookmarkDetector) Check(w WindowSummary) []Bookmark {
	var bookmarks []Bookmark
	raise := func(b *Bookmark) {
		if b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}

	if len(bd.history) > 0 {
		raise(bd.pollinationBreakthrough(w))
		raise(bd.constancyShift(w))
		raise(bd.colonyCollapse(w))
	}
	raise(bd.preferenceConvergence(w))

	if len(bd.history) == bd.limit {
		bd.history = bd.history[1:]
	}
	bd.history = append(bd.history, w)
	bd.agentPeak = max(bd.agentPeak, w.Agents)

	return bookmarks
}

// pollinationBreakthrough fires when pollinations exceed twice the average.
func (bd *BookmarkDetector) pollinationBreakthrough(w WindowSummary) *Bookmark {
	if len(bd.history) < 3 {
		return nil
	}
	var total int
	for _, h := range bd.history {
		total += h.Pollinations
	}
	avg := float64(total) / float64(len(bd.history))
	if avg == 0 || w.Pollinations < 5 || float64(w.Pollinations) <= 2*avg {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkPollinationBreakthrough,
		Tick:        w.EndTick,
		Description: fmt.Sprintf("%d pollinations is %.1fx average (%.1f)", w.Pollinations, float64(w.Pollinations)/avg, avg),
	}
}

func declineShare(landings, declines int) float64 {
	if landings+declines == 0 {
		return 0
	}
	return float64(declines) / float64(landings+declines)
}

// constancyShift fires when the share of constancy declines among landing
// attempts doubles against history.
func (bd *BookmarkDetector) constancyShift(w WindowSummary) *Bookmark {
	if len(bd.history) < 3 {
		return nil
	}
	var landings, declines int
	for _, h := range bd.history {
		landings += h.Landings
		declines += h.Declines
	}
	avg := declineShare(landings, declines)
	share := declineShare(w.Landings, w.Declines)
	if avg == 0 || w.Declines < 5 || share <= 2*avg {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkConstancyShift,
		Tick:        w.EndTick,
		Description: fmt.Sprintf("Decline share %.2f is %.1fx average (%.2f)", share, share/avg, avg),
	}
}

// colonyCollapse fires when the population falls over 30% (and by at least
// three agents) from its peak. The peak then restarts from the new level.
func (bd *BookmarkDetector) colonyCollapse(w WindowSummary) *Bookmark {
	peak := bd.agentPeak
	if peak == 0 {
		return nil
	}
	drop := 1 - float64(w.Agents)/float64(peak)
	if drop <= 0.30 || w.Agents > peak-3 {
		return nil
	}
	bd.agentPeak = w.Agents
	return &Bookmark{
		Type:        BookmarkColonyCollapse,
		Tick:        w.EndTick,
		Description: fmt.Sprintf("Population fell %.0f%% from peak %d to %d", drop*100, peak, w.Agents),
	}
}

// preferenceConvergence fires once per stable run, on the fifth consecutive
// window whose drift spread is under a fifth of its mean.
func (bd *BookmarkDetector) preferenceConvergence(w WindowSummary) *Bookmark {
	if w.Agents < 2 || w.DriftMean == 0 || w.DriftStd >= 0.2*w.DriftMean {
		bd.stableRuns = 0
		return nil
	}
	bd.stableRuns++
	if bd.stableRuns != 5 {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkPreferenceConvergence,
		Tick:        w.EndTick,
		Description: fmt.Sprintf("Preferences converged: drift %.3f ± %.3f across %d agents", w.DriftMean, w.DriftStd, w.Agents),
	}
}
