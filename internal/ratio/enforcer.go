package ratio

import (
	"fmt"
	"math"
	"time"

	"aurora-radio/internal/catalog"
	"aurora-radio/internal/models"
)

// DefaultTolerance is the slack allowed around a show's target fractions
// before validation complains.
const DefaultTolerance = 0.05

// catchUpThreshold: when a fraction lags its target by more than this, the
// next segment must be of that type regardless of the other deficit.
const catchUpThreshold = 0.10

// Stats summarises a window of queued segments for ratio purposes.
// Idents and handovers count as talk time in the fractions; the per-type
// counts keep them visible for diagnostics.
type Stats struct {
	TotalMinutes  float64
	MusicMinutes  float64
	TalkMinutes   float64
	MusicFraction float64
	TalkFraction  float64
	CountsByType  map[models.SegmentType]int
}

// QueueStats computes music/talk accounting over a segment window.
func QueueStats(segments []models.Segment) Stats {
	stats := Stats{CountsByType: make(map[models.SegmentType]int)}
	for i := range segments {
		seg := &segments[i]
		minutes := seg.EndTime.Sub(seg.StartTime).Minutes()
		stats.TotalMinutes += minutes
		stats.CountsByType[seg.Type]++
		if seg.Type.IsSpoken() {
			stats.TalkMinutes += minutes
		} else {
			stats.MusicMinutes += minutes
		}
	}
	if stats.TotalMinutes > 0 {
		stats.MusicFraction = stats.MusicMinutes / stats.TotalMinutes
		stats.TalkFraction = stats.TalkMinutes / stats.TotalMinutes
	}
	return stats
}

// ValidateRatios checks the window against the show's targets. Too much
// music or too little talk fails; the opposite skews are acceptable since
// talk-heavy stretches self-correct as music queues up.
func ValidateRatios(stats Stats, show *catalog.ShowConfig, tolerance float64) (bool, string) {
	if stats.MusicFraction > show.MusicFraction+tolerance {
		return false, fmt.Sprintf("Music fraction %.2f exceeds target %.2f (+%.2f tolerance)",
			stats.MusicFraction, show.MusicFraction, tolerance)
	}
	if stats.TalkFraction < show.TalkFraction-tolerance {
		return false, fmt.Sprintf("Talk fraction %.2f below target %.2f (-%.2f tolerance)",
			stats.TalkFraction, show.TalkFraction, tolerance)
	}
	return true, ""
}

// NextType is the enforcer's recommendation for what to generate next.
type NextType string

const (
	NextMusic    NextType = "music"
	NextTalk     NextType = "talk"
	NextBalanced NextType = "balanced"
)

// NextSegmentType recommends the next segment type. A fraction lagging its
// target by more than 0.10 forces a catch-up; otherwise the larger deficit
// wins, with balanced on an exact tie.
func NextSegmentType(stats Stats, show *catalog.ShowConfig) NextType {
	musicDeficit := show.MusicFraction - stats.MusicFraction
	talkDeficit := show.TalkFraction - stats.TalkFraction

	if musicDeficit > catchUpThreshold {
		return NextMusic
	}
	if talkDeficit > catchUpThreshold {
		return NextTalk
	}
	switch {
	case musicDeficit > talkDeficit:
		return NextMusic
	case talkDeficit > musicDeficit:
		return NextTalk
	default:
		return NextBalanced
	}
}

// CanScheduleTalk is the back-pressure check preventing bursty spoken
// segments: true when nothing spoken has been scheduled yet, or the most
// recent spoken segment ended more than minGap before now.
func CanScheduleTalk(segments []models.Segment, now time.Time, minGap time.Duration) bool {
	var lastSpokenEnd time.Time
	for i := range segments {
		seg := &segments[i]
		if seg.Type.IsSpoken() && seg.EndTime.After(lastSpokenEnd) {
			lastSpokenEnd = seg.EndTime
		}
	}
	if lastSpokenEnd.IsZero() {
		return true
	}
	return now.Sub(lastSpokenEnd) > minGap
}

// Need counts how many segments of each type cover the remaining duration.
type Need struct {
	MusicCount       int
	TalkCount        int
	RemainingSeconds float64
}

// SegmentsNeeded apportions the remaining duration by the show's ratios and
// divides by the average per-segment lengths, rounding up. Zero when the
// window already holds the target.
func SegmentsNeeded(segments []models.Segment, show *catalog.ShowConfig, targetMinutes float64, avgMusicSeconds, avgTalkSeconds float64) Need {
	stats := QueueStats(segments)
	remaining := (targetMinutes - stats.TotalMinutes) * 60
	if remaining <= 0 {
		return Need{}
	}

	musicSeconds := remaining * show.MusicFraction
	talkSeconds := remaining * show.TalkFraction

	need := Need{RemainingSeconds: remaining}
	if avgMusicSeconds > 0 {
		need.MusicCount = int(math.Ceil(musicSeconds / avgMusicSeconds))
	}
	if avgTalkSeconds > 0 {
		need.TalkCount = int(math.Ceil(talkSeconds / avgTalkSeconds))
	}
	return need
}
