package schedule

import (
	"log"
	"time"

	"aurora-radio/internal/catalog"
)

// Scheduler resolves which show is on air from the weekly timetable.
type Scheduler struct {
	catalog *catalog.Catalog
	clock   Clock
}

func New(cat *catalog.Catalog, clock Clock) *Scheduler {
	if clock == nil {
		clock = RealClock{}
	}
	return &Scheduler{catalog: cat, clock: clock}
}

// ResolveActiveShow returns the show whose weekly window contains now,
// or nil when the timetable has a gap. Windows are [start, end) on the
// minute; a window whose end precedes its start wraps past midnight.
// Schedules must not overlap: overlaps are flagged, not silently resolved,
// and the first match in catalog order is returned.
func (s *Scheduler) ResolveActiveShow(now time.Time) (*catalog.ShowConfig, error) {
	shows, err := s.catalog.Shows(now)
	if err != nil {
		return nil, err
	}

	minute := now.Hour()*60 + now.Minute()

	var active *catalog.ShowConfig
	for i := range shows {
		show := &shows[i]
		if !show.Schedule.HasDay(now.Weekday()) {
			continue
		}
		if !minuteInWindow(minute, show.Schedule.StartMinute(), show.Schedule.EndMinute()) {
			continue
		}
		if active != nil {
			log.Printf("⚠️ Overlapping schedules: %q and %q both match %s", active.ID, show.ID, now.Format("Mon 15:04"))
			continue
		}
		active = show
	}
	return active, nil
}

// ResolveNextShow finds the show that starts exactly where current ends,
// among shows sharing at least one weekday with it. A nil result means a
// scheduling gap; the caller must not guess.
func (s *Scheduler) ResolveNextShow(now time.Time, current *catalog.ShowConfig) (*catalog.ShowConfig, error) {
	shows, err := s.catalog.Shows(now)
	if err != nil {
		return nil, err
	}

	endMinute := current.Schedule.EndMinute()
	for i := range shows {
		show := &shows[i]
		if show.ID == current.ID {
			continue
		}
		if !sharesWeekday(&current.Schedule, &show.Schedule) {
			continue
		}
		if show.Schedule.StartMinute() == endMinute {
			return show, nil
		}
	}
	return nil, nil
}

// ShowEndTime reconstructs the most recent start instant at or before now
// and adds the show's duration.
func ShowEndTime(show *catalog.ShowConfig, now time.Time) time.Time {
	startMinute := show.Schedule.StartMinute()
	start := time.Date(now.Year(), now.Month(), now.Day(),
		startMinute/60, startMinute%60, 0, 0, now.Location())
	if start.After(now) {
		start = start.AddDate(0, 0, -1)
	}
	return start.Add(show.Schedule.Duration())
}

// IsNearTransition reports whether the show ends within threshold minutes.
// A show that already ended is not near transition.
func IsNearTransition(show *catalog.ShowConfig, now time.Time, threshold time.Duration) bool {
	until := ShowEndTime(show, now).Sub(now)
	return until > 0 && until <= threshold
}

func minuteInWindow(minute, start, end int) bool {
	if start < 0 || end < 0 {
		return false
	}
	if start < end {
		return minute >= start && minute < end
	}
	// Window wraps past midnight
	return minute >= start || minute < end
}

func sharesWeekday(a, b *catalog.Schedule) bool {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if a.HasDay(d) && b.HasDay(d) {
			return true
		}
	}
	return false
}
