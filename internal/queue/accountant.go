package queue

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"aurora-radio/internal/models"
	"aurora-radio/internal/schedule"
)

// Accountant owns the scheduled-segment rows: it is the only writer of the
// queue and the component that decides when the buffer needs topping up.
type Accountant struct {
	db    *gorm.DB
	clock schedule.Clock
}

// ReplenishmentDecision is the outcome of a buffer-depth check.
type ReplenishmentDecision struct {
	Needed         bool
	CurrentMinutes float64
	TargetMinutes  float64
	MinutesNeeded  float64
}

func NewAccountant(db *gorm.DB, clock schedule.Clock) *Accountant {
	if clock == nil {
		clock = schedule.RealClock{}
	}
	return &Accountant{db: db, clock: clock}
}

// QueuedMinutes sums segment lengths in minutes.
func QueuedMinutes(segments []models.Segment) float64 {
	var total float64
	for i := range segments {
		total += segments[i].EndTime.Sub(segments[i].StartTime).Minutes()
	}
	return total
}

// SegmentsInWindow returns segments whose start falls within
// [now, now+bufferMinutes], ordered by start time.
func (a *Accountant) SegmentsInWindow(bufferMinutes int) ([]models.Segment, error) {
	now := a.clock.Now()
	until := now.Add(time.Duration(bufferMinutes) * time.Minute)

	var segments []models.Segment
	err := a.db.
		Where("start_time >= ? AND start_time <= ?", now, until).
		Order("start_time ASC").
		Find(&segments).Error
	if err != nil {
		return nil, fmt.Errorf("query buffer window: %w", err)
	}
	return segments, nil
}

// NeedsReplenishment compares the minutes queued inside the lookahead
// window against the configured minimum depth.
func (a *Accountant) NeedsReplenishment(bufferMinutes, minDepthMinutes int) (ReplenishmentDecision, error) {
	segments, err := a.SegmentsInWindow(bufferMinutes)
	if err != nil {
		return ReplenishmentDecision{}, err
	}

	current := QueuedMinutes(segments)
	target := float64(minDepthMinutes)
	needed := target - current
	if needed < 0 {
		needed = 0
	}
	return ReplenishmentDecision{
		Needed:         current < target,
		CurrentMinutes: current,
		TargetMinutes:  target,
		MinutesNeeded:  needed,
	}, nil
}

// NextAvailableSlot is the end time of the latest future segment, or now
// when nothing is queued ahead. New segments appended here never overlap.
func (a *Accountant) NextAvailableSlot() (time.Time, error) {
	now := a.clock.Now()

	var latest models.Segment
	err := a.db.
		Where("end_time > ?", now).
		Order("end_time DESC").
		First(&latest).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return now, nil
		}
		return time.Time{}, fmt.Errorf("query latest segment: %w", err)
	}
	return latest.EndTime, nil
}

// ScheduleSegment persists a new segment at the tail of the queue.
func (a *Accountant) ScheduleSegment(seg *models.Segment) error {
	if err := a.db.Create(seg).Error; err != nil {
		return fmt.Errorf("schedule segment %s: %w", seg.SegmentID, err)
	}
	return nil
}

// RecentSegments returns the most recently scheduled segments, newest first.
// Used by the ratio enforcer's talk-gap back-pressure check.
func (a *Accountant) RecentSegments(limit int) ([]models.Segment, error) {
	var segments []models.Segment
	err := a.db.Order("end_time DESC").Limit(limit).Find(&segments).Error
	if err != nil {
		return nil, fmt.Errorf("query recent segments: %w", err)
	}
	return segments, nil
}

// CurrentSegment returns the segment on air right now, or nil when the
// queue has run dry.
func (a *Accountant) CurrentSegment() (*models.Segment, error) {
	now := a.clock.Now()
	var seg models.Segment
	err := a.db.
		Where("start_time <= ? AND end_time > ?", now, now).
		Order("start_time DESC").
		First(&seg).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("query current segment: %w", err)
	}
	return &seg, nil
}

// HandoverExists reports whether a handover segment is already scheduled
// to end at the given show boundary. Guards against generating the same
// transition twice.
func (a *Accountant) HandoverExists(boundary time.Time) (bool, error) {
	var count int64
	err := a.db.Model(&models.Segment{}).
		Where("type = ? AND end_time = ?", models.SegmentHandover, boundary).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("query handover segments: %w", err)
	}
	return count > 0, nil
}

// DeleteOlderThan drops segments that ended before the cutoff. Returns the
// number of rows removed.
func (a *Accountant) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res := a.db.Where("end_time < ?", cutoff).Delete(&models.Segment{})
	if res.Error != nil {
		return 0, fmt.Errorf("retention delete: %w", res.Error)
	}
	return res.RowsAffected, nil
}
