package models

import (
	"time"

	"gorm.io/gorm"
)

// SegmentType classifies a scheduled unit of audio.
type SegmentType string

const (
	SegmentMusic    SegmentType = "music"
	SegmentTalk     SegmentType = "talk"
	SegmentIdent    SegmentType = "ident"
	SegmentHandover SegmentType = "handover"
)

// IsSpoken reports whether the segment counts as talk time for ratio math.
// Idents and handovers are spoken content even though they are tracked
// separately for diagnostics.
func (t SegmentType) IsSpoken() bool {
	return t == SegmentTalk || t == SegmentIdent || t == SegmentHandover
}

// Segment is one scheduled unit of audio in the playout queue.
// Segments are immutable after creation; retention cleanup may delete them.
type Segment struct {
	gorm.Model

	SegmentID string      `gorm:"uniqueIndex;not null"` // UUID
	ShowID    string      `gorm:"index;not null"`
	Type      SegmentType `gorm:"index;not null"`
	Title     string

	FilePath  string    `gorm:"not null"`
	StartTime time.Time `gorm:"index;not null"`
	EndTime   time.Time `gorm:"index;not null"`

	// Optional provenance
	TrackID   *uint `gorm:"index"`
	RequestID *uint `gorm:"index"`
}

// DurationSeconds returns the scheduled length of the segment.
func (s *Segment) DurationSeconds() float64 {
	return s.EndTime.Sub(s.StartTime).Seconds()
}
