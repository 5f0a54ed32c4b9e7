package models

import (
	"time"

	"gorm.io/gorm"
)

// ArchiveEntry maps a recorded segment to its byte position inside an
// hourly archive file. The index is append-only and is the sole source of
// truth for "where in which file"; an offset is meaningless outside the
// file named here.
type ArchiveEntry struct {
	gorm.Model

	SegmentID string `gorm:"uniqueIndex;not null"`
	ShowID    string `gorm:"index"`
	Type      SegmentType

	FilePath string `gorm:"index;not null"` // hourly archive file
	Offset   int64  `gorm:"not null"`       // archive file length before this append
	Duration float64

	StartTime time.Time `gorm:"index"`
	EndTime   time.Time
}
