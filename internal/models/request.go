package models

import "gorm.io/gorm"

// RequestKind distinguishes what a listener asked for.
type RequestKind string

const (
	RequestMusic RequestKind = "music"
	RequestTalk  RequestKind = "talk"
)

// Request statuses. A request moves pending -> used exactly once.
const (
	RequestPending = "pending"
	RequestUsed    = "used"
)

// Request is a listener-submitted prompt or topic awaiting airtime.
type Request struct {
	gorm.Model

	Kind   RequestKind `gorm:"index;not null"`
	Prompt string      `gorm:"not null"`
	Votes  int         `gorm:"index;default:0"`
	Status string      `gorm:"index;default:'pending'"`

	// Segment that consumed this request, set when Status becomes used.
	UsedBySegment string
}
