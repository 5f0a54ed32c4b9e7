package queue

import (
	"fmt"

	"gorm.io/gorm"

	"aurora-radio/internal/models"
)

// RequestStore reads and updates listener requests. A request is consumed
// by at most one segment; marking it used is a single-row update.
type RequestStore struct {
	db *gorm.DB
}

func NewRequestStore(db *gorm.DB) *RequestStore {
	return &RequestStore{db: db}
}

// TopPending returns up to limit pending requests, highest vote count first.
func (r *RequestStore) TopPending(limit int) ([]models.Request, error) {
	var requests []models.Request
	err := r.db.
		Where("status = ?", models.RequestPending).
		Order("votes DESC").
		Limit(limit).
		Find(&requests).Error
	if err != nil {
		return nil, fmt.Errorf("query pending requests: %w", err)
	}
	return requests, nil
}

// MarkUsed transitions a request pending -> used and records which segment
// consumed it.
func (r *RequestStore) MarkUsed(req *models.Request, segmentID string) error {
	err := r.db.Model(req).Updates(map[string]interface{}{
		"status":          models.RequestUsed,
		"used_by_segment": segmentID,
	}).Error
	if err != nil {
		return fmt.Errorf("mark request %d used: %w", req.ID, err)
	}
	return nil
}

// CreateTrack records a generated music track.
func (r *RequestStore) CreateTrack(t *models.Track) error {
	if err := r.db.Create(t).Error; err != nil {
		return fmt.Errorf("create track %q: %w", t.Title, err)
	}
	return nil
}
