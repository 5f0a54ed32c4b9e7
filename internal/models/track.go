package models

import "gorm.io/gorm"

// Track represents a generated music file on disk.
type Track struct {
	gorm.Model

	Title    string `gorm:"index"`
	ShowID   string `gorm:"index"`
	FilePath string `gorm:"uniqueIndex;not null"`
	Prompt   string

	Duration float64 // seconds
	Fallback bool    `gorm:"default:false"` // stub substituted after a generation failure
}
