package models

import "time"

// Student represents a learner whose papers can be evaluated.
type Student struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	ExternalRef string    `gorm:"size:64;index" json:"external_ref"`
	Class       string    `gorm:"size:64" json:"class"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
