package models

import "time"

// Draft speichert den Arbeitsstand einer noch nicht eingereichten Submission.
type Draft struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	SubmitterID uint   `json:"submitter_id" gorm:"index;not null"`
	WipState    string `json:"wip_state" gorm:"type:text;not null"` // JSON-String
}

func (Draft) TableName() string { return "drafts" }
