package models

import "time"

// Submission gruppiert die Annotationen, die ein Einreicher gemeinsam zu
// einer Publikation eingereicht hat.
type Submission struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`

	SubmitterID   uint         `json:"submitter_id" gorm:"index;not null"`
	PublicationID uint         `json:"publication_id" gorm:"index;not null"`
	Publication   *Publication `json:"publication,omitempty"`

	Annotations []Annotation `json:"annotations,omitempty" gorm:"foreignKey:SubmissionID"`
}

func (Submission) TableName() string { return "submissions" }
