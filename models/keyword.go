package models

import "time"

// KeywordType ist der Namensraum eines kontrollierten Vokabulars,
// z.B. "molecular_function" oder "eco".
type KeywordType struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	Name string `json:"name" gorm:"uniqueIndex;not null"`
}

func (KeywordType) TableName() string { return "keyword_types" }

// Keyword ist ein bestätigter Begriff (z.B. GO-Term).
type Keyword struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	KeywordTypeID uint         `json:"keyword_type_id" gorm:"index;not null"`
	KeywordType   *KeywordType `json:"keyword_type,omitempty"`
	Name          string       `json:"name" gorm:"index"`
	ExternalID    *string      `json:"external_id,omitempty" gorm:"uniqueIndex"`
	IsObsolete    bool         `json:"is_obsolete" gorm:"default:false"`
}

func (Keyword) TableName() string { return "keywords" }

// KeywordTemp ist ein von Forschenden vorgeschlagener Begriff, der noch
// nicht im Vokabular existiert und auf die Bestätigung durch Kuratoren wartet.
type KeywordTemp struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	Name          string       `json:"name" gorm:"not null;uniqueIndex:idx_keyword_temps_identity,priority:1"`
	KeywordTypeID uint         `json:"keyword_type_id" gorm:"not null;uniqueIndex:idx_keyword_temps_identity,priority:2"`
	KeywordType   *KeywordType `json:"keyword_type,omitempty"`
	SubmitterID   uint         `json:"submitter_id" gorm:"not null;uniqueIndex:idx_keyword_temps_identity,priority:3"`
	ConfirmedAsID *uint        `json:"confirmed_as_id,omitempty"`
}

func (KeywordTemp) TableName() string { return "keyword_temps" }
