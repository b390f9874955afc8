package models

import "time"

// Publication ist die Literaturreferenz einer Submission. Genau eines von DOI
// und PubmedID ist gesetzt.
type Publication struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	DOI      *string `json:"doi,omitempty" gorm:"column:doi;uniqueIndex"`
	PubmedID *string `json:"pubmed_id,omitempty" gorm:"column:pubmed_id;uniqueIndex"`
}

// TableName gibt explizit den Tabellennamen an.
func (Publication) TableName() string {
	return "publications"
}

// Document gibt die gesetzte Kennung zurück (DOI bevorzugt).
func (p *Publication) Document() string {
	if p.DOI != nil && *p.DOI != "" {
		return *p.DOI
	}
	if p.PubmedID != nil {
		return *p.PubmedID
	}
	return ""
}
