package models

import "time"

// Taxon ist ein Organismus, identifiziert über die NCBI-Taxonomie-ID.
type Taxon struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	TaxonID int    `json:"taxon_id" gorm:"uniqueIndex;not null"`
	Name    string `json:"name" gorm:"not null"`
}

func (Taxon) TableName() string { return "taxa" }

// ExternalSource ist eine externe Gen-Datenbank (z.B. "TAIR").
type ExternalSource struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	Name string `json:"name" gorm:"uniqueIndex;not null"`
}

func (ExternalSource) TableName() string { return "external_sources" }

// Locus repräsentiert ein Gen bzw. Transkript in genau einem Taxon.
type Locus struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	TaxonID uint   `json:"taxon_id" gorm:"index;not null"`
	Taxon   *Taxon `json:"taxon,omitempty"`

	Names   []LocusName  `json:"names,omitempty" gorm:"foreignKey:LocusID"`
	Symbols []GeneSymbol `json:"symbols,omitempty" gorm:"foreignKey:LocusID"`
}

func (Locus) TableName() string { return "loci" }

// LocusName ist die Kennung eines Locus in einer externen Quelle, z.B. "AT1G10000".
// Pro (Locus, Quelle) existiert höchstens ein Name.
type LocusName struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	LocusID   uint            `json:"locus_id" gorm:"not null;uniqueIndex:idx_locus_names_locus_source,priority:1"`
	Locus     *Locus          `json:"locus,omitempty"`
	SourceID  uint            `json:"source_id" gorm:"not null;uniqueIndex:idx_locus_names_locus_source,priority:2"`
	Source    *ExternalSource `json:"source,omitempty"`
	LocusName string          `json:"locus_name" gorm:"column:locus_name;uniqueIndex;not null"`
}

func (LocusName) TableName() string { return "locus_names" }

// GeneSymbol ist ein Anzeigename eines Locus, beigetragen von einem Einreicher.
// Eindeutig über (locus_id, symbol, full_name).
type GeneSymbol struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	LocusID     uint   `json:"locus_id" gorm:"not null;uniqueIndex:idx_gene_symbols_identity,priority:1"`
	Symbol      string `json:"symbol" gorm:"not null;uniqueIndex:idx_gene_symbols_identity,priority:2"`
	FullName    string `json:"full_name" gorm:"not null;uniqueIndex:idx_gene_symbols_identity,priority:3"`
	SourceID    *uint  `json:"source_id,omitempty"`
	SubmitterID uint   `json:"submitter_id" gorm:"not null"`
}

func (GeneSymbol) TableName() string { return "gene_symbols" }
