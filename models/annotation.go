package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// AnnotationStatus ist der Kurationsstatus einer Annotation.
type AnnotationStatus string

const (
	StatusPending  AnnotationStatus = "pending"
	StatusAccepted AnnotationStatus = "accepted"
	StatusRejected AnnotationStatus = "rejected"
)

// AnnotationStatuses sind alle bekannten Status in Kurationsreihenfolge.
var AnnotationStatuses = []AnnotationStatus{StatusPending, StatusAccepted, StatusRejected}

// Valid meldet, ob der Status bekannt ist.
func (s AnnotationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

// AnnotationFormat ist der Diskriminator für die Kinddaten einer Annotation.
type AnnotationFormat string

const (
	FormatGeneTerm AnnotationFormat = "gene_term_annotation"
	FormatGeneGene AnnotationFormat = "gene_gene_annotation"
	FormatComment  AnnotationFormat = "comment_annotation"
)

// MaxCommentLength ist die maximale Länge eines Kommentars in Zeichen.
const MaxCommentLength = 2000

// Annotation ist die kuratierbare Aussage über einen Locus. Genau eine der
// Kind-Referenzen ist gesetzt, passend zu Format.
type Annotation struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	SubmissionID  uint             `json:"submission_id" gorm:"index;not null"`
	PublicationID uint             `json:"publication_id" gorm:"index;not null"`
	Publication   *Publication     `json:"publication,omitempty"`
	SubmitterID   uint             `json:"submitter_id" gorm:"index;not null"`
	Status        AnnotationStatus `json:"status" gorm:"type:varchar(16);index;not null;default:'pending'"`
	Type          string           `json:"type" gorm:"type:varchar(64);not null"` // z.B. MOLECULAR_FUNCTION
	Format        AnnotationFormat `json:"format" gorm:"type:varchar(32);not null"`

	LocusID       uint        `json:"locus_id" gorm:"index;not null"`
	Locus         *Locus      `json:"locus,omitempty"`
	LocusSymbolID *uint       `json:"locus_symbol_id,omitempty"`
	LocusSymbol   *GeneSymbol `json:"locus_symbol,omitempty" gorm:"foreignKey:LocusSymbolID"`

	GeneTermID *uint               `json:"gene_term_id,omitempty"`
	GeneTerm   *GeneTermAnnotation `json:"gene_term,omitempty" gorm:"foreignKey:GeneTermID"`
	GeneGeneID *uint               `json:"gene_gene_id,omitempty"`
	GeneGene   *GeneGeneAnnotation `json:"gene_gene,omitempty" gorm:"foreignKey:GeneGeneID"`
	CommentID  *uint               `json:"comment_id,omitempty"`
	Comment    *CommentAnnotation  `json:"comment,omitempty" gorm:"foreignKey:CommentID"`
}

func (Annotation) TableName() string { return "annotations" }

// ChildID gibt die ID der Kinddaten für das aktuelle Format zurück.
func (a *Annotation) ChildID() (uint, bool) {
	var ref *uint
	switch a.Format {
	case FormatGeneTerm:
		ref = a.GeneTermID
	case FormatGeneGene:
		ref = a.GeneGeneID
	case FormatComment:
		ref = a.CommentID
	}
	if ref == nil {
		return 0, false
	}
	return *ref, true
}

// SetChild setzt Format und Kind-Referenz und löscht die übrigen Referenzen.
func (a *Annotation) SetChild(format AnnotationFormat, id uint) {
	a.Format = format
	a.GeneTermID, a.GeneGeneID, a.CommentID = nil, nil, nil
	a.GeneTerm, a.GeneGene, a.Comment = nil, nil, nil
	switch format {
	case FormatGeneTerm:
		a.GeneTermID = &id
	case FormatGeneGene:
		a.GeneGeneID = &id
	case FormatComment:
		a.CommentID = &id
	}
}

// CheckChild prüft, dass genau die zum Format passende Kind-Referenz gesetzt ist.
func (a *Annotation) CheckChild() error {
	set := 0
	for _, ref := range []*uint{a.GeneTermID, a.GeneGeneID, a.CommentID} {
		if ref != nil {
			set++
		}
	}
	if _, ok := a.ChildID(); !ok || set != 1 {
		return fmt.Errorf("annotation %d: format %q passt nicht zu den Kinddaten", a.ID, a.Format)
	}
	return nil
}

// BeforeSave verhindert, dass eine Annotation ohne passende Kinddaten gespeichert wird.
func (a *Annotation) BeforeSave(tx *gorm.DB) error {
	return a.CheckChild()
}

// GeneTermAnnotation verknüpft einen Locus mit einem Begriff (Methode + Keyword).
// Methode und Keyword referenzieren entweder ein Keyword oder ein KeywordTemp.
type GeneTermAnnotation struct {
	ID uint `json:"id" gorm:"primaryKey"`

	MethodID      *uint        `json:"method_id,omitempty"`
	Method        *Keyword     `json:"method,omitempty" gorm:"foreignKey:MethodID"`
	MethodTempID  *uint        `json:"method_temp_id,omitempty"`
	MethodTemp    *KeywordTemp `json:"method_temp,omitempty" gorm:"foreignKey:MethodTempID"`
	KeywordID     *uint        `json:"keyword_id,omitempty"`
	Keyword       *Keyword     `json:"keyword,omitempty" gorm:"foreignKey:KeywordID"`
	KeywordTempID *uint        `json:"keyword_temp_id,omitempty"`
	KeywordTemp   *KeywordTemp `json:"keyword_temp,omitempty" gorm:"foreignKey:KeywordTempID"`

	IsEvidenceWithOr bool           `json:"is_evidence_with_or" gorm:"default:false"`
	EvidenceWith     []EvidenceWith `json:"evidence_with,omitempty" gorm:"foreignKey:GeneTermAnnotationID"`
}

func (GeneTermAnnotation) TableName() string { return "gene_term_annotations" }

// EvidenceWith ist ein zusätzlicher Locus, der als Evidenz für eine
// GeneTermAnnotation dient.
type EvidenceWith struct {
	ID uint `json:"id" gorm:"primaryKey"`

	GeneTermAnnotationID uint   `json:"gene_term_annotation_id" gorm:"index;not null"`
	LocusID              uint   `json:"locus_id" gorm:"not null"`
	Locus                *Locus `json:"locus,omitempty"`
}

func (EvidenceWith) TableName() string { return "evidence_with" }

// GeneGeneAnnotation beschreibt eine Interaktion mit einem zweiten Locus.
type GeneGeneAnnotation struct {
	ID uint `json:"id" gorm:"primaryKey"`

	MethodID       *uint        `json:"method_id,omitempty"`
	Method         *Keyword     `json:"method,omitempty" gorm:"foreignKey:MethodID"`
	MethodTempID   *uint        `json:"method_temp_id,omitempty"`
	MethodTemp     *KeywordTemp `json:"method_temp,omitempty" gorm:"foreignKey:MethodTempID"`
	Locus2ID       uint         `json:"locus2_id" gorm:"not null"`
	Locus2         *Locus       `json:"locus2,omitempty" gorm:"foreignKey:Locus2ID"`
	Locus2SymbolID *uint        `json:"locus2_symbol_id,omitempty"`
	Locus2Symbol   *GeneSymbol  `json:"locus2_symbol,omitempty" gorm:"foreignKey:Locus2SymbolID"`
}

func (GeneGeneAnnotation) TableName() string { return "gene_gene_annotations" }

// CommentAnnotation ist ein Freitext-Kommentar zu einem Locus.
type CommentAnnotation struct {
	ID uint `json:"id" gorm:"primaryKey"`

	Text string `json:"text" gorm:"type:varchar(2000);not null"`
}

func (CommentAnnotation) TableName() string { return "comment_annotations" }
