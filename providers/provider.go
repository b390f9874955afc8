// Package providers enthält die Schnittstellen zu externen Datenbanken.
package providers

import (
	"context"
	"errors"
)

// Namen der externen Quellen, wie sie in external_sources gespeichert werden.
const (
	SourceTAIR       = "TAIR"
	SourceUniprot    = "Uniprot"
	SourceRNACentral = "RNA Central"
)

// ErrLocusNotFound signalisiert, dass eine Quelle den Locus nicht kennt.
// Transport- und Parse-Fehler dürfen nie als ErrLocusNotFound gemeldet werden.
var ErrLocusNotFound = errors.New("no locus found")

// ErrPublicationNotFound signalisiert, dass eine Publikationsquelle die Kennung nicht kennt.
var ErrPublicationNotFound = errors.New("no publication found")

// LocusRecord ist das standardisierte Ergebnis einer Locus-Suche.
type LocusRecord struct {
	Source    string `json:"source"`
	LocusName string `json:"locus_name"`
	TaxonID   int    `json:"taxon_id"`
	TaxonName string `json:"taxon_name"`
}

// LocusProvider ist das Interface, das jede Gen-Datenbank (TAIR, Uniprot, RNA Central) implementieren muss.
type LocusProvider interface {
	// LookupLocus sucht einen Locus über seinen Namen.
	LookupLocus(ctx context.Context, name string) (*LocusRecord, error)

	// Name gibt den Namen der Quelle zurück (z.B. "TAIR").
	Name() string
}

// PublicationRecord ist das standardisierte Ergebnis einer Publikationssuche.
type PublicationRecord struct {
	Type   string `json:"type"` // doi oder pubmed_id
	ID     string `json:"id"`
	Title  string `json:"title,omitempty"`
	Author string `json:"author,omitempty"`
	URL    string `json:"url,omitempty"`
}

// PublicationProvider prüft, ob eine Publikationskennung existiert.
type PublicationProvider interface {
	LookupPublication(ctx context.Context, id string) (*PublicationRecord, error)
	Name() string
}
