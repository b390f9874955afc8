package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"goat-backend/models"
	"goat-backend/providers"
	"goat-backend/storage"
)

// getOrCreate sucht einen Datensatz über seinen natürlichen Schlüssel und legt
// ihn an, falls er fehlt. Das Insert läuft in einem Savepoint, damit eine
// Unique-Verletzung durch eine parallele Anfrage die äußere Transaktion nicht
// abbricht. Danach wird genau einmal erneut gelesen.
func getOrCreate[T any](tx *gorm.DB, key map[string]any, record *T) (*T, error) {
	var existing T
	err := tx.Where(key).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	err = tx.Transaction(func(sp *gorm.DB) error {
		return sp.Create(record).Error
	})
	if err == nil {
		return record, nil
	}
	if !storage.IsUniqueViolation(err) {
		return nil, err
	}

	if err := tx.Where(key).First(&existing).Error; err != nil {
		return nil, &Error{
			Kind:    KindConflict,
			Message: "Conflicting concurrent write, please retry",
			Err:     fmt.Errorf("refetch after unique violation: %w", err),
		}
	}
	return &existing, nil
}

// GetOrCreatePublication liefert die Publikation zur DOI bzw. Pubmed-ID.
func GetOrCreatePublication(tx *gorm.DB, id PublicationID) (*models.Publication, error) {
	if id.DOI != "" {
		doi := id.DOI
		return getOrCreate(tx, map[string]any{"doi": doi}, &models.Publication{DOI: &doi})
	}
	pmid := id.PubmedID
	return getOrCreate(tx, map[string]any{"pubmed_id": pmid}, &models.Publication{PubmedID: &pmid})
}

// GetOrCreateTaxon liefert das Taxon zur NCBI-Taxonomie-ID. Ein vorhandener
// Name wird nicht überschrieben.
func GetOrCreateTaxon(tx *gorm.DB, taxonID int, name string) (*models.Taxon, error) {
	return getOrCreate(tx, map[string]any{"taxon_id": taxonID}, &models.Taxon{TaxonID: taxonID, Name: name})
}

// GetOrCreateSource liefert die externe Quelle mit dem gegebenen Namen.
func GetOrCreateSource(tx *gorm.DB, name string) (*models.ExternalSource, error) {
	return getOrCreate(tx, map[string]any{"name": name}, &models.ExternalSource{Name: name})
}

// GetOrCreateKeywordType liefert den Keyword-Typ (Namensraum) mit dem gegebenen Namen.
func GetOrCreateKeywordType(tx *gorm.DB, name string) (*models.KeywordType, error) {
	return getOrCreate(tx, map[string]any{"name": name}, &models.KeywordType{Name: name})
}

// GetOrCreateKeywordTemp liefert den vorgeschlagenen Begriff eines Einreichers.
func GetOrCreateKeywordTemp(tx *gorm.DB, name string, keywordTypeID, submitterID uint) (*models.KeywordTemp, error) {
	return getOrCreate(tx,
		map[string]any{"name": name, "keyword_type_id": keywordTypeID, "submitter_id": submitterID},
		&models.KeywordTemp{Name: name, KeywordTypeID: keywordTypeID, SubmitterID: submitterID})
}

// GetOrCreateGeneSymbol liefert das Symbol mit gleichem (Locus, Symbol, Name).
// Verschiedene Einreicher können so eigene Aliase an denselben Locus hängen.
func GetOrCreateGeneSymbol(tx *gorm.DB, locusID uint, symbol, fullName string, sourceID *uint, submitterID uint) (*models.GeneSymbol, error) {
	return getOrCreate(tx,
		map[string]any{"locus_id": locusID, "symbol": symbol, "full_name": fullName},
		&models.GeneSymbol{
			LocusID:     locusID,
			Symbol:      symbol,
			FullName:    fullName,
			SourceID:    sourceID,
			SubmitterID: submitterID,
		})
}

// FindLocusName liefert den LocusName samt Locus, oder nil wenn er unbekannt ist.
func FindLocusName(tx *gorm.DB, name string) (*models.LocusName, error) {
	var ln models.LocusName
	err := tx.Preload("Locus").Where("locus_name = ?", name).First(&ln).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ln, nil
}

// GetOrCreateLocus legt Taxon, Quelle, Locus und LocusName für ein
// Ergebnis des LocusResolvers an. Existiert der Name bereits, wird der
// vorhandene LocusName zurückgegeben. Locus und LocusName entstehen im selben
// Savepoint, damit kein verwaister Locus zurückbleibt.
func GetOrCreateLocus(tx *gorm.DB, record *providers.LocusRecord) (*models.LocusName, error) {
	existing, err := FindLocusName(tx, record.LocusName)
	if err != nil || existing != nil {
		return existing, err
	}

	taxon, err := GetOrCreateTaxon(tx, record.TaxonID, record.TaxonName)
	if err != nil {
		return nil, err
	}
	source, err := GetOrCreateSource(tx, record.Source)
	if err != nil {
		return nil, err
	}

	var created models.LocusName
	err = tx.Transaction(func(sp *gorm.DB) error {
		locus := models.Locus{TaxonID: taxon.ID}
		if err := sp.Create(&locus).Error; err != nil {
			return err
		}
		created = models.LocusName{LocusID: locus.ID, SourceID: source.ID, LocusName: record.LocusName}
		if err := sp.Create(&created).Error; err != nil {
			return err
		}
		created.Locus = &locus
		return nil
	})
	if err == nil {
		return &created, nil
	}
	if !storage.IsUniqueViolation(err) {
		return nil, err
	}

	existing, err = FindLocusName(tx, record.LocusName)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, &Error{Kind: KindConflict, Message: "Conflicting concurrent write, please retry"}
	}
	return existing, nil
}
