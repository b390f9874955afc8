package services

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"goat-backend/config"
	"goat-backend/models"
	"goat-backend/storage"
)

// CurationRequest enthält den kuratierten Stand einer Submission. Jede
// gespeicherte Annotation muss darin vorkommen.
type CurationRequest struct {
	PublicationID string            `json:"publicationId,omitempty"`
	Genes         []GeneInput       `json:"genes"`
	Annotations   []AnnotationInput `json:"annotations"`
}

// CurationService übernimmt Statusänderungen und Korrekturen von Kuratoren.
type CurationService struct {
	Config   *config.Config
	DB       *gorm.DB
	Logger   *zap.Logger
	Resolver *LocusResolver
}

// NewCurationService erstellt einen neuen CurationService.
func NewCurationService(cfg *config.Config, db *gorm.DB, logger *zap.Logger, resolver *LocusResolver) *CurationService {
	return &CurationService{
		Config:   cfg,
		DB:       db,
		Logger:   logger.With(zap.String("service", "curation")),
		Resolver: resolver,
	}
}

var formatsByName = map[models.AnnotationFormat]*annotationFormat{
	models.FormatGeneTerm: geneTermFormat,
	models.FormatGeneGene: geneGeneFormat,
	models.FormatComment:  commentFormat,
}

type curatedAnnotation struct {
	*parsedAnnotation
	id     uint
	status models.AnnotationStatus
}

// Curate wendet den kuratierten Stand auf eine Submission an. Alle
// Änderungen laufen in einer Transaktion.
func (s *CurationService) Curate(ctx context.Context, submissionID, curatorID uint, req CurationRequest) error {
	log := s.Logger.With(zap.Uint("submission_id", submissionID), zap.Uint("curator_id", curatorID))

	err := s.curate(ctx, submissionID, req)
	curationsCounter.WithLabelValues(resultLabel(err)).Inc()
	if err != nil {
		if KindOf(err) == KindInternal {
			log.Error("Kuration fehlgeschlagen", zap.Error(err))
		} else {
			log.Info("Kuration abgelehnt", zap.String("kind", KindOf(err).String()), zap.Error(err))
		}
		return err
	}
	log.Info("Submission kuratiert", zap.Int("annotations", len(req.Annotations)))
	return nil
}

// parseCuration prüft den Request ohne I/O.
func parseCuration(req CurationRequest) ([]curatedAnnotation, *PublicationID, error) {
	for _, g := range req.Genes {
		if g.LocusName == "" {
			return nil, nil, validationErrorf("Body contained malformed Gene data")
		}
	}

	curated := make([]curatedAnnotation, 0, len(req.Annotations))
	for _, in := range req.Annotations {
		if in.ID == nil || in.Status == "" {
			return nil, nil, validationErrorf("All curated annotations need a status and an id")
		}
		if !in.Status.Valid() {
			return nil, nil, validationErrorf("Invalid annotation status %s", in.Status)
		}
		p, err := parseAnnotation(in)
		if err != nil {
			return nil, nil, err
		}
		if in.Status == models.StatusAccepted {
			for _, ref := range []*KeywordRef{p.data.Method, p.data.Keyword} {
				if ref != nil && ref.ID == nil {
					return nil, nil, validationErrorf("All keywords have to have valid external ids")
				}
			}
		}
		curated = append(curated, curatedAnnotation{parsedAnnotation: p, id: *in.ID, status: in.Status})
	}

	if req.PublicationID == "" {
		return curated, nil, nil
	}
	pubID, err := ParsePublicationID(req.PublicationID)
	if err != nil {
		return nil, nil, err
	}
	return curated, &pubID, nil
}

func (s *CurationService) curate(ctx context.Context, submissionID uint, req CurationRequest) error {
	curated, pubID, err := parseCuration(req)
	if err != nil {
		return err
	}

	db := s.DB.WithContext(ctx)
	var sub models.Submission
	err = db.Preload("Annotations.GeneGene").First(&sub, submissionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundErrorf("No submission with id %d", submissionID)
	}
	if err != nil {
		return internalError("loading submission failed", err)
	}

	stored := make(map[uint]*models.Annotation, len(sub.Annotations))
	for i := range sub.Annotations {
		stored[sub.Annotations[i].ID] = &sub.Annotations[i]
	}
	seen := make(map[uint]bool, len(curated))
	for _, c := range curated {
		if stored[c.id] == nil || seen[c.id] {
			return referenceErrorf("All annotations must be part of this submission")
		}
		seen[c.id] = true
	}
	if len(seen) != len(stored) {
		return referenceErrorf("All annotations must be part of this submission")
	}

	storedNames, err := submissionLocusNames(db, sub.Annotations)
	if err != nil {
		return internalError("loading submission loci failed", err)
	}
	parsed := make([]*parsedAnnotation, len(curated))
	for i := range curated {
		parsed[i] = curated[i].parsedAnnotation
	}
	plan, err := planLoci(ctx, db, s.Resolver, append(storedNames, geneLoci(req.Genes)...), evidenceLoci(parsed))
	if err != nil {
		return err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		loci, err := plan.materialize(tx)
		if err != nil {
			return err
		}
		seedStoredSymbols(loci, sub.Annotations)
		if err := updateGeneSymbols(tx, loci, req.Genes, sub.SubmitterID); err != nil {
			return err
		}

		if pubID != nil {
			if err := repointPublication(tx, &sub, *pubID); err != nil {
				return err
			}
		}

		fc := newFormatContext(tx, loci, sub.SubmitterID)
		for _, c := range curated {
			fc.keywordScope = c.typ.keywordScope
			if err := c.typ.format.verify(fc, &c.data); err != nil {
				return err
			}
		}
		for _, c := range curated {
			if err := applyCuration(fc, stored[c.id], c); err != nil {
				return err
			}
		}
		return nil
	})
	return classify("curation failed", err)
}

// applyCuration schreibt eine einzelne kuratierte Annotation. Bei geändertem
// Format oder fehlenden Kinddaten wird das neue Kind angelegt, bevor das alte
// gelöscht wird.
func applyCuration(fc *formatContext, ann *models.Annotation, c curatedAnnotation) error {
	fc.keywordScope = c.typ.keywordScope
	newFormat := c.typ.format
	oldChildID, hasChild := ann.ChildID()
	oldFormat := formatsByName[ann.Format]
	if !hasChild {
		oldFormat = nil
	}

	entry := fc.loci[c.data.LocusName]
	ann.Status = c.status
	ann.Type = c.input.Type
	ann.LocusID = entry.LocusID
	ann.LocusSymbolID = entry.SymbolID

	if oldFormat == newFormat {
		if err := newFormat.update(fc, oldChildID, &c.data); err != nil {
			return err
		}
		return fc.tx.Omit(clause.Associations).Save(ann).Error
	}

	newChildID, err := newFormat.create(fc, &c.data)
	if err != nil {
		return err
	}
	ann.SetChild(newFormat.name, newChildID)
	if err := fc.tx.Omit(clause.Associations).Save(ann).Error; err != nil {
		return err
	}
	if oldFormat != nil {
		return oldFormat.remove(fc, oldChildID)
	}
	return nil
}

// submissionLocusNames liefert die Namen aller Loci, die die Annotationen
// einer Submission referenzieren. GeneGene muss vorgeladen sein.
func submissionLocusNames(db *gorm.DB, annotations []models.Annotation) ([]string, error) {
	locusIDs := make([]uint, 0, len(annotations))
	for _, a := range annotations {
		locusIDs = append(locusIDs, a.LocusID)
		if a.GeneGene != nil {
			locusIDs = append(locusIDs, a.GeneGene.Locus2ID)
		}
	}
	if len(locusIDs) == 0 {
		return nil, nil
	}

	var names []string
	err := db.Model(&models.LocusName{}).Where("locus_id IN ?", locusIDs).Order("id").Pluck("locus_name", &names).Error
	return names, err
}

// seedStoredSymbols übernimmt die bisher referenzierten Gensymbole in die
// locusMap, auch die des zweiten Locus einer GeneGeneAnnotation.
func seedStoredSymbols(loci locusMap, annotations []models.Annotation) {
	symbols := make(map[uint]*uint)
	remember := func(locusID uint, symbolID *uint) {
		if symbolID == nil {
			return
		}
		if _, ok := symbols[locusID]; !ok {
			id := *symbolID
			symbols[locusID] = &id
		}
	}
	for _, a := range annotations {
		remember(a.LocusID, a.LocusSymbolID)
	}
	for _, a := range annotations {
		if a.GeneGene != nil {
			remember(a.GeneGene.Locus2ID, a.GeneGene.Locus2SymbolID)
		}
	}
	for name, entry := range loci {
		if sym, ok := symbols[entry.LocusID]; ok && entry.SymbolID == nil {
			entry.SymbolID = sym
			loci[name] = entry
		}
	}
}

// updateGeneSymbols ändert das referenzierte GeneSymbol direkt. Kollidiert der
// neue Wert mit einem vorhandenen Symbol, wird stattdessen dieses verwendet.
func updateGeneSymbols(tx *gorm.DB, loci locusMap, genes []GeneInput, submitterID uint) error {
	for _, g := range genes {
		if g.GeneSymbol == "" && g.FullName == "" {
			continue
		}
		entry := loci[g.LocusName]
		sourceID := entry.SourceID

		if entry.SymbolID == nil {
			sym, err := GetOrCreateGeneSymbol(tx, entry.LocusID, g.GeneSymbol, g.FullName, &sourceID, submitterID)
			if err != nil {
				return err
			}
			entry.SymbolID = &sym.ID
			setLocusEntry(loci, entry)
			continue
		}

		err := tx.Transaction(func(sp *gorm.DB) error {
			return sp.Model(&models.GeneSymbol{ID: *entry.SymbolID}).
				Updates(map[string]any{"symbol": g.GeneSymbol, "full_name": g.FullName}).Error
		})
		if err == nil {
			continue
		}
		if !storage.IsUniqueViolation(err) {
			return err
		}
		sym, err := GetOrCreateGeneSymbol(tx, entry.LocusID, g.GeneSymbol, g.FullName, &sourceID, submitterID)
		if err != nil {
			return err
		}
		entry.SymbolID = &sym.ID
		setLocusEntry(loci, entry)
	}
	return nil
}

// setLocusEntry übernimmt das Symbol von entry für alle Namen, die auf
// denselben Locus zeigen.
func setLocusEntry(loci locusMap, entry locusEntry) {
	for name, e := range loci {
		if e.LocusID == entry.LocusID {
			e.SymbolID = entry.SymbolID
			loci[name] = e
		}
	}
}

// repointPublication hängt Submission und Annotationen an die (ggf. neue) Publikation.
func repointPublication(tx *gorm.DB, sub *models.Submission, id PublicationID) error {
	pub, err := GetOrCreatePublication(tx, id)
	if err != nil {
		return err
	}
	if pub.ID == sub.PublicationID {
		return nil
	}
	if err := tx.Model(&models.Submission{}).Where("id = ?", sub.ID).UpdateColumn("publication_id", pub.ID).Error; err != nil {
		return err
	}
	if err := tx.Model(&models.Annotation{}).Where("submission_id = ?", sub.ID).UpdateColumn("publication_id", pub.ID).Error; err != nil {
		return err
	}
	sub.PublicationID = pub.ID
	for i := range sub.Annotations {
		sub.Annotations[i].PublicationID = pub.ID
	}
	return nil
}
