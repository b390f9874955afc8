package services

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"goat-backend/config"
	"goat-backend/models"
)

// GeneInput ist ein Gen im Request. Symbol und voller Name sind optional.
type GeneInput struct {
	LocusName  string `json:"locusName"`
	GeneSymbol string `json:"geneSymbol,omitempty"`
	FullName   string `json:"fullName,omitempty"`
}

// SubmissionRequest ist der vollständige Inhalt einer Einreichung.
type SubmissionRequest struct {
	PublicationID string            `json:"publicationId"`
	Genes         []GeneInput       `json:"genes"`
	Annotations   []AnnotationInput `json:"annotations"`
}

// SubmissionService nimmt Einreichungen entgegen und listet sie für Kuratoren.
type SubmissionService struct {
	Config   *config.Config
	DB       *gorm.DB
	Logger   *zap.Logger
	Resolver *LocusResolver
	Archiver *SubmissionArchiver
}

// NewSubmissionService erstellt einen neuen SubmissionService. archiver darf nil sein.
func NewSubmissionService(cfg *config.Config, db *gorm.DB, logger *zap.Logger, resolver *LocusResolver, archiver *SubmissionArchiver) *SubmissionService {
	return &SubmissionService{
		Config:   cfg,
		DB:       db,
		Logger:   logger.With(zap.String("service", "submission")),
		Resolver: resolver,
		Archiver: archiver,
	}
}

// Submit legt Gene, Publikation, Submission und alle Annotationen in einer
// Transaktion an. Schlägt ein Schritt fehl, bleibt nichts davon bestehen.
func (s *SubmissionService) Submit(ctx context.Context, submitterID uint, req SubmissionRequest) (*models.Submission, error) {
	log := s.Logger.With(zap.Uint("submitter_id", submitterID), zap.String("publication", req.PublicationID))

	sub, err := s.submit(ctx, submitterID, req)
	submissionsCounter.WithLabelValues(resultLabel(err)).Inc()
	if err != nil {
		if KindOf(err) == KindInternal {
			log.Error("Submission fehlgeschlagen", zap.Error(err))
		} else {
			log.Info("Submission abgelehnt", zap.String("kind", KindOf(err).String()), zap.Error(err))
		}
		return nil, err
	}
	log.Info("Submission angelegt", zap.Uint("submission_id", sub.ID), zap.Int("annotations", len(sub.Annotations)))

	if s.Archiver != nil {
		if err := s.Archiver.Archive(ctx, sub.ID, submitterID, req); err != nil {
			log.Warn("Archivierung der Submission fehlgeschlagen", zap.Uint("submission_id", sub.ID), zap.Error(err))
		}
	}
	return sub, nil
}

func (s *SubmissionService) submit(ctx context.Context, submitterID uint, req SubmissionRequest) (*models.Submission, error) {
	if len(req.Genes) == 0 {
		return nil, validationErrorf("No genes specified")
	}
	if len(req.Annotations) == 0 {
		return nil, validationErrorf("No annotations specified")
	}
	for _, g := range req.Genes {
		if g.LocusName == "" {
			return nil, validationErrorf("Body contained malformed Gene data")
		}
	}
	for _, a := range req.Annotations {
		if a.Type == "" || a.Data == nil {
			return nil, validationErrorf("Body contained malformed Annotation data")
		}
	}

	pubID, err := ParsePublicationID(req.PublicationID)
	if err != nil {
		return nil, err
	}

	parsed := make([]*parsedAnnotation, 0, len(req.Annotations))
	for _, in := range req.Annotations {
		p, err := parseAnnotation(in)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, p)
	}

	db := s.DB.WithContext(ctx)
	plan, err := planLoci(ctx, db, s.Resolver, geneLoci(req.Genes), evidenceLoci(parsed))
	if err != nil {
		return nil, err
	}

	var sub models.Submission
	err = db.Transaction(func(tx *gorm.DB) error {
		loci, err := plan.materialize(tx)
		if err != nil {
			return err
		}
		if err := attachGeneSymbols(tx, loci, req.Genes, submitterID); err != nil {
			return err
		}

		pub, err := GetOrCreatePublication(tx, pubID)
		if err != nil {
			return err
		}
		sub = models.Submission{SubmitterID: submitterID, PublicationID: pub.ID}
		if err := tx.Create(&sub).Error; err != nil {
			return err
		}

		fc := newFormatContext(tx, loci, submitterID)
		for _, p := range parsed {
			fc.keywordScope = p.typ.keywordScope
			if err := p.typ.format.verify(fc, &p.data); err != nil {
				return err
			}
		}

		annotations := make([]models.Annotation, 0, len(parsed))
		for _, p := range parsed {
			fc.keywordScope = p.typ.keywordScope
			childID, err := p.typ.format.create(fc, &p.data)
			if err != nil {
				return err
			}
			entry := loci[p.data.LocusName]
			ann := models.Annotation{
				SubmissionID:  sub.ID,
				PublicationID: pub.ID,
				SubmitterID:   submitterID,
				Status:        models.StatusPending,
				Type:          p.input.Type,
				LocusID:       entry.LocusID,
				LocusSymbolID: entry.SymbolID,
			}
			ann.SetChild(p.typ.format.name, childID)
			annotations = append(annotations, ann)
		}

		if err := tx.Omit(clause.Associations).Create(&annotations).Error; err != nil {
			return err
		}
		sub.Annotations = annotations
		return nil
	})
	if err != nil {
		return nil, classify("submission failed", err)
	}
	return &sub, nil
}

// attachGeneSymbols legt für Gene mit Symbol oder vollem Namen ein GeneSymbol an
// und merkt es in der locusMap.
func attachGeneSymbols(tx *gorm.DB, loci locusMap, genes []GeneInput, submitterID uint) error {
	for _, g := range genes {
		if g.GeneSymbol == "" && g.FullName == "" {
			continue
		}
		entry := loci[g.LocusName]
		sourceID := entry.SourceID
		sym, err := GetOrCreateGeneSymbol(tx, entry.LocusID, g.GeneSymbol, g.FullName, &sourceID, submitterID)
		if err != nil {
			return err
		}
		entry.SymbolID = &sym.ID
		setLocusEntry(loci, entry)
	}
	return nil
}
