package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"goat-backend/models"
)

// PageLimit ist die maximale Anzahl Submissions pro Seite.
const PageLimit = 20

// SubmissionSummary ist ein Eintrag der Kurationsliste.
type SubmissionSummary struct {
	ID          uint      `json:"id"`
	Document    string    `json:"document"`
	SubmitterID uint      `json:"submitter_id"`
	CreatedAt   time.Time `json:"submission_date"`
	Total       int64     `json:"total"`
	Pending     int64     `json:"pending"`
}

// Paginate berechnet Offset und Limit. limit <= 0 bedeutet "nicht angegeben"
// bzw. wird auf 1 angehoben; page <= 1 beginnt am Anfang.
func Paginate(page, limit int) (offset, size int) {
	switch {
	case limit == 0 || limit > PageLimit:
		size = PageLimit
	case limit < 1:
		size = 1
	default:
		size = limit
	}
	if page > 1 {
		offset = (page - 1) * size
	}
	return offset, size
}

type annotationCounts struct {
	SubmissionID uint
	Total        int64
	Pending      int64
}

// List liefert die Submissions, neueste zuerst, mit Anzahl aller und offener Annotationen.
func (s *SubmissionService) List(ctx context.Context, page, limit int) ([]SubmissionSummary, error) {
	offset, size := Paginate(page, limit)
	db := s.DB.WithContext(ctx)

	var subs []models.Submission
	err := db.Preload("Publication").
		Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(size).
		Find(&subs).Error
	if err != nil {
		return nil, internalError("listing submissions failed", err)
	}
	if len(subs) == 0 {
		return []SubmissionSummary{}, nil
	}

	ids := make([]uint, len(subs))
	for i, sub := range subs {
		ids[i] = sub.ID
	}
	var counts []annotationCounts
	err = db.Model(&models.Annotation{}).
		Select("submission_id, COUNT(*) AS total, SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS pending", models.StatusPending).
		Where("submission_id IN ?", ids).
		Group("submission_id").
		Scan(&counts).Error
	if err != nil {
		return nil, internalError("counting annotations failed", err)
	}
	byID := make(map[uint]annotationCounts, len(counts))
	for _, c := range counts {
		byID[c.SubmissionID] = c
	}

	summaries := make([]SubmissionSummary, 0, len(subs))
	for _, sub := range subs {
		summary := SubmissionSummary{
			ID:          sub.ID,
			SubmitterID: sub.SubmitterID,
			CreatedAt:   sub.CreatedAt,
			Total:       byID[sub.ID].Total,
			Pending:     byID[sub.ID].Pending,
		}
		if sub.Publication != nil {
			summary.Document = sub.Publication.Document()
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// Get lädt eine Submission mit allen Annotationen und deren Kinddaten.
func (s *SubmissionService) Get(ctx context.Context, id uint) (*models.Submission, error) {
	var sub models.Submission
	err := s.DB.WithContext(ctx).
		Preload("Publication").
		Preload("Annotations", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Annotations.Locus.Names").
		Preload("Annotations.LocusSymbol").
		Preload("Annotations.GeneTerm.Method").
		Preload("Annotations.GeneTerm.MethodTemp").
		Preload("Annotations.GeneTerm.Keyword").
		Preload("Annotations.GeneTerm.KeywordTemp").
		Preload("Annotations.GeneTerm.EvidenceWith.Locus.Names").
		Preload("Annotations.GeneGene.Method").
		Preload("Annotations.GeneGene.MethodTemp").
		Preload("Annotations.GeneGene.Locus2.Names").
		Preload("Annotations.GeneGene.Locus2Symbol").
		Preload("Annotations.Comment").
		First(&sub, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundErrorf("No submission with id %d", id)
	}
	if err != nil {
		return nil, internalError("loading submission failed", err)
	}
	return &sub, nil
}

// RefreshBacklog zählt die offenen Annotationen und aktualisiert die Metrik.
func (s *SubmissionService) RefreshBacklog(ctx context.Context) (int64, error) {
	var pending int64
	err := s.DB.WithContext(ctx).Model(&models.Annotation{}).
		Where("status = ?", models.StatusPending).
		Count(&pending).Error
	if err != nil {
		return 0, err
	}
	pendingAnnotationsGauge.Set(float64(pending))
	return pending, nil
}
