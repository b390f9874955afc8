package services

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"goat-backend/models"
)

// DraftService verwaltet die Arbeitsstände der Einreicher.
type DraftService struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewDraftService erstellt einen neuen DraftService.
func NewDraftService(db *gorm.DB, logger *zap.Logger) *DraftService {
	return &DraftService{DB: db, Logger: logger}
}

// DraftView ist ein Draft mit dekodiertem Arbeitsstand.
type DraftView struct {
	models.Draft
	WipState json.RawMessage `json:"wip_state"`
}

func newDraftView(d models.Draft) DraftView {
	return DraftView{Draft: d, WipState: json.RawMessage(d.WipState)}
}

// List liefert alle Drafts eines Einreichers.
func (s *DraftService) List(ctx context.Context, submitterID uint) ([]DraftView, error) {
	var drafts []models.Draft
	if err := s.DB.WithContext(ctx).Where("submitter_id = ?", submitterID).Order("id").Find(&drafts).Error; err != nil {
		return nil, internalError("listing drafts failed", err)
	}
	views := make([]DraftView, 0, len(drafts))
	for _, d := range drafts {
		views = append(views, newDraftView(d))
	}
	return views, nil
}

// Create speichert einen neuen Draft. wipState muss gültiges, nicht leeres JSON sein.
func (s *DraftService) Create(ctx context.Context, submitterID uint, wipState json.RawMessage) (*DraftView, error) {
	if len(wipState) == 0 || string(wipState) == "null" || !json.Valid(wipState) {
		return nil, validationErrorf("Draft (wip state) is missing or invalid")
	}
	draft := models.Draft{SubmitterID: submitterID, WipState: string(wipState)}
	if err := s.DB.WithContext(ctx).Create(&draft).Error; err != nil {
		return nil, internalError("creating draft failed", err)
	}
	view := newDraftView(draft)
	return &view, nil
}

// Delete löscht einen Draft, sofern er dem Einreicher gehört.
func (s *DraftService) Delete(ctx context.Context, submitterID, id uint) (*DraftView, error) {
	db := s.DB.WithContext(ctx)
	var draft models.Draft
	err := db.First(&draft, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundErrorf("No draft with id %d found", id)
	}
	if err != nil {
		return nil, internalError("loading draft failed", err)
	}
	if draft.SubmitterID != submitterID {
		s.Logger.Info("Draft gehört anderem Einreicher", zap.Uint("draft_id", id), zap.Uint("submitter_id", submitterID))
		return nil, &Error{Kind: KindForbidden, Message: "Unauthorized to delete this draft"}
	}
	if err := db.Delete(&draft).Error; err != nil {
		return nil, internalError("deleting draft failed", err)
	}
	view := newDraftView(draft)
	return &view, nil
}
