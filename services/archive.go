package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"goat-backend/config"
	"goat-backend/storage"
)

// SubmissionArchiver legt den Request jeder erfolgreichen Submission als JSON in S3 ab.
type SubmissionArchiver struct {
	Config *config.Config
	Client storage.ObjectPutter
	Logger *zap.Logger
}

// NewSubmissionArchiver erstellt einen neuen Archiver.
func NewSubmissionArchiver(cfg *config.Config, client storage.ObjectPutter, logger *zap.Logger) *SubmissionArchiver {
	return &SubmissionArchiver{Config: cfg, Client: client, Logger: logger}
}

type archivedSubmission struct {
	SubmissionID uint              `json:"submission_id"`
	SubmitterID  uint              `json:"submitter_id"`
	ArchivedAt   time.Time         `json:"archived_at"`
	Request      SubmissionRequest `json:"request"`
}

// ArchiveKey gibt den S3-Schlüssel einer Submission zurück.
func ArchiveKey(submissionID uint) string {
	return fmt.Sprintf("submissions/%d.json", submissionID)
}

// Archive schreibt die Submission nach submissions/<id>.json.
func (a *SubmissionArchiver) Archive(ctx context.Context, submissionID, submitterID uint, req SubmissionRequest) error {
	body, err := json.Marshal(archivedSubmission{
		SubmissionID: submissionID,
		SubmitterID:  submitterID,
		ArchivedAt:   time.Now().UTC(),
		Request:      req,
	})
	if err != nil {
		return err
	}
	location, err := storage.UploadObject(ctx, a.Client, a.Config.ArchiveS3Bucket, ArchiveKey(submissionID), "application/json", body)
	if err != nil {
		return err
	}
	a.Logger.Debug("Submission archiviert", zap.Uint("submission_id", submissionID), zap.String("location", location))
	return nil
}
