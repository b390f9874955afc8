package services

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"goat-backend/models"
)

// KeywordService liefert die Vokabular-Listen für Einreicher und Kuratoren.
type KeywordService struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewKeywordService erstellt einen neuen KeywordService.
func NewKeywordService(db *gorm.DB, logger *zap.Logger) *KeywordService {
	return &KeywordService{DB: db, Logger: logger.With(zap.String("service", "keywords"))}
}

// KeywordTempUsage ist eine Submission, die einen vorgeschlagenen Begriff verwendet.
type KeywordTempUsage struct {
	SubmissionID uint   `json:"submission_id"`
	Publication  string `json:"publication_name"`
}

// KeywordTempView ist ein vorgeschlagener Begriff samt seinen Verwendungen.
type KeywordTempView struct {
	models.KeywordTemp
	Submissions []KeywordTempUsage `json:"submissions"`
}

type keywordTempRef struct {
	TempID       uint    `gorm:"column:temp_id"`
	SubmissionID uint    `gorm:"column:submission_id"`
	DOI          *string `gorm:"column:doi"`
	PubmedID     *string `gorm:"column:pubmed_id"`
}

// Kind-Spalten, die auf ein KeywordTemp zeigen können.
var keywordTempColumns = []struct {
	table, parentKey, column string
}{
	{"gene_term_annotations", "gene_term_id", "method_temp_id"},
	{"gene_term_annotations", "gene_term_id", "keyword_temp_id"},
	{"gene_gene_annotations", "gene_gene_id", "method_temp_id"},
}

// ListKeywordTemps liefert alle vorgeschlagenen Begriffe mit Namensraum und
// den Submissions, in denen sie vorkommen.
func (s *KeywordService) ListKeywordTemps(ctx context.Context) ([]KeywordTempView, error) {
	db := s.DB.WithContext(ctx)

	var temps []models.KeywordTemp
	if err := db.Preload("KeywordType").Order("id").Find(&temps).Error; err != nil {
		return nil, internalError("listing keyword temps failed", err)
	}

	usages := make(map[uint][]KeywordTempUsage, len(temps))
	seen := make(map[[2]uint]bool)
	for _, src := range keywordTempColumns {
		var refs []keywordTempRef
		err := db.Table("annotations").
			Select(fmt.Sprintf("c.%s AS temp_id, annotations.submission_id, publications.doi, publications.pubmed_id", src.column)).
			Joins(fmt.Sprintf("JOIN %s c ON c.id = annotations.%s", src.table, src.parentKey)).
			Joins("JOIN publications ON publications.id = annotations.publication_id").
			Where(fmt.Sprintf("c.%s IS NOT NULL", src.column)).
			Scan(&refs).Error
		if err != nil {
			return nil, internalError("listing keyword temp usages failed", err)
		}
		for _, r := range refs {
			key := [2]uint{r.TempID, r.SubmissionID}
			if seen[key] {
				continue
			}
			seen[key] = true
			usages[r.TempID] = append(usages[r.TempID], KeywordTempUsage{
				SubmissionID: r.SubmissionID,
				Publication:  publicationName(r.DOI, r.PubmedID),
			})
		}
	}

	views := make([]KeywordTempView, 0, len(temps))
	for _, t := range temps {
		u := usages[t.ID]
		sort.Slice(u, func(i, j int) bool { return u[i].SubmissionID < u[j].SubmissionID })
		if u == nil {
			u = []KeywordTempUsage{}
		}
		views = append(views, KeywordTempView{KeywordTemp: t, Submissions: u})
	}
	return views, nil
}

func publicationName(doi, pubmedID *string) string {
	switch {
	case doi != nil && *doi != "":
		return "DOI: " + *doi
	case pubmedID != nil && *pubmedID != "":
		return "PMID: " + *pubmedID
	}
	return ""
}

// ListKeywordTypes liefert alle Namensräume, sortiert nach Name.
func (s *KeywordService) ListKeywordTypes(ctx context.Context) ([]models.KeywordType, error) {
	var types []models.KeywordType
	if err := s.DB.WithContext(ctx).Order("name").Find(&types).Error; err != nil {
		return nil, internalError("listing keyword types failed", err)
	}
	return types, nil
}
