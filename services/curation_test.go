package services

import (
	"context"
	"testing"

	"goat-backend/models"
)

// submitGeneTerm legt eine Submission mit einer MOLECULAR_FUNCTION-Annotation an,
// deren Methode über den Namen vorgeschlagen wurde.
func submitGeneTerm(t *testing.T, f *fixture, keywordID uint) *models.Submission {
	t.Helper()
	req := SubmissionRequest{
		PublicationID: "10.1105/tpc.17.00001",
		Genes: []GeneInput{
			{LocusName: "AT1G10000", GeneSymbol: "RIB", FullName: "Ribonuclease H-like"},
			{LocusName: "AT2G20000"},
		},
		Annotations: []AnnotationInput{{
			Type: "MOLECULAR_FUNCTION",
			Data: rawData(t, map[string]any{
				"locusName": "AT1G10000",
				"method":    map[string]any{"name": "new assay"},
				"keyword":   map[string]any{"id": keywordID},
			}),
		}},
	}
	sub, err := f.submission.Submit(context.Background(), 5, req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return sub
}

func TestCurateAcceptRequiresKeywordIDs(t *testing.T) {
	f := newFixture(t)
	methodID := f.seedKeyword(t, "eco", "IDA", false)
	keywordID := f.seedKeyword(t, "molecular_function", "RNA binding", false)
	sub := submitGeneTerm(t, f, keywordID)
	annID := sub.Annotations[0].ID

	curate := func(method map[string]any) error {
		return f.curation.Curate(context.Background(), sub.ID, 99, CurationRequest{
			Annotations: []AnnotationInput{{
				ID:     uintPtr(annID),
				Status: models.StatusAccepted,
				Type:   "MOLECULAR_FUNCTION",
				Data: rawData(t, map[string]any{
					"locusName": "AT1G10000",
					"method":    method,
					"keyword":   map[string]any{"id": keywordID},
				}),
			}},
		})
	}

	err := curate(map[string]any{"name": "new assay"})
	wantError(t, err, KindValidation, "All keywords have to have valid external ids")

	if err := curate(map[string]any{"id": methodID}); err != nil {
		t.Fatalf("Curate: %v", err)
	}

	var ann models.Annotation
	f.db.Preload("GeneTerm").First(&ann, annID)
	if ann.Status != models.StatusAccepted {
		t.Fatalf("expected accepted, got %s", ann.Status)
	}
	if ann.GeneTerm.MethodID == nil || *ann.GeneTerm.MethodID != methodID || ann.GeneTerm.MethodTempID != nil {
		t.Fatalf("method not updated: %+v", ann.GeneTerm)
	}
}

func TestCurateChangesAnnotationFormat(t *testing.T) {
	f := newFixture(t)
	methodID := f.seedKeyword(t, "eco", "IPI", false)
	keywordID := f.seedKeyword(t, "molecular_function", "RNA binding", false)
	sub := submitGeneTerm(t, f, keywordID)
	ann := sub.Annotations[0]
	oldChild := *ann.GeneTermID

	err := f.curation.Curate(context.Background(), sub.ID, 99, CurationRequest{
		Genes: []GeneInput{{LocusName: "AT2G20000"}},
		Annotations: []AnnotationInput{{
			ID:     uintPtr(ann.ID),
			Status: models.StatusPending,
			Type:   "PROTEIN_INTERACTION",
			Data: rawData(t, map[string]any{
				"locusName":  "AT1G10000",
				"locusName2": "AT2G20000",
				"method":     map[string]any{"id": methodID},
			}),
		}},
	})
	if err != nil {
		t.Fatalf("Curate: %v", err)
	}

	var stored models.Annotation
	f.db.First(&stored, ann.ID)
	if stored.Format != models.FormatGeneGene || stored.Type != "PROTEIN_INTERACTION" {
		t.Fatalf("format not changed: %+v", stored)
	}
	if stored.GeneTermID != nil || stored.GeneGeneID == nil {
		t.Fatalf("child references not switched: %+v", stored)
	}
	var n int64
	f.db.Model(&models.GeneTermAnnotation{}).Where("id = ?", oldChild).Count(&n)
	if n != 0 {
		t.Fatalf("old gene term child should be deleted")
	}
	if c := f.count(t, &models.GeneGeneAnnotation{}); c != 1 {
		t.Fatalf("expected 1 gene gene child, got %d", c)
	}
}

func TestCurateRequiresAllAnnotations(t *testing.T) {
	f := newFixture(t)
	sub, err := f.submission.Submit(context.Background(), 1, commentSubmission(t, "", ""))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	comment := func(id uint, status models.AnnotationStatus) AnnotationInput {
		return AnnotationInput{
			ID:     uintPtr(id),
			Status: status,
			Type:   "COMMENT",
			Data:   rawData(t, map[string]any{"locusName": "AT1G10000", "text": "curated"}),
		}
	}
	annID := sub.Annotations[0].ID

	cases := []struct {
		name string
		req  CurationRequest
		kind ErrorKind
		msg  string
	}{
		{"missing annotation", CurationRequest{}, KindReference, "All annotations must be part of this submission"},
		{"foreign annotation", CurationRequest{Annotations: []AnnotationInput{comment(annID + 100, models.StatusAccepted)}},
			KindReference, "All annotations must be part of this submission"},
		{"missing status", CurationRequest{Annotations: []AnnotationInput{comment(annID, "")}},
			KindValidation, "All curated annotations need a status and an id"},
		{"missing id", CurationRequest{Annotations: []AnnotationInput{{Status: models.StatusAccepted, Type: "COMMENT"}}},
			KindValidation, "All curated annotations need a status and an id"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := f.curation.Curate(context.Background(), sub.ID, 99, c.req)
			wantError(t, err, c.kind, c.msg)
		})
	}

	err = f.curation.Curate(context.Background(), sub.ID+1, 99, CurationRequest{})
	wantError(t, err, KindNotFound, "")

	if err := f.curation.Curate(context.Background(), sub.ID, 99, CurationRequest{
		Annotations: []AnnotationInput{comment(annID, models.StatusRejected)},
	}); err != nil {
		t.Fatalf("Curate: %v", err)
	}
	var text models.CommentAnnotation
	f.db.First(&text)
	if text.Text != "curated" {
		t.Fatalf("comment not updated: %q", text.Text)
	}
}

func TestCurateRepointsPublicationAndUpdatesSymbol(t *testing.T) {
	f := newFixture(t)
	sub, err := f.submission.Submit(context.Background(), 1, commentSubmission(t, "RIB", "Ribonuclease H-like"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	annID := sub.Annotations[0].ID
	oldSymbolID := *sub.Annotations[0].LocusSymbolID

	err = f.curation.Curate(context.Background(), sub.ID, 99, CurationRequest{
		PublicationID: "424242",
		Genes:         []GeneInput{{LocusName: "AT1G10000", GeneSymbol: "RNH1", FullName: "Ribonuclease H1"}},
		Annotations: []AnnotationInput{{
			ID:     uintPtr(annID),
			Status: models.StatusAccepted,
			Type:   "COMMENT",
			Data:   rawData(t, map[string]any{"locusName": "AT1G10000", "text": "x"}),
		}},
	})
	if err != nil {
		t.Fatalf("Curate: %v", err)
	}

	var pub models.Publication
	if err := f.db.Where("pubmed_id = ?", "424242").First(&pub).Error; err != nil {
		t.Fatalf("new publication missing: %v", err)
	}
	var storedSub models.Submission
	f.db.First(&storedSub, sub.ID)
	var ann models.Annotation
	f.db.First(&ann, annID)
	if storedSub.PublicationID != pub.ID || ann.PublicationID != pub.ID {
		t.Fatalf("publication not repointed: submission %d, annotation %d, want %d", storedSub.PublicationID, ann.PublicationID, pub.ID)
	}

	var sym models.GeneSymbol
	f.db.First(&sym, oldSymbolID)
	if sym.Symbol != "RNH1" || sym.FullName != "Ribonuclease H1" {
		t.Fatalf("gene symbol not updated in place: %+v", sym)
	}
	if ann.LocusSymbolID == nil || *ann.LocusSymbolID != oldSymbolID {
		t.Fatalf("annotation should keep its symbol")
	}
}

func TestCurateSymbolCollisionRepointsAnnotation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.submission.Submit(ctx, 1, commentSubmission(t, "RNH", "RNase H")); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	sub, err := f.submission.Submit(ctx, 2, commentSubmission(t, "RIB", "Ribonuclease H-like"))
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	var existing models.GeneSymbol
	f.db.Where("symbol = ?", "RNH").First(&existing)

	err = f.curation.Curate(ctx, sub.ID, 99, CurationRequest{
		Genes: []GeneInput{{LocusName: "AT1G10000", GeneSymbol: "RNH", FullName: "RNase H"}},
		Annotations: []AnnotationInput{{
			ID:     uintPtr(sub.Annotations[0].ID),
			Status: models.StatusAccepted,
			Type:   "COMMENT",
			Data:   rawData(t, map[string]any{"locusName": "AT1G10000", "text": "x"}),
		}},
	})
	if err != nil {
		t.Fatalf("Curate: %v", err)
	}

	var ann models.Annotation
	f.db.First(&ann, sub.Annotations[0].ID)
	if ann.LocusSymbolID == nil || *ann.LocusSymbolID != existing.ID {
		t.Fatalf("annotation should point to the existing symbol %d, got %v", existing.ID, ann.LocusSymbolID)
	}
	if n := f.count(t, &models.GeneSymbol{}); n != 2 {
		t.Fatalf("expected 2 gene symbols, got %d", n)
	}
}

func TestCurateKeepsInteractionPartnerSymbol(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	methodID := f.seedKeyword(t, "eco", "IPI", false)
	data := rawData(t, map[string]any{
		"locusName":  "AT1G10000",
		"locusName2": "Q13137",
		"method":     map[string]any{"id": methodID},
	})
	sub, err := f.submission.Submit(ctx, 4, SubmissionRequest{
		PublicationID: "10.1105/tpc.17.00001",
		Genes: []GeneInput{
			{LocusName: "AT1G10000", GeneSymbol: "A"},
			{LocusName: "Q13137", GeneSymbol: "B"},
		},
		Annotations: []AnnotationInput{{Type: "PROTEIN_INTERACTION", Data: data}},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	var before models.GeneGeneAnnotation
	f.db.First(&before, *sub.Annotations[0].GeneGeneID)
	if before.Locus2SymbolID == nil {
		t.Fatal("expected locus2 symbol after submission")
	}

	err = f.curation.Curate(ctx, sub.ID, 99, CurationRequest{
		Annotations: []AnnotationInput{{
			ID:     uintPtr(sub.Annotations[0].ID),
			Status: models.StatusAccepted,
			Type:   "PROTEIN_INTERACTION",
			Data:   data,
		}},
	})
	if err != nil {
		t.Fatalf("Curate: %v", err)
	}

	var after models.GeneGeneAnnotation
	f.db.First(&after, *sub.Annotations[0].GeneGeneID)
	if after.Locus2SymbolID == nil || *after.Locus2SymbolID != *before.Locus2SymbolID {
		t.Fatalf("locus2 symbol changed from %d to %v", *before.Locus2SymbolID, after.Locus2SymbolID)
	}
	var ann models.Annotation
	f.db.First(&ann, sub.Annotations[0].ID)
	if ann.Status != models.StatusAccepted || ann.LocusSymbolID == nil || *ann.LocusSymbolID != *sub.Annotations[0].LocusSymbolID {
		t.Fatalf("unexpected annotation after curation %+v", ann)
	}
}

func TestCurateRollsBackOnFailedVerification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	methodID := f.seedKeyword(t, "eco", "IDA", false)
	keywordID := f.seedKeyword(t, "molecular_function", "RNA binding", false)
	obsoleteID := f.seedKeyword(t, "molecular_function", "old binding", true)
	sub := submitGeneTerm(t, f, keywordID)
	ann := sub.Annotations[0]
	symbolID := *ann.LocusSymbolID
	publications := f.count(t, &models.Publication{})

	err := f.curation.Curate(ctx, sub.ID, 99, CurationRequest{
		PublicationID: "424242",
		Genes:         []GeneInput{{LocusName: "AT1G10000", GeneSymbol: "RNH1", FullName: "Ribonuclease H1"}},
		Annotations: []AnnotationInput{{
			ID:     uintPtr(ann.ID),
			Status: models.StatusAccepted,
			Type:   "MOLECULAR_FUNCTION",
			Data: rawData(t, map[string]any{
				"locusName": "AT1G10000",
				"method":    map[string]any{"id": methodID},
				"keyword":   map[string]any{"id": obsoleteID},
			}),
		}},
	})
	wantError(t, err, KindValidation, "")

	if n := f.count(t, &models.Publication{}); n != publications {
		t.Fatalf("publication created despite rollback: %d -> %d", publications, n)
	}
	var storedSub models.Submission
	f.db.First(&storedSub, sub.ID)
	if storedSub.PublicationID != sub.PublicationID {
		t.Fatalf("submission repointed despite rollback")
	}
	var sym models.GeneSymbol
	f.db.First(&sym, symbolID)
	if sym.Symbol != "RIB" || sym.FullName != "Ribonuclease H-like" {
		t.Fatalf("gene symbol changed despite rollback: %+v", sym)
	}
	var stored models.Annotation
	f.db.First(&stored, ann.ID)
	if stored.Status != models.StatusPending {
		t.Fatalf("status changed despite rollback: %s", stored.Status)
	}
}

func TestCurateRecreatesMissingChild(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub, err := f.submission.Submit(ctx, 1, commentSubmission(t, "", ""))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	annID := sub.Annotations[0].ID
	if err := f.db.Model(&models.Annotation{ID: annID}).UpdateColumn("comment_id", nil).Error; err != nil {
		t.Fatalf("clear child: %v", err)
	}

	err = f.curation.Curate(ctx, sub.ID, 99, CurationRequest{
		Annotations: []AnnotationInput{{
			ID:     uintPtr(annID),
			Status: models.StatusAccepted,
			Type:   "COMMENT",
			Data:   rawData(t, map[string]any{"locusName": "AT1G10000", "text": "restored"}),
		}},
	})
	if err != nil {
		t.Fatalf("Curate: %v", err)
	}

	var ann models.Annotation
	f.db.Preload("Comment").First(&ann, annID)
	if ann.CommentID == nil || ann.Comment == nil || ann.Comment.Text != "restored" {
		t.Fatalf("comment child not recreated: %+v", ann)
	}
}
