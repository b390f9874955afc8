package services

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestListKeywordTemps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewKeywordService(f.db, zap.NewNop())
	keywordID := f.seedKeyword(t, "molecular_function", "RNA binding", false)

	first := submitGeneTerm(t, f, keywordID)
	second := submitGeneTerm(t, f, keywordID)

	temps, err := svc.ListKeywordTemps(ctx)
	if err != nil {
		t.Fatalf("ListKeywordTemps: %v", err)
	}
	if len(temps) != 1 {
		t.Fatalf("expected 1 keyword temp, got %d", len(temps))
	}
	temp := temps[0]
	if temp.Name != "new assay" || temp.KeywordType == nil || temp.KeywordType.Name != "eco" || temp.SubmitterID != 5 {
		t.Fatalf("unexpected keyword temp %+v", temp.KeywordTemp)
	}
	if len(temp.Submissions) != 2 {
		t.Fatalf("expected 2 usages, got %+v", temp.Submissions)
	}
	if temp.Submissions[0].SubmissionID != first.ID || temp.Submissions[1].SubmissionID != second.ID {
		t.Fatalf("unexpected usages %+v", temp.Submissions)
	}
	if temp.Submissions[0].Publication != "DOI: 10.1105/tpc.17.00001" {
		t.Fatalf("unexpected publication name %q", temp.Submissions[0].Publication)
	}
}

func TestListKeywordTypes(t *testing.T) {
	f := newFixture(t)
	svc := NewKeywordService(f.db, zap.NewNop())
	f.seedKeyword(t, "molecular_function", "RNA binding", false)
	f.seedKeyword(t, "eco", "IDA", false)

	types, err := svc.ListKeywordTypes(context.Background())
	if err != nil {
		t.Fatalf("ListKeywordTypes: %v", err)
	}
	if len(types) != 2 || types[0].Name != "eco" || types[1].Name != "molecular_function" {
		t.Fatalf("unexpected keyword types %+v", types)
	}
}

func TestPublicationName(t *testing.T) {
	doi, pmid, empty := "10.1/x", "123", ""
	tests := []struct {
		doi, pmid *string
		want      string
	}{
		{&doi, nil, "DOI: 10.1/x"},
		{nil, &pmid, "PMID: 123"},
		{&empty, &pmid, "PMID: 123"},
		{nil, nil, ""},
	}
	for _, tt := range tests {
		if got := publicationName(tt.doi, tt.pmid); got != tt.want {
			t.Errorf("publicationName = %q, want %q", got, tt.want)
		}
	}
}
