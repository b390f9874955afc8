package services

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"goat-backend/config"
	"goat-backend/models"
	"goat-backend/providers"
	"goat-backend/storage"
)

// fakeLocusProvider kennt eine feste Menge an Loci.
type fakeLocusProvider struct {
	name    string
	records map[string]*providers.LocusRecord
	err     error
	block   bool
	calls   atomic.Int32
}

func (f *fakeLocusProvider) Name() string { return f.name }

func (f *fakeLocusProvider) LookupLocus(ctx context.Context, name string) (*providers.LocusRecord, error) {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	if r, ok := f.records[name]; ok {
		return r, nil
	}
	return nil, providers.ErrLocusNotFound
}

func newFakeProvider(source string, names ...string) *fakeLocusProvider {
	f := &fakeLocusProvider{name: source, records: map[string]*providers.LocusRecord{}}
	for _, n := range names {
		f.records[n] = &providers.LocusRecord{Source: source, LocusName: n, TaxonID: 3702, TaxonName: "Arabidopsis thaliana"}
	}
	return f
}

type fixture struct {
	db         *gorm.DB
	cfg        *config.Config
	tair       *fakeLocusProvider
	uniprot    *fakeLocusProvider
	rnacentral *fakeLocusProvider
	resolver   *LocusResolver
	submission *SubmissionService
	curation   *CurationService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		db:         newTestDB(t),
		cfg:        &config.Config{LookupTimeout: time.Second},
		tair:       newFakeProvider(providers.SourceTAIR, "AT1G10000", "AT2G20000", "AT3G30000"),
		uniprot:    newFakeProvider(providers.SourceUniprot, "Q13137"),
		rnacentral: newFakeProvider(providers.SourceRNACentral),
	}
	f.resolver = NewLocusResolver(f.cfg, zap.NewNop(), []providers.LocusProvider{f.tair, f.uniprot, f.rnacentral})
	f.submission = NewSubmissionService(f.cfg, f.db, zap.NewNop(), f.resolver, nil)
	f.curation = NewCurationService(f.cfg, f.db, zap.NewNop(), f.resolver)
	return f
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

// seedKeyword legt ein Keyword im gegebenen Namensraum an.
func (f *fixture) seedKeyword(t *testing.T, scope, name string, obsolete bool) uint {
	t.Helper()
	kt, err := GetOrCreateKeywordType(f.db, scope)
	if err != nil {
		t.Fatalf("keyword type: %v", err)
	}
	kw := models.Keyword{KeywordTypeID: kt.ID, Name: name, IsObsolete: obsolete}
	if err := f.db.Create(&kw).Error; err != nil {
		t.Fatalf("keyword: %v", err)
	}
	return kw.ID
}

func rawData(t *testing.T, fields map[string]any) map[string]json.RawMessage {
	t.Helper()
	out := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal %s: %v", k, err)
		}
		out[k] = b
	}
	return out
}

func commentSubmission(t *testing.T, symbol, fullName string) SubmissionRequest {
	return SubmissionRequest{
		PublicationID: "10.1594/GFZ.GEOFON.gfz2009kciu",
		Genes:         []GeneInput{{LocusName: "AT1G10000", GeneSymbol: symbol, FullName: fullName}},
		Annotations: []AnnotationInput{{
			Type: "COMMENT",
			Data: rawData(t, map[string]any{"locusName": "AT1G10000", "text": "x"}),
		}},
	}
}

func wantError(t *testing.T, err error, kind ErrorKind, msg string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error %q, got nil", kind, msg)
	}
	if KindOf(err) != kind {
		t.Fatalf("expected kind %s, got %s (%v)", kind, KindOf(err), err)
	}
	if msg != "" && PublicMessage(err) != msg {
		t.Fatalf("expected message %q, got %q", msg, PublicMessage(err))
	}
}

func uintPtr(v uint) *uint { return &v }
