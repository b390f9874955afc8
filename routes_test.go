package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"goat-backend/config"
	"goat-backend/providers"
	"goat-backend/services"
	"goat-backend/storage"
)

const testSecret = "test-secret"

type stubLocusProvider struct {
	source string
	known  map[string]bool
}

func (s stubLocusProvider) Name() string { return s.source }

func (s stubLocusProvider) LookupLocus(ctx context.Context, name string) (*providers.LocusRecord, error) {
	if !s.known[name] {
		return nil, providers.ErrLocusNotFound
	}
	return &providers.LocusRecord{Source: s.source, LocusName: name, TaxonID: 3702, TaxonName: "Arabidopsis thaliana"}, nil
}

type stubPublicationProvider struct{}

func (stubPublicationProvider) Name() string { return "stub" }

func (stubPublicationProvider) LookupPublication(ctx context.Context, id string) (*providers.PublicationRecord, error) {
	return nil, providers.ErrPublicationNotFound
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

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

	cfg := &config.Config{JWTSecret: testSecret, CORSOrigin: "http://localhost:3000", LookupTimeout: time.Second}
	log := zap.NewNop()
	resolver := services.NewLocusResolver(cfg, log, []providers.LocusProvider{
		stubLocusProvider{source: providers.SourceTAIR, known: map[string]bool{"AT1G10000": true}},
	})
	return newRouter(&api{
		Config:       cfg,
		Logger:       log,
		Resolver:     resolver,
		Submissions:  services.NewSubmissionService(cfg, db, log, resolver, nil),
		Curation:     services.NewCurationService(cfg, db, log, resolver),
		Publications: services.NewPublicationService(cfg, log, stubPublicationProvider{}, stubPublicationProvider{}),
		Drafts:       services.NewDraftService(db, log),
		Keywords:     services.NewKeywordService(db, log),
	})
}

func token(t *testing.T, userID uint, role string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func do(t *testing.T, router *gin.Engine, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return body.Error
}

func commentBody(annotationType string) map[string]any {
	return map[string]any{
		"publicationId": "10.1594/GFZ.GEOFON.gfz2009kciu",
		"genes":         []map[string]any{{"locusName": "AT1G10000", "geneSymbol": "ABC1"}},
		"annotations": []map[string]any{{
			"type": annotationType,
			"data": map[string]any{"locusName": "AT1G10000", "text": "Kommentar"},
		}},
	}
}

func TestAuthRequired(t *testing.T) {
	router := newTestRouter(t)

	w := do(t, router, http.MethodPost, "/submission", "", commentBody("COMMENT"))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	w = do(t, router, http.MethodGet, "/draft", "not-a-jwt", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %d", w.Code)
	}
}

func TestSubmitAndList(t *testing.T) {
	router := newTestRouter(t)

	w := do(t, router, http.MethodPost, "/submission", token(t, 7, "user"), commentBody("COMMENT"))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		ID uint `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil || created.ID == 0 {
		t.Fatalf("unexpected body %s", w.Body.String())
	}

	w = do(t, router, http.MethodGet, "/submission", token(t, 7, "user"), nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-curator, got %d", w.Code)
	}

	w = do(t, router, http.MethodGet, "/submission?page=1&limit=5", token(t, 1, curatorRole), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var summaries []services.SubmissionSummary
	if err := json.Unmarshal(w.Body.Bytes(), &summaries); err != nil {
		t.Fatalf("decode summaries: %v", err)
	}
	if len(summaries) != 1 || summaries[0].Total != 1 || summaries[0].Pending != 1 {
		t.Fatalf("unexpected summaries %+v", summaries)
	}

	w = do(t, router, http.MethodGet, fmt.Sprintf("/submission/%d", created.ID), token(t, 1, curatorRole), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for detail, got %d", w.Code)
	}
	w = do(t, router, http.MethodGet, "/submission/999", token(t, 1, curatorRole), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown submission, got %d", w.Code)
	}
}

func TestSubmitInvalidType(t *testing.T) {
	router := newTestRouter(t)

	w := do(t, router, http.MethodPost, "/submission", token(t, 7, "user"), commentBody("BOGUS_TYPE"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if msg := decodeError(t, w); msg != "Invalid annotation type BOGUS_TYPE" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestCurateRequiresCurator(t *testing.T) {
	router := newTestRouter(t)

	w := do(t, router, http.MethodPut, "/submission/1", token(t, 7, "user"), map[string]any{"annotations": []any{}})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if msg := decodeError(t, w); msg != "Access denied" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestLocusLookup(t *testing.T) {
	router := newTestRouter(t)

	w := do(t, router, http.MethodGet, "/locus/AT1G10000", token(t, 7, "user"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	w = do(t, router, http.MethodGet, "/locus/AT5G99999", token(t, 7, "user"), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if msg := decodeError(t, w); msg != "No Locus found for name AT5G99999" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestPublicationValidation(t *testing.T) {
	router := newTestRouter(t)

	w := do(t, router, http.MethodPost, "/publication", token(t, 7, "user"), map[string]string{"publication_id": "nonsense"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	w = do(t, router, http.MethodPost, "/publication", token(t, 7, "user"), map[string]string{"publication_id": "12345"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestDraftFlow(t *testing.T) {
	router := newTestRouter(t)
	owner := token(t, 7, "user")

	w := do(t, router, http.MethodPost, "/draft", owner, map[string]any{"wip_state": map[string]any{"step": 2}})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var draft struct {
		ID uint `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &draft); err != nil || draft.ID == 0 {
		t.Fatalf("unexpected body %s", w.Body.String())
	}

	w = do(t, router, http.MethodDelete, fmt.Sprintf("/draft/%d", draft.ID), token(t, 8, "user"), nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign draft, got %d", w.Code)
	}

	w = do(t, router, http.MethodDelete, fmt.Sprintf("/draft/%d", draft.ID), owner, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = do(t, router, http.MethodGet, "/draft", owner, nil)
	if w.Code != http.StatusOK || w.Body.String() != "[]" {
		t.Fatalf("expected empty list, got %d %s", w.Code, w.Body.String())
	}
}

func TestAnnotationTypesPublic(t *testing.T) {
	router := newTestRouter(t)
	w := do(t, router, http.MethodGet, "/annotation-types", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestKeywordListings(t *testing.T) {
	router := newTestRouter(t)

	w := do(t, router, http.MethodGet, "/keyword-temp", token(t, 7, "user"), nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-curator, got %d", w.Code)
	}
	w = do(t, router, http.MethodGet, "/keyword-temp", token(t, 1, curatorRole), nil)
	if w.Code != http.StatusOK || w.Body.String() != "[]" {
		t.Fatalf("expected empty list, got %d %s", w.Code, w.Body.String())
	}
	w = do(t, router, http.MethodGet, "/keyword-type", token(t, 7, "user"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestAnnotationStatuses(t *testing.T) {
	router := newTestRouter(t)
	w := do(t, router, http.MethodGet, "/annotation-status", "", nil)
	if w.Code != http.StatusOK || w.Body.String() != `["pending","accepted","rejected"]` {
		t.Fatalf("unexpected response %d %s", w.Code, w.Body.String())
	}
}
