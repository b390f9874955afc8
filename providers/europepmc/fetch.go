// Package europepmc prüft DOIs gegen die Suche von Europe PMC.
package europepmc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"goat-backend/config"
	"goat-backend/providers"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Fetcher implementiert das PublicationProvider-Interface für Europe PMC.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher erstellt einen neuen Europe PMC Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() string {
	return "europepmc"
}

// LookupPublication sucht eine DOI auf Europe PMC.
func (f *Fetcher) LookupPublication(ctx context.Context, doi string) (*providers.PublicationRecord, error) {
	log := f.Logger.With(zap.String("doi", doi))

	query := fmt.Sprintf("DOI:%q", doi)
	searchURL := fmt.Sprintf("%s/search?query=%s&format=json&resultType=lite",
		f.Config.EuropePMCBaseURL, url.QueryEscape(query))
	log.Debug("Rufe Europe PMC API auf", zap.String("url", searchURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("europepmc request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("europepmc search failed: status %d", resp.StatusCode)
	}

	var searchResponse SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResponse); err != nil {
		return nil, fmt.Errorf("europepmc response: %w", err)
	}

	for _, article := range searchResponse.ResultList.Result {
		if strings.EqualFold(article.DOI, doi) {
			return mapArticleToRecord(&article), nil
		}
	}
	log.Debug("DOI auf Europe PMC nicht gefunden", zap.Int("hit_count", searchResponse.HitCount))
	return nil, providers.ErrPublicationNotFound
}

// mapArticleToRecord konvertiert ein Europe PMC Article-Objekt in einen PublicationRecord.
func mapArticleToRecord(article *Article) *providers.PublicationRecord {
	return &providers.PublicationRecord{
		Type:   "doi",
		ID:     article.DOI,
		Title:  article.Title,
		Author: article.AuthorString,
		URL:    "https://doi.org/" + article.DOI,
	}
}
