// Package tair enthält den Client für die Locus-Webservices von TAIR.
package tair

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"goat-backend/config"
	"goat-backend/providers"
)

// Arabidopsis thaliana; TAIR liefert keine Taxon-ID mit.
const (
	arabidopsisTaxonID   = 3702
	arabidopsisTaxonName = "Arabidopsis thaliana"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// LocusResponse repräsentiert die JSON-Antwort von /loci/{name}.
type LocusResponse struct {
	LocusName string `json:"locusName"`
	Taxon     string `json:"taxon"`
}

// Fetcher implementiert das LocusProvider-Interface für TAIR.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher erstellt einen neuen TAIR-Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() string {
	return providers.SourceTAIR
}

// LookupLocus holt einen TAIR-Locus über seinen Namen, z.B. AT1G10000.
func (f *Fetcher) LookupLocus(ctx context.Context, name string) (*providers.LocusRecord, error) {
	requestURL := fmt.Sprintf("%s/loci/%s", f.Config.TAIRBaseURL, url.PathEscape(name))
	log := f.Logger.With(zap.String("locus", name), zap.String("url", requestURL))
	log.Debug("Rufe TAIR-Locus-API auf.")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tair request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		log.Debug("Locus bei TAIR nicht gefunden.")
		return nil, providers.ErrLocusNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tair request failed: status %d: %s", resp.StatusCode, string(body))
	}

	var lr LocusResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, fmt.Errorf("tair response: %w", err)
	}
	if lr.LocusName == "" {
		lr.LocusName = name
	}
	taxonName := lr.Taxon
	if taxonName == "" {
		taxonName = arabidopsisTaxonName
	}

	return &providers.LocusRecord{
		Source:    providers.SourceTAIR,
		LocusName: lr.LocusName,
		TaxonID:   arabidopsisTaxonID,
		TaxonName: taxonName,
	}, nil
}
