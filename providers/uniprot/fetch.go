// Package uniprot enthält den Client für die UniProtKB-REST-API.
package uniprot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"goat-backend/config"
	"goat-backend/providers"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// EntryResponse repräsentiert die relevanten Felder eines UniProtKB-Eintrags.
type EntryResponse struct {
	PrimaryAccession string `json:"primaryAccession"`
	Organism         struct {
		ScientificName string `json:"scientificName"`
		TaxonID        int    `json:"taxonId"`
	} `json:"organism"`
}

// Fetcher implementiert das LocusProvider-Interface für UniProt.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher erstellt einen neuen UniProt-Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() string {
	return providers.SourceUniprot
}

// LookupLocus holt einen UniProtKB-Eintrag über seine Accession, z.B. Q13137.
func (f *Fetcher) LookupLocus(ctx context.Context, name string) (*providers.LocusRecord, error) {
	requestURL := fmt.Sprintf("%s/uniprotkb/%s.json", f.Config.UniprotBaseURL, url.PathEscape(name))
	log := f.Logger.With(zap.String("locus", name), zap.String("url", requestURL))
	log.Debug("Rufe UniProt-API auf.")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("uniprot request: %w", err)
	}
	defer resp.Body.Close()

	// UniProt antwortet auf syntaktisch ungültige Accessions mit 400.
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest {
		log.Debug("Locus bei UniProt nicht gefunden.", zap.Int("status", resp.StatusCode))
		return nil, providers.ErrLocusNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("uniprot request failed: status %d", resp.StatusCode)
	}

	var entry EntryResponse
	if err := json.NewDecoder(resp.Body).Decode(&entry); err != nil {
		return nil, fmt.Errorf("uniprot response: %w", err)
	}
	if entry.PrimaryAccession == "" {
		return nil, providers.ErrLocusNotFound
	}

	return &providers.LocusRecord{
		Source:    providers.SourceUniprot,
		LocusName: entry.PrimaryAccession,
		TaxonID:   entry.Organism.TaxonID,
		TaxonName: entry.Organism.ScientificName,
	}, nil
}
