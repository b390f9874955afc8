// Package rnacentral enthält den Client für die RNAcentral-API.
package rnacentral

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

// NCBI "unidentified", falls RNAcentral keine Querverweise liefert.
const (
	unidentifiedTaxonID   = 32644
	unidentifiedTaxonName = "unidentified"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// RNAResponse repräsentiert die Antwort von /rna/{id}?flat=true.
type RNAResponse struct {
	RNACentralID string `json:"rnacentral_id"`
	Xrefs        struct {
		Results []struct {
			TaxID     int `json:"taxid"`
			Accession struct {
				Species string `json:"species"`
			} `json:"accession"`
		} `json:"results"`
	} `json:"xrefs"`
}

// Fetcher implementiert das LocusProvider-Interface für RNAcentral.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher erstellt einen neuen RNAcentral-Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() string {
	return providers.SourceRNACentral
}

// LookupLocus holt eine RNAcentral-Sequenz über ihre URS-Kennung, z.B. URS00000EF184.
func (f *Fetcher) LookupLocus(ctx context.Context, name string) (*providers.LocusRecord, error) {
	requestURL := fmt.Sprintf("%s/rna/%s/?flat=true&format=json", f.Config.RNACentralBaseURL, url.PathEscape(name))
	log := f.Logger.With(zap.String("locus", name), zap.String("url", requestURL))
	log.Debug("Rufe RNAcentral-API auf.")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rnacentral request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		log.Debug("Locus bei RNAcentral nicht gefunden.")
		return nil, providers.ErrLocusNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rnacentral request failed: status %d", resp.StatusCode)
	}

	var rr RNAResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return nil, fmt.Errorf("rnacentral response: %w", err)
	}

	record := &providers.LocusRecord{
		Source:    providers.SourceRNACentral,
		LocusName: rr.RNACentralID,
		TaxonID:   unidentifiedTaxonID,
		TaxonName: unidentifiedTaxonName,
	}
	if record.LocusName == "" {
		record.LocusName = name
	}
	if len(rr.Xrefs.Results) > 0 && rr.Xrefs.Results[0].TaxID != 0 {
		record.TaxonID = rr.Xrefs.Results[0].TaxID
		record.TaxonName = rr.Xrefs.Results[0].Accession.Species
	}
	return record, nil
}
