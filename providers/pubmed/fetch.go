package pubmed

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"goat-backend/config"
	"goat-backend/providers"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Fetcher ist eine Struktur, die die Logik zur Interaktion mit PubMed kapselt.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher erstellt eine neue Instanz des PubMed-Fetchers.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() string {
	return "pubmed"
}

// LookupPublication prüft via EFetch, ob eine PMID existiert, und liefert Titel und Autoren.
func (f *Fetcher) LookupPublication(ctx context.Context, pmid string) (*providers.PublicationRecord, error) {
	efetchURL := f.buildEfetchURL(pmid)
	log := f.Logger.With(zap.String("pmid", pmid))
	log.Debug("Rufe EFetch-URL für Metadaten auf", zap.String("url", efetchURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, efetchURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("efetch request: %w", err)
	}
	defer resp.Body.Close()

	// EFetch antwortet auf unbekannte IDs teils mit 400.
	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound {
		return nil, providers.ErrPublicationNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Error("EFetch-API hat nicht-200-Status zurückgegeben",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)))
		return nil, fmt.Errorf("efetch failed: status %d", resp.StatusCode)
	}

	var articleSet PubmedArticleSet
	if err := xml.NewDecoder(resp.Body).Decode(&articleSet); err != nil {
		if err == io.EOF {
			return nil, providers.ErrPublicationNotFound
		}
		return nil, fmt.Errorf("efetch response: %w", err)
	}
	if len(articleSet.PubmedArticle) == 0 {
		log.Debug("Kein PubmedArticle in EFetch-Antwort gefunden.")
		return nil, providers.ErrPublicationNotFound
	}

	return mapArticleToRecord(&articleSet.PubmedArticle[0], pmid), nil
}

// buildEfetchURL baut die URL für eine EFetch-Anfrage.
func (f *Fetcher) buildEfetchURL(pmid string) string {
	q := url.Values{}
	q.Set("db", "pubmed")
	q.Set("id", pmid)
	q.Set("retmode", "xml")
	if f.Config.PubMedAPIKey != "" {
		q.Set("api_key", f.Config.PubMedAPIKey)
	}
	if f.Config.PubMedTool != "" {
		q.Set("tool", f.Config.PubMedTool)
	}
	if f.Config.PubMedEmail != "" {
		q.Set("email", f.Config.PubMedEmail)
	}
	return fmt.Sprintf("%s/efetch.fcgi?%s", f.Config.PubMedBaseURL, q.Encode())
}

func mapArticleToRecord(article *PubmedArticle, pmid string) *providers.PublicationRecord {
	id := article.MedlineCitation.PMID
	if id == "" {
		id = pmid
	}
	var authors []string
	for _, author := range article.MedlineCitation.Article.Authors {
		authors = append(authors, strings.TrimSpace(author.Initials+" "+author.LastName))
	}
	return &providers.PublicationRecord{
		Type:   "pubmed_id",
		ID:     id,
		Title:  article.MedlineCitation.Article.Title,
		Author: strings.Join(authors, ", "),
		URL:    fmt.Sprintf("https://pubmed.ncbi.nlm.nih.gov/%s/", id),
	}
}
