package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"goat-backend/config"
	"goat-backend/providers"
)

var (
	// z.B. 10.1594/GFZ.GEOFON.gfz2009kciu
	doiPattern = regexp.MustCompile(`^(10\.\d{4,9}/.+)$`)
	// z.B. 123456789
	pubmedIDPattern = regexp.MustCompile(`^(\d+)$`)
)

// PublicationID ist eine Publikationskennung. Genau eines der Felder ist gesetzt.
type PublicationID struct {
	DOI      string
	PubmedID string
}

// String gibt die gesetzte Kennung zurück.
func (p PublicationID) String() string {
	if p.DOI != "" {
		return p.DOI
	}
	return p.PubmedID
}

// ParsePublicationID prüft das Format einer Publikationskennung, nicht ihre Existenz.
func ParsePublicationID(raw string) (PublicationID, error) {
	id := strings.TrimSpace(raw)
	switch {
	case doiPattern.MatchString(id):
		return PublicationID{DOI: id}, nil
	case pubmedIDPattern.MatchString(id):
		return PublicationID{PubmedID: id}, nil
	}
	return PublicationID{}, validationErrorf("%s is not a DOI or Pubmed ID", raw)
}

// PublicationService prüft Publikationskennungen gegen Europe PMC und PubMed.
type PublicationService struct {
	Config    *config.Config
	Logger    *zap.Logger
	DOIs      providers.PublicationProvider
	PubmedIDs providers.PublicationProvider
}

// NewPublicationService erstellt einen neuen PublicationService.
func NewPublicationService(cfg *config.Config, logger *zap.Logger, dois, pubmedIDs providers.PublicationProvider) *PublicationService {
	return &PublicationService{Config: cfg, Logger: logger, DOIs: dois, PubmedIDs: pubmedIDs}
}

// Validate erkennt den Typ der Kennung und prüft, ob die Publikation existiert.
func (s *PublicationService) Validate(ctx context.Context, raw string) (*providers.PublicationRecord, error) {
	id, err := ParsePublicationID(raw)
	if err != nil {
		return nil, err
	}

	provider := s.PubmedIDs
	if id.DOI != "" {
		provider = s.DOIs
	}
	log := s.Logger.With(zap.String("publication", id.String()), zap.String("provider", provider.Name()))

	if s.Config.LookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Config.LookupTimeout)
		defer cancel()
	}

	record, err := provider.LookupPublication(ctx, id.String())
	if errors.Is(err, providers.ErrPublicationNotFound) {
		log.Debug("Publikation nicht gefunden")
		return nil, notFoundErrorf("No publication found for %s", id)
	}
	if err != nil {
		log.Warn("Publikationsabfrage fehlgeschlagen", zap.Error(err))
		return nil, &Error{Kind: KindLookupTransport, Message: fmt.Sprintf("Lookup of publication %s failed", id), Err: err}
	}
	return record, nil
}
