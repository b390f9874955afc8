package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"goat-backend/config"
	"goat-backend/providers"
)

var (
	// z.B. AT1G10000
	tairNamePattern = regexp.MustCompile(`^AT(?:\d|C|M)G\d{5}$`)
	// z.B. URS00000EF184
	rnaCentralNamePattern = regexp.MustCompile(`^(URS[0-9a-fA-F]{10})$`)
	// z.B. P12345, A2BC19, A0A022YWF9
	uniprotNamePattern = regexp.MustCompile(`^(?:[OPQ][0-9][A-Z0-9]{3}[0-9]|[A-NR-Z][0-9](?:[A-Z][A-Z0-9]{2}[0-9]){1,2})$`)
)

// lookupOrder bestimmt anhand des Namens die primäre Quelle und die Fallbacks.
// Ohne passendes Muster ist primary leer und alle Quellen sind Fallbacks.
func lookupOrder(name string) (primary string, fallbacks []string) {
	switch {
	case tairNamePattern.MatchString(name):
		return providers.SourceTAIR, []string{providers.SourceRNACentral, providers.SourceUniprot}
	case rnaCentralNamePattern.MatchString(name):
		return providers.SourceRNACentral, []string{providers.SourceTAIR, providers.SourceUniprot}
	case uniprotNamePattern.MatchString(name):
		return providers.SourceUniprot, []string{providers.SourceTAIR, providers.SourceRNACentral}
	}
	return "", []string{providers.SourceTAIR, providers.SourceUniprot, providers.SourceRNACentral}
}

// LocusResolver ermittelt Quelle und Taxon eines Locus über die externen Gen-Datenbanken.
type LocusResolver struct {
	Config    *config.Config
	Logger    *zap.Logger
	Providers map[string]providers.LocusProvider

	cache *cache.Cache
}

// NewLocusResolver erstellt einen Resolver für die übergebenen Provider.
// Mit LOOKUP_CACHE_TTL > 0 werden positive Treffer prozessweit zwischengespeichert.
func NewLocusResolver(cfg *config.Config, logger *zap.Logger, locusProviders []providers.LocusProvider) *LocusResolver {
	r := &LocusResolver{
		Config:    cfg,
		Logger:    logger.With(zap.String("component", "locus_resolver")),
		Providers: make(map[string]providers.LocusProvider, len(locusProviders)),
	}
	for _, p := range locusProviders {
		r.Providers[p.Name()] = p
	}
	if cfg.LookupCacheTTL > 0 {
		r.cache = cache.New(cfg.LookupCacheTTL, 2*cfg.LookupCacheTTL)
	}
	return r
}

// Resolve sucht den Locus zuerst in der zum Namen passenden Quelle. Kennt diese
// den Locus nicht, werden die übrigen Quellen parallel befragt; der erste
// Treffer gewinnt.
func (r *LocusResolver) Resolve(ctx context.Context, name string) (*providers.LocusRecord, error) {
	if r.cache != nil {
		if cached, ok := r.cache.Get(name); ok {
			return cached.(*providers.LocusRecord), nil
		}
	}

	record, err := r.resolve(ctx, name)
	if err != nil {
		if errors.Is(err, providers.ErrLocusNotFound) {
			return nil, &Error{Kind: KindNotFound, Message: fmt.Sprintf("No Locus found for name %s", name), Err: err}
		}
		var se *Error
		if errors.As(err, &se) {
			return nil, err
		}
		return nil, &Error{Kind: KindLookupTransport, Message: fmt.Sprintf("Lookup of locus %s failed", name), Err: err}
	}

	if r.cache != nil {
		r.cache.SetDefault(name, record)
	}
	return record, nil
}

func (r *LocusResolver) resolve(ctx context.Context, name string) (*providers.LocusRecord, error) {
	primary, fallbacks := lookupOrder(name)
	log := r.Logger.With(zap.String("locus", name))

	if p, ok := r.Providers[primary]; ok {
		record, err := r.lookup(ctx, p, name)
		if err == nil {
			return record, nil
		}
		if !errors.Is(err, providers.ErrLocusNotFound) {
			log.Warn("Primäre Quelle nicht erreichbar", zap.String("source", primary), zap.Error(err))
			return nil, err
		}
		log.Debug("Locus in primärer Quelle nicht gefunden, frage Fallbacks", zap.String("source", primary))
	}

	var candidates []providers.LocusProvider
	for _, source := range fallbacks {
		if p, ok := r.Providers[source]; ok {
			candidates = append(candidates, p)
		}
	}
	return r.race(ctx, candidates, name)
}

type lookupResult struct {
	record *providers.LocusRecord
	err    error
}

// race befragt alle Kandidaten gleichzeitig. Sobald einer den Locus liefert,
// werden die übrigen Anfragen abgebrochen.
func (r *LocusResolver) race(ctx context.Context, candidates []providers.LocusProvider, name string) (*providers.LocusRecord, error) {
	if len(candidates) == 0 {
		return nil, providers.ErrLocusNotFound
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan lookupResult, len(candidates))
	for _, p := range candidates {
		go func(p providers.LocusProvider) {
			record, err := r.lookup(ctx, p, name)
			results <- lookupResult{record: record, err: err}
		}(p)
	}

	var transportErr error
	for range candidates {
		res := <-results
		if res.err == nil {
			return res.record, nil
		}
		if !errors.Is(res.err, providers.ErrLocusNotFound) && transportErr == nil {
			transportErr = res.err
		}
	}
	if transportErr != nil {
		return nil, transportErr
	}
	return nil, providers.ErrLocusNotFound
}

// lookup fragt eine einzelne Quelle mit eigenem Timeout ab. Ein Timeout gilt
// als "nicht gefunden", solange der übergeordnete Kontext noch lebt.
func (r *LocusResolver) lookup(ctx context.Context, p providers.LocusProvider, name string) (*providers.LocusRecord, error) {
	callCtx := ctx
	if r.Config.LookupTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.Config.LookupTimeout)
		defer cancel()
	}

	record, err := p.LookupLocus(callCtx, name)
	switch {
	case err == nil:
		locusLookupsCounter.WithLabelValues(p.Name(), "found").Inc()
		return record, nil
	case errors.Is(err, providers.ErrLocusNotFound):
		locusLookupsCounter.WithLabelValues(p.Name(), "not_found").Inc()
		return nil, err
	case errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		locusLookupsCounter.WithLabelValues(p.Name(), "timeout").Inc()
		r.Logger.Debug("Locus-Abfrage abgelaufen", zap.String("source", p.Name()), zap.String("locus", name))
		return nil, fmt.Errorf("%s: %w", p.Name(), providers.ErrLocusNotFound)
	case ctx.Err() != nil:
		locusLookupsCounter.WithLabelValues(p.Name(), "cancelled").Inc()
		return nil, ctx.Err()
	default:
		locusLookupsCounter.WithLabelValues(p.Name(), "error").Inc()
		return nil, fmt.Errorf("%s: %w", strings.ToLower(p.Name()), err)
	}
}
