package main

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"goat-backend/config"
	"goat-backend/providers"
	"goat-backend/providers/europepmc"
	"goat-backend/providers/pubmed"
	"goat-backend/providers/rnacentral"
	"goat-backend/providers/tair"
	"goat-backend/providers/uniprot"
	"goat-backend/services"
	"goat-backend/storage"
)

var backlogRunsCounter prometheus.Counter

func init() {
	backlogRunsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "goat_backlog_refresh_total",
			Help: "Total number of completed curation backlog refreshes.",
		},
	)
	prometheus.MustRegister(backlogRunsCounter)
}

// buildLocusProviders erstellt die in ENABLED_LOCUS_PROVIDERS konfigurierten Gen-Datenbanken.
func buildLocusProviders(cfg *config.Config, logging *zap.Logger) []providers.LocusProvider {
	var enabled []providers.LocusProvider
	for _, name := range strings.Split(cfg.EnabledLocusProviders, ",") {
		switch strings.TrimSpace(strings.ToLower(name)) {
		case "tair":
			enabled = append(enabled, tair.NewFetcher(cfg, logging))
		case "uniprot":
			enabled = append(enabled, uniprot.NewFetcher(cfg, logging))
		case "rnacentral":
			enabled = append(enabled, rnacentral.NewFetcher(cfg, logging))
		case "":
		default:
			logging.Warn("Unknown locus provider in config", zap.String("provider_name", name))
		}
	}
	return enabled
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Database
	db, err := storage.OpenDatabase(cfg)
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to database.")

	logging.Info("Running database auto-migration...")
	if err := storage.Migrate(db); err != nil {
		logging.Fatal("Auto-migration failed", zap.Error(err))
	}

	// Setup Providers
	locusProviders := buildLocusProviders(cfg, logging)
	if len(locusProviders) == 0 {
		logging.Fatal("No valid locus providers enabled. Check ENABLED_LOCUS_PROVIDERS in .env")
	}
	logging.Info("Active locus providers loaded", zap.String("providers", cfg.EnabledLocusProviders))
	resolver := services.NewLocusResolver(cfg, logging, locusProviders)

	// Setup Services
	var archiver *services.SubmissionArchiver
	if cfg.ArchiveEnabled() {
		s3Client, err := storage.NewS3Client(context.Background(), cfg)
		if err != nil {
			logging.Fatal("S3 client creation failed", zap.Error(err))
		}
		archiver = services.NewSubmissionArchiver(cfg, s3Client, logging)
		logging.Info("Submission archive enabled", zap.String("bucket", cfg.ArchiveS3Bucket))
	}

	a := &api{
		Config:       cfg,
		Logger:       logging,
		Resolver:     resolver,
		Submissions:  services.NewSubmissionService(cfg, db, logging, resolver, archiver),
		Curation:     services.NewCurationService(cfg, db, logging, resolver),
		Publications: services.NewPublicationService(cfg, logging, europepmc.NewFetcher(cfg, logging), pubmed.NewFetcher(cfg, logging)),
		Drafts:       services.NewDraftService(db, logging),
		Keywords:     services.NewKeywordService(db, logging),
	}

	// Setup Router
	router := newRouter(a)

	// Setup Cron
	refreshBacklog := func() {
		pending, err := a.Submissions.RefreshBacklog(context.Background())
		if err != nil {
			logging.Error("Backlog refresh failed", zap.Error(err))
			return
		}
		backlogRunsCounter.Inc()
		logging.Debug("Backlog refreshed", zap.Int64("pending_annotations", pending))
	}
	refreshBacklog()
	cronScheduler := cron.New()
	if _, err := cronScheduler.AddFunc(cfg.BacklogCronSchedule, refreshBacklog); err != nil {
		logging.Fatal("Invalid BACKLOG_CRON_SCHEDULE", zap.Error(err))
	}
	cronScheduler.Start()
	defer cronScheduler.Stop()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}
