package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort   string `envconfig:"HTTP_PORT" default:"4242"`
	JWTSecret  string `envconfig:"JWT_SECRET" required:"true"`
	CORSOrigin string `envconfig:"CORS_ORIGIN" default:"http://localhost:3000"`

	// Externe Gen-Datenbanken
	TAIRBaseURL       string `envconfig:"TAIR_BASE_URL" default:"https://www.arabidopsis.org"`
	UniprotBaseURL    string `envconfig:"UNIPROT_BASE_URL" default:"https://rest.uniprot.org"`
	RNACentralBaseURL string `envconfig:"RNACENTRAL_BASE_URL" default:"https://rnacentral.org/api/v1"`

	// Provider-Konfiguration
	EnabledLocusProviders string        `envconfig:"ENABLED_LOCUS_PROVIDERS" default:"tair,uniprot,rnacentral"`
	LookupTimeout         time.Duration `envconfig:"LOOKUP_TIMEOUT" default:"10s"`
	LookupCacheTTL        time.Duration `envconfig:"LOOKUP_CACHE_TTL" default:"0"`

	// Publikationsquellen
	PubMedBaseURL    string `envconfig:"PUBMED_BASE_URL" default:"https://eutils.ncbi.nlm.nih.gov/entrez/eutils"`
	PubMedAPIKey     string `envconfig:"PUBMED_API_KEY"`
	PubMedEmail      string `envconfig:"PUBMED_EMAIL"`
	PubMedTool       string `envconfig:"PUBMED_TOOL" default:"goat-backend"`
	EuropePMCBaseURL string `envconfig:"EUROPEPMC_BASE_URL" default:"https://www.ebi.ac.uk/europepmc/webservices/rest"`

	BacklogCronSchedule string `envconfig:"BACKLOG_CRON_SCHEDULE" default:"*/5 * * * *"`

	// Archiv für eingereichte Submissions. Leerer Bucket deaktiviert das Archiv.
	ArchiveS3URL    string `envconfig:"ARCHIVE_S3_URL"`
	ArchiveS3Region string `envconfig:"ARCHIVE_S3_REGION" default:"eu-central-1"`
	ArchiveS3Key    string `envconfig:"ARCHIVE_S3_KEY"`
	ArchiveS3Secret string `envconfig:"ARCHIVE_S3_SECRET"`
	ArchiveS3Bucket string `envconfig:"ARCHIVE_S3_BUCKET"`

	// Datenbank-Backups (cmd/backup) landen im Archiv-Bucket unter backups/
	BackupKeep int `envconfig:"BACKUP_KEEP" default:"4"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// ArchiveEnabled meldet, ob Submissions nach S3 archiviert werden sollen.
func (c *Config) ArchiveEnabled() bool {
	return c.ArchiveS3Bucket != ""
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
