package storage

import (
	"errors"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"goat-backend/config"
	"goat-backend/models"
)

// OpenDatabase öffnet die PostgreSQL-Verbindung.
func OpenDatabase(cfg *config.Config) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
}

// Migrate legt alle Tabellen an bzw. gleicht sie an die Modelle an.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Publication{},
		&models.Taxon{},
		&models.ExternalSource{},
		&models.Locus{},
		&models.LocusName{},
		&models.GeneSymbol{},
		&models.KeywordType{},
		&models.Keyword{},
		&models.KeywordTemp{},
		&models.Submission{},
		&models.GeneTermAnnotation{},
		&models.EvidenceWith{},
		&models.GeneGeneAnnotation{},
		&models.CommentAnnotation{},
		&models.Annotation{},
		&models.Draft{},
	)
}

// IsUniqueViolation erkennt Verletzungen eines Unique-Constraints,
// unabhängig davon, ob der Treiber den Fehler übersetzt hat.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}
	// SQLite (Tests)
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
