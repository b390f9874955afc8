package main

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strconv"
	"time"

	"go.uber.org/zap"

	"goat-backend/config"
	"goat-backend/storage"
)

const backupPrefix = "backups/"

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Logger konnte nicht initialisiert werden: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Fehler beim Laden der Konfiguration", zap.Error(err))
	}
	if !cfg.ArchiveEnabled() {
		logger.Fatal("ARCHIVE_S3_BUCKET ist nicht gesetzt")
	}

	ctx := context.Background()
	logger.Info("Starte Backup-Prozess", zap.String("db", cfg.DBName))

	dumpData, err := createDump(ctx, cfg)
	if err != nil {
		logger.Fatal("Fehler beim Erstellen des DB-Dumps", zap.Error(err))
	}

	client, err := storage.NewS3Client(ctx, cfg)
	if err != nil {
		logger.Fatal("Fehler beim Erstellen des S3-Clients", zap.Error(err))
	}

	key := backupPrefix + fmt.Sprintf("goat-%s.sql.gz", time.Now().UTC().Format("2006-01-02T15-04-05Z"))
	location, err := storage.UploadObject(ctx, client, cfg.ArchiveS3Bucket, key, "application/gzip", dumpData)
	if err != nil {
		logger.Fatal("Fehler beim Hochladen nach S3", zap.Error(err))
	}
	logger.Info("Backup hochgeladen", zap.String("location", location), zap.Int("bytes", len(dumpData)))

	deleted, err := storage.RotateObjects(ctx, client, cfg.ArchiveS3Bucket, backupPrefix, cfg.BackupKeep)
	for _, k := range deleted {
		logger.Info("Altes Backup gelöscht", zap.String("key", k))
	}
	if err != nil {
		logger.Error("Rotation alter Backups unvollständig", zap.Error(err))
	}
}

func createDump(ctx context.Context, cfg *config.Config) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "pg_dump",
		"-h", cfg.DBHost,
		"-p", strconv.Itoa(cfg.DBPort),
		"-U", cfg.DBUser,
		"-d", cfg.DBName,
		"-w", // Passwort kommt über PGPASSWORD
	)
	cmd.Env = append(os.Environ(), fmt.Sprintf("PGPASSWORD=%s", cfg.DBPassword))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)
	if _, err := io.Copy(gzipWriter, stdout); err != nil {
		return nil, err
	}
	if err := gzipWriter.Close(); err != nil {
		return nil, err
	}
	if err := cmd.Wait(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
