package storage

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"goat-backend/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectPutter ist der Teil des S3-Clients, den das Archiv benötigt.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3Client erstellt einen S3-Client für das Submission-Archiv.
// Ohne ARCHIVE_S3_URL wird der Standard-Endpunkt von AWS verwendet.
func NewS3Client(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.ArchiveS3Region),
	}
	if cfg.ArchiveS3Key != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.ArchiveS3Key, cfg.ArchiveS3Secret, "")))
	}
	if cfg.ArchiveS3URL != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:               cfg.ArchiveS3URL,
					SigningRegion:     cfg.ArchiveS3Region,
					HostnameImmutable: true,
				}, nil
			},
		)
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(awsCfg), nil
}

// UploadObject lädt ein Objekt hoch und gibt den Schlüssel im Format bucket/key zurück.
func UploadObject(ctx context.Context, client ObjectPutter, bucket, key, contentType string, data []byte) (string, error) {
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3-upload von %s fehlgeschlagen: %w", key, err)
	}
	return fmt.Sprintf("%s/%s", bucket, key), nil
}

// ObjectRotator ist der Teil des S3-Clients, den die Backup-Rotation benötigt.
type ObjectRotator interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// RotateObjects behält unter prefix nur die keep neuesten Objekte und gibt die
// gelöschten Schlüssel zurück. Einzelne Löschfehler brechen die Rotation nicht ab.
func RotateObjects(ctx context.Context, client ObjectRotator, bucket, prefix string, keep int) ([]string, error) {
	output, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("auflisten von %s/%s fehlgeschlagen: %w", bucket, prefix, err)
	}
	if len(output.Contents) <= keep {
		return nil, nil
	}

	objects := output.Contents
	sort.Slice(objects, func(i, j int) bool {
		return aws.ToTime(objects[i].LastModified).After(aws.ToTime(objects[j].LastModified))
	})

	var deleted []string
	var firstErr error
	for _, obj := range objects[keep:] {
		_, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    obj.Key,
		})
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("löschen von %s fehlgeschlagen: %w", aws.ToString(obj.Key), err)
			}
			continue
		}
		deleted = append(deleted, aws.ToString(obj.Key))
	}
	return deleted, firstErr
}
