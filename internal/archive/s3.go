// Package archive uploads raw input files to S3 compatible object storage.
//
// Archiving is best effort: callers log a failed upload and carry on with
// the conversion.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/ginjaninja78/inventory-csv-mapper/internal/apperrors"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/config"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/logging"
)

// Archiver stores a raw upload and returns its object key.
type Archiver interface {
	Upload(ctx context.Context, userID, filename string, data []byte) (string, error)
}

// putter is the subset of *s3.Client used here.
type putter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 uploads to one bucket under a key prefix.
type S3 struct {
	client putter
	bucket string
	prefix string
	newID  func() string
}

// New builds an S3 archiver from cfg. Credentials and region come from the
// default AWS chain; a non-empty Endpoint targets an S3 compatible service
// with path-style addressing.
func New(ctx context.Context, cfg config.ArchiveConfig) (*S3, error) {
	var opts []func(*awscfg.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awscfg.WithRegion(cfg.Region))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.UsePathStyle = true
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newS3(client, cfg.Bucket, cfg.Prefix), nil
}

func newS3(client putter, bucket, prefix string) *S3 {
	return &S3{client: client, bucket: bucket, prefix: prefix, newID: uuid.NewString}
}

// ObjectKey returns "{prefix}{userID}/{id}{ext}". The extension is taken from
// filename and lowercased.
func ObjectKey(prefix, userID, filename, id string) string {
	if userID == "" {
		userID = "anonymous"
	}
	return prefix + userID + "/" + id + strings.ToLower(filepath.Ext(filename))
}

// Upload stores data and returns the object key.
func (s *S3) Upload(ctx context.Context, userID, filename string, data []byte) (string, error) {
	key := ObjectKey(s.prefix, userID, filename, s.newID())

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType(filename)),
		Metadata:    map[string]string{"original-filename": filepath.Base(filename)},
	})
	if err != nil {
		return "", apperrors.External("archive upload", fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err))
	}

	logging.WithFields(ctx, "bucket", s.bucket, "key", key).Info("archived raw upload", "bytes", len(data))
	return key, nil
}

func contentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return "text/csv"
	case ".xlsx", ".xlsm", ".xltx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".xls":
		return "application/vnd.ms-excel"
	default:
		return "application/octet-stream"
	}
}
