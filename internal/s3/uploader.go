// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package s3

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

const (
	// 10MB per part above the manager's multipart threshold
	partSize    = 10 * 1024 * 1024
	concurrency = 3
)

// API is the subset of the transfer manager used for artifact delivery.
type API interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Uploader delivers finished export artifacts to S3.
type Uploader struct {
	api    API
	bucket string
	prefix string
	logger *zap.Logger
}

// NewUploader creates a new S3 uploader from an AWS config.
func NewUploader(awsCfg aws.Config, bucket, prefix string, logger *zap.Logger) *Uploader {
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Support custom endpoint via environment variable (for LocalStack)
		if endpoint := os.Getenv("AWS_ENDPOINT_URL"); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
			logger.Info("Using custom S3 endpoint", zap.String("endpoint", endpoint))
		}
	})
	api := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = partSize
		u.Concurrency = concurrency
	})
	return NewUploaderWithAPI(api, bucket, prefix, logger)
}

// NewUploaderWithAPI creates an uploader over an existing transfer API.
func NewUploaderWithAPI(api API, bucket, prefix string, logger *zap.Logger) *Uploader {
	return &Uploader{
		api:    api,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
	}
}

// Key returns <prefix>/<report>/<jobID>/<file>.
func (u *Uploader) Key(report, jobID, file string) string {
	return path.Join(u.prefix, report, jobID, filepath.Base(file))
}

// UploadArtifact uploads one file and returns its S3 URI. Failures are not retried.
func (u *Uploader) UploadArtifact(ctx context.Context, report, jobID, localPath string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to get file info: %w", err)
	}

	key := u.Key(report, jobID, localPath)
	u.logger.Info("Uploading artifact to S3",
		zap.String("file", localPath),
		zap.String("bucket", u.bucket),
		zap.String("s3_key", key),
		zap.Int64("size", fileInfo.Size()))

	_, err = u.api.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   file,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", localPath, err)
	}

	uri := fmt.Sprintf("s3://%s/%s", u.bucket, key)
	u.logger.Info("Artifact uploaded", zap.String("uri", uri))
	return uri, nil
}

// UploadAll uploads every file and returns the URIs that succeeded.
func (u *Uploader) UploadAll(ctx context.Context, report, jobID string, paths []string) ([]string, error) {
	var (
		uris []string
		errs []error
	)
	for _, p := range paths {
		uri, err := u.UploadArtifact(ctx, report, jobID, p)
		if err != nil {
			u.logger.Error("Artifact upload failed", zap.String("file", p), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		uris = append(uris, uri)
	}
	return uris, errors.Join(errs...)
}
