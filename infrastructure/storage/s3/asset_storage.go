package s3

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/realaman90/koda-sub002/application/ports"
	appErrors "github.com/realaman90/koda-sub002/pkg/errors"
)

// API is the subset of the S3 client used for uploads
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// PresignAPI is the subset of the presign client used for direct uploads
type PresignAPI interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Config configures the asset store
type Config struct {
	Bucket string
	// BaseURL is the public prefix for stored objects, usually a CDN.
	// Defaults to the bucket's virtual hosted URL.
	BaseURL       string
	Region        string
	PresignExpiry time.Duration
	KeyPrefix     string
}

// AssetStorage implements ports.AssetStorage on S3
type AssetStorage struct {
	client  API
	presign PresignAPI
	config  Config
	now     func() time.Time
	logger  *zap.Logger
}

var _ ports.AssetStorage = (*AssetStorage)(nil)

// NewAssetStorage creates an S3 backed asset store
func NewAssetStorage(client API, presign PresignAPI, cfg Config, logger *zap.Logger) *AssetStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PresignExpiry <= 0 {
		cfg.PresignExpiry = 15 * time.Minute
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "uploads"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &AssetStorage{
		client:  client,
		presign: presign,
		config:  cfg,
		now:     time.Now,
		logger:  logger,
	}
}

// NewFromClient wires both halves from one S3 client
func NewFromClient(client *s3.Client, cfg Config, logger *zap.Logger) *AssetStorage {
	return NewAssetStorage(client, s3.NewPresignClient(client), cfg, logger)
}

// Upload stores body under key and returns its public URL
func (s *AssetStorage) Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return "", appErrors.NewValidationError("asset key is required")
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.config.Bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		s.logger.Error("Failed to upload asset",
			zap.String("bucket", s.config.Bucket),
			zap.String("key", key),
			zap.Error(err))
		return "", appErrors.NewExternalError("s3", err)
	}

	s.logger.Debug("Asset uploaded", zap.String("key", key))
	return s.publicURL(key), nil
}

// Presign returns a time limited PUT URL for a new object named after fileName
func (s *AssetStorage) Presign(ctx context.Context, fileName, contentType string) (ports.PresignedUpload, error) {
	if strings.TrimSpace(fileName) == "" {
		return ports.PresignedUpload{}, appErrors.NewValidationError("file name is required")
	}
	if contentType == "" {
		return ports.PresignedUpload{}, appErrors.NewValidationError("content type is required")
	}

	key := s.newKey(fileName)
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.config.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.config.PresignExpiry))
	if err != nil {
		return ports.PresignedUpload{}, appErrors.NewExternalError("s3", err)
	}

	return ports.PresignedUpload{
		UploadURL: req.URL,
		PublicURL: s.publicURL(key),
		Key:       key,
		ExpiresAt: s.now().Add(s.config.PresignExpiry),
	}, nil
}

// newKey keeps the extension of fileName and makes the name unique
func (s *AssetStorage) newKey(fileName string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(fileName, "\\", "/"))))
	return fmt.Sprintf("%s/%s/%s%s", s.config.KeyPrefix, s.now().UTC().Format("2006/01/02"), uuid.NewString(), ext)
}

func (s *AssetStorage) publicURL(key string) string {
	return s.config.BaseURL + "/" + key
}
