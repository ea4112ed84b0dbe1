package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Velipetroll/Backend-Cloudinary/internal/domain"
)

const (
	metaOriginalFilename = "original-filename"
	tagLabel             = "label"
)

// MinioConfig encapsulates the connection info for S3-compatible storage.
type MinioConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	UseSSL        bool
	PublicBaseURL string
	PresignExpiry time.Duration
}

// MinioGateway implements Gateway on an S3-compatible bucket.
type MinioGateway struct {
	client  *minio.Client
	bucket  string
	baseURL string
	expiry  time.Duration
	opts    Options
}

// NewMinioGateway builds a gateway backed by minio-go.
func NewMinioGateway(cfg MinioConfig, opts Options) (*MinioGateway, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: minio endpoint must be provided", domain.ErrConfigIncomplete)
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("%w: minio credentials must be provided", domain.ErrConfigIncomplete)
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: minio bucket must be provided", domain.ErrConfigIncomplete)
	}

	// minio-go wants a bare host; accept full URLs in configuration.
	endpoint := cfg.Endpoint
	secure := cfg.UseSSL
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		secure = true
		endpoint = strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		secure = false
		endpoint = strings.TrimPrefix(endpoint, "http://")
	}
	endpoint = strings.TrimSuffix(strings.TrimPrefix(endpoint, "//"), "/")

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}

	return &MinioGateway{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		expiry:  expiry,
		opts:    opts,
	}, nil
}

// Store writes the bytes as key/<uuid><ext>; every call creates a new object.
func (g *MinioGateway) Store(ctx context.Context, input StoreInput) (*domain.AssetDescriptor, error) {
	ctx, cancel := withTimeout(ctx, g.opts.Timeout)
	defer cancel()

	ext := strings.ToLower(path.Ext(input.FileName))
	name := input.Key.String() + "/" + uuid.NewString() + ext

	contentType := input.MimeType
	if contentType == "" || g.opts.Mode == ModeRaw {
		contentType = "application/octet-stream"
	}

	putOpts := minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{metaOriginalFilename: input.FileName},
	}
	if len(input.Tags) > 0 {
		putOpts.UserTags = map[string]string{tagLabel: strings.Join(input.Tags, ",")}
	}

	info, err := g.client.PutObject(ctx, g.bucket, name, bytes.NewReader(input.Body), int64(len(input.Body)), putOpts)
	if err != nil {
		return nil, classifyMinioError(domain.ErrUploadFailed, err)
	}

	link, err := g.objectURL(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUploadFailed, err)
	}

	created := info.LastModified
	if created.IsZero() {
		created = time.Now().UTC()
	}

	return &domain.AssetDescriptor{
		URL:              link,
		AssetID:          name,
		Format:           strings.TrimPrefix(ext, "."),
		SizeBytes:        info.Size,
		CreatedAt:        created,
		Folder:           input.Key.String(),
		OriginalFilename: input.FileName,
	}, nil
}

// List walks the key prefix. Tags are stored per object, so both list modes
// resolve to the same prefix scan here.
func (g *MinioGateway) List(ctx context.Context, query ListQuery) ([]domain.AssetDescriptor, error) {
	ctx, cancel := withTimeout(ctx, g.opts.Timeout)
	defer cancel()

	limit := query.limit()
	objects := g.client.ListObjects(ctx, g.bucket, minio.ListObjectsOptions{
		Prefix:    query.Key.Prefix(),
		Recursive: true,
		MaxKeys:   limit,
	})

	results := make([]domain.AssetDescriptor, 0)
	for object := range objects {
		if object.Err != nil {
			if isMinioNotFound(object.Err) {
				return []domain.AssetDescriptor{}, nil
			}
			return nil, classifyMinioError(domain.ErrListFailed, object.Err)
		}
		if strings.HasSuffix(object.Key, "/") {
			continue
		}
		link, err := g.objectURL(ctx, object.Key)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrListFailed, err)
		}
		results = append(results, domain.AssetDescriptor{
			URL:       link,
			AssetID:   object.Key,
			Format:    strings.TrimPrefix(strings.ToLower(path.Ext(object.Key)), "."),
			SizeBytes: object.Size,
			CreatedAt: object.LastModified,
			Folder:    query.Key.String(),
		})
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

// FetchMetadata stats the object named by assetID.
func (g *MinioGateway) FetchMetadata(ctx context.Context, assetID string) (*domain.AssetDescriptor, error) {
	ctx, cancel := withTimeout(ctx, g.opts.Timeout)
	defer cancel()

	info, err := g.client.StatObject(ctx, g.bucket, assetID, minio.StatObjectOptions{})
	if err != nil {
		if isMinioNotFound(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrAssetNotFound, assetID)
		}
		return nil, classifyMinioError(domain.ErrResolveFailed, err)
	}

	link, err := g.objectURL(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrResolveFailed, err)
	}

	return &domain.AssetDescriptor{
		URL:              link,
		AssetID:          info.Key,
		Format:           strings.TrimPrefix(strings.ToLower(path.Ext(info.Key)), "."),
		SizeBytes:        info.Size,
		CreatedAt:        info.LastModified,
		Folder:           path.Dir(info.Key),
		OriginalFilename: info.UserMetadata["Original-Filename"],
	}, nil
}

func (g *MinioGateway) objectURL(ctx context.Context, name string) (string, error) {
	if g.baseURL != "" {
		return g.baseURL + "/" + g.bucket + "/" + (&url.URL{Path: name}).EscapedPath(), nil
	}
	presigned, err := g.client.PresignedGetObject(ctx, g.bucket, name, g.expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", name, err)
	}
	return presigned.String(), nil
}

func isMinioNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchObject":
		return true
	}
	return false
}

func classifyMinioError(kind, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
		return fmt.Errorf("%w: %w: %w", kind, domain.ErrAuth, err)
	}
	return fmt.Errorf("%w: %w", kind, err)
}

var _ Gateway = (*MinioGateway)(nil)
