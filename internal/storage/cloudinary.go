package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/admin"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"github.com/Velipetroll/Backend-Cloudinary/internal/domain"
)

const deliveryUpload = api.DeliveryType("upload")

// CloudinaryConfig carries the credential triple (or a CLOUDINARY_URL) and
// the resource types scanned when listing or resolving assets.
type CloudinaryConfig struct {
	URL       string
	CloudName string
	APIKey    string
	APISecret string
	ListTypes []string
}

// The SDK surface the gateway uses, narrowed so tests can stand in for the host.
type cloudinaryUploader interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
}

type cloudinaryAdmin interface {
	Assets(ctx context.Context, params admin.AssetsParams) (*admin.AssetsResult, error)
	AssetsByTag(ctx context.Context, params admin.AssetsByTagParams) (*admin.AssetsResult, error)
	Asset(ctx context.Context, params admin.AssetParams) (*admin.AssetResult, error)
}

// CloudinaryGateway implements Gateway on the Cloudinary upload and admin APIs.
type CloudinaryGateway struct {
	uploader  cloudinaryUploader
	admin     cloudinaryAdmin
	listTypes []api.AssetType
	opts      Options
}

// NewCloudinaryGateway authenticates a Cloudinary client from cfg.
func NewCloudinaryGateway(cfg CloudinaryConfig, opts Options) (*CloudinaryGateway, error) {
	var (
		cld *cloudinary.Cloudinary
		err error
	)
	switch {
	case cfg.URL != "":
		cld, err = cloudinary.NewFromURL(cfg.URL)
	case cfg.CloudName != "" && cfg.APIKey != "" && cfg.APISecret != "":
		cld, err = cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	default:
		return nil, fmt.Errorf("%w: cloudinary credentials must be provided", domain.ErrConfigIncomplete)
	}
	if err != nil {
		return nil, fmt.Errorf("cloudinary client: %w", err)
	}
	cld.Config.URL.Secure = true

	return newCloudinaryGateway(&cld.Upload, &cld.Admin, cfg.ListTypes, opts), nil
}

func newCloudinaryGateway(up cloudinaryUploader, adm cloudinaryAdmin, listTypes []string, opts Options) *CloudinaryGateway {
	if opts.Mode == "" {
		opts.Mode = ModeAuto
	}
	types := make([]api.AssetType, 0, len(listTypes))
	for _, t := range listTypes {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, api.AssetType(t))
		}
	}
	if len(types) == 0 {
		types = []api.AssetType{api.AssetType("image")}
	}
	return &CloudinaryGateway{
		uploader:  up,
		admin:     adm,
		listTypes: types,
		opts:      opts,
	}
}

// Store uploads the bytes into the key's folder, tagged with tags.
func (g *CloudinaryGateway) Store(ctx context.Context, input StoreInput) (*domain.AssetDescriptor, error) {
	ctx, cancel := withTimeout(ctx, g.opts.Timeout)
	defer cancel()

	result, err := g.uploader.Upload(ctx, bytes.NewReader(input.Body), uploader.UploadParams{
		Folder:       input.Key.String(),
		Tags:         input.Tags,
		ResourceType: string(g.opts.Mode),
	})
	if err != nil {
		return nil, classifyCloudinaryError(domain.ErrUploadFailed, err.Error(), err)
	}
	if result == nil {
		return nil, fmt.Errorf("%w: empty response", domain.ErrUploadFailed)
	}
	if msg := result.Error.Message; msg != "" {
		return nil, classifyCloudinaryError(domain.ErrUploadFailed, msg, errors.New(msg))
	}

	original := input.FileName
	if original == "" {
		original = result.OriginalFilename
	}

	return &domain.AssetDescriptor{
		URL:              result.SecureURL,
		AssetID:          result.PublicID,
		Format:           result.Format,
		SizeBytes:        int64(result.Bytes),
		CreatedAt:        result.CreatedAt,
		Folder:           input.Key.String(),
		OriginalFilename: original,
	}, nil
}

// List returns up to query.Max assets under the key, scanning each configured
// resource type in order. A missing folder is an empty result.
func (g *CloudinaryGateway) List(ctx context.Context, query ListQuery) ([]domain.AssetDescriptor, error) {
	ctx, cancel := withTimeout(ctx, g.opts.Timeout)
	defer cancel()

	limit := query.limit()
	results := make([]domain.AssetDescriptor, 0)

	for _, assetType := range g.listTypes {
		remaining := limit - len(results)
		if remaining <= 0 {
			break
		}

		var (
			page *admin.AssetsResult
			err  error
		)
		if query.Mode == ListByTag {
			page, err = g.admin.AssetsByTag(ctx, admin.AssetsByTagParams{
				AssetType:  assetType,
				Tag:        query.Key.Tag(),
				MaxResults: remaining,
			})
		} else {
			page, err = g.admin.Assets(ctx, admin.AssetsParams{
				AssetType:    assetType,
				DeliveryType: string(deliveryUpload),
				Prefix:       query.Key.Prefix(),
				MaxResults:   remaining,
			})
		}
		if err != nil {
			if isCloudinaryNotFound(err.Error()) {
				continue
			}
			return nil, classifyCloudinaryError(domain.ErrListFailed, err.Error(), err)
		}
		if page == nil {
			continue
		}
		if msg := page.Error.Message; msg != "" {
			if isCloudinaryNotFound(msg) {
				continue
			}
			return nil, classifyCloudinaryError(domain.ErrListFailed, msg, errors.New(msg))
		}

		for _, asset := range page.Assets {
			results = append(results, domain.AssetDescriptor{
				URL:       asset.SecureURL,
				AssetID:   asset.PublicID,
				Format:    asset.Format,
				SizeBytes: int64(asset.Bytes),
				CreatedAt: asset.CreatedAt,
				Folder:    query.Key.String(),
			})
			if len(results) >= limit {
				break
			}
		}
	}

	return results, nil
}

// FetchMetadata resolves a public id, trying each configured resource type.
func (g *CloudinaryGateway) FetchMetadata(ctx context.Context, assetID string) (*domain.AssetDescriptor, error) {
	ctx, cancel := withTimeout(ctx, g.opts.Timeout)
	defer cancel()

	for _, assetType := range g.listTypes {
		result, err := g.admin.Asset(ctx, admin.AssetParams{
			AssetType:    assetType,
			DeliveryType: deliveryUpload,
			PublicID:     assetID,
		})
		if err != nil {
			if isCloudinaryNotFound(err.Error()) {
				continue
			}
			return nil, classifyCloudinaryError(domain.ErrResolveFailed, err.Error(), err)
		}
		if result == nil {
			continue
		}
		if msg := result.Error.Message; msg != "" {
			if isCloudinaryNotFound(msg) {
				continue
			}
			return nil, classifyCloudinaryError(domain.ErrResolveFailed, msg, errors.New(msg))
		}
		if result.SecureURL == "" {
			continue
		}

		return &domain.AssetDescriptor{
			URL:       result.SecureURL,
			AssetID:   result.PublicID,
			Format:    result.Format,
			SizeBytes: int64(result.Bytes),
			CreatedAt: result.CreatedAt,
		}, nil
	}

	return nil, fmt.Errorf("%w: %s", domain.ErrAssetNotFound, assetID)
}

func isCloudinaryNotFound(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "not found") ||
		strings.Contains(lower, "no such folder") ||
		strings.Contains(lower, "can't find folder")
}

var cloudinaryAuthHints = []string{
	"api_key",
	"api_secret",
	"invalid signature",
	"cloud_name",
	"unauthorized",
	"401",
}

func classifyCloudinaryError(kind error, msg string, err error) error {
	lower := strings.ToLower(msg)
	for _, hint := range cloudinaryAuthHints {
		if strings.Contains(lower, hint) {
			return fmt.Errorf("%w: %w: %w", kind, domain.ErrAuth, err)
		}
	}
	return fmt.Errorf("%w: %w", kind, err)
}

var _ Gateway = (*CloudinaryGateway)(nil)
