package storage

import (
	"fmt"

	"github.com/Velipetroll/Backend-Cloudinary/internal/config"
)

// New builds the gateway selected by cfg.Storage.Backend.
func New(cfg *config.Config) (Gateway, error) {
	opts := Options{
		Mode:    ModeAuto,
		Timeout: cfg.Storage.Timeout(),
	}
	if cfg.Cloudinary.UploadMode == config.UploadModeRaw {
		opts.Mode = ModeRaw
	}

	switch cfg.Storage.Backend {
	case config.BackendCloudinary:
		return NewCloudinaryGateway(CloudinaryConfig{
			URL:       cfg.Cloudinary.URL,
			CloudName: cfg.Cloudinary.CloudName,
			APIKey:    cfg.Cloudinary.APIKey,
			APISecret: cfg.Cloudinary.APISecret,
			ListTypes: cfg.Cloudinary.ListTypes,
		}, opts)
	case config.BackendMinio:
		return NewMinioGateway(MinioConfig{
			Endpoint:      cfg.Minio.Endpoint,
			AccessKey:     cfg.Minio.AccessKey,
			SecretKey:     cfg.Minio.SecretKey,
			Bucket:        cfg.Minio.Bucket,
			Region:        cfg.Minio.Region,
			UseSSL:        cfg.Minio.UseSSL,
			PublicBaseURL: cfg.Minio.PublicBaseURL,
			PresignExpiry: cfg.Minio.PresignExpiry(),
		}, opts)
	case config.BackendMemory:
		return NewMemoryGateway(""), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
