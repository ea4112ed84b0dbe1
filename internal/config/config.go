package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/Velipetroll/Backend-Cloudinary/internal/domain"
)

const (
	BackendCloudinary = "cloudinary"
	BackendMinio      = "minio"
	BackendMemory     = "memory"

	StagingDisk   = "disk"
	StagingMemory = "memory"

	ListModePrefix = "prefix"
	ListModeTag    = "tag"

	UploadModeAuto = "auto"
	UploadModeRaw  = "raw"

	defaultMaxUploadBytes = 10 << 20
)

type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Cloudinary CloudinaryConfig
	Minio      MinioConfig
	Upload     UploadConfig
	Cache      CacheConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port                       string
	Mode                       string
	ReadTimeout                int
	WriteTimeout               int
	AllowedOrigins             []string
	DegradedOnIncompleteConfig bool
}

type StorageConfig struct {
	Backend        string
	TimeoutSeconds int
	ListMode       string
	ListMax        int
}

// Timeout is the per-call host timeout; zero means none.
func (s StorageConfig) Timeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// CloudinaryConfig holds the media host credentials.
type CloudinaryConfig struct {
	URL        string
	CloudName  string
	APIKey     string
	APISecret  string
	UploadMode string
	ListTypes  []string
}

func (c CloudinaryConfig) MarshalZerologObject(e *zerolog.Event) {
	e.Str("cloud_name", c.CloudName).
		Str("api_key", mask(c.APIKey)).
		Str("api_secret", mask(c.APISecret)).
		Bool("url_set", c.URL != "").
		Str("upload_mode", c.UploadMode).
		Strs("list_types", c.ListTypes)
}

type MinioConfig struct {
	Endpoint            string
	AccessKey           string
	SecretKey           string
	Bucket              string
	Region              string
	UseSSL              bool
	PublicBaseURL       string
	PresignExpiryMinute int
}

func (c MinioConfig) MarshalZerologObject(e *zerolog.Event) {
	e.Str("endpoint", c.Endpoint).
		Str("bucket", c.Bucket).
		Str("region", c.Region).
		Bool("use_ssl", c.UseSSL).
		Str("access_key", mask(c.AccessKey)).
		Str("secret_key", mask(c.SecretKey))
}

// PresignExpiry bounds how long generated download URLs stay valid.
func (c MinioConfig) PresignExpiry() time.Duration {
	if c.PresignExpiryMinute <= 0 {
		return time.Hour
	}
	return time.Duration(c.PresignExpiryMinute) * time.Minute
}

type UploadConfig struct {
	MaxBytes     int64
	Staging      string
	TempDir      string
	AllowedTypes []string
}

type CacheConfig struct {
	Enabled        bool
	RedisURL       string
	RedisHost      string
	RedisPort      string
	RedisPassword  string
	RedisDB        int
	ListTTLSeconds int
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads .env (when present) and the process environment into a Config.
// It does not validate; call Validate before serving.
func Load() *Config {
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("SERVER_READ_TIMEOUT", 30)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 60)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000")
	v.SetDefault("SERVER_DEGRADED_ON_INCOMPLETE_CONFIG", false)
	v.SetDefault("STORAGE_BACKEND", BackendCloudinary)
	v.SetDefault("STORAGE_TIMEOUT_SECONDS", 0)
	v.SetDefault("STORAGE_LIST_MODE", ListModePrefix)
	v.SetDefault("STORAGE_LIST_MAX", 50)
	v.SetDefault("CLOUDINARY_UPLOAD_MODE", UploadModeAuto)
	v.SetDefault("CLOUDINARY_LIST_TYPES", "image,raw,video")
	v.SetDefault("MINIO_REGION", "us-east-1")
	v.SetDefault("MINIO_USE_SSL", true)
	v.SetDefault("MINIO_PRESIGN_EXPIRY_MINUTES", 60)
	v.SetDefault("UPLOAD_MAX_BYTES", defaultMaxUploadBytes)
	v.SetDefault("UPLOAD_STAGING", StagingDisk)
	v.SetDefault("UPLOAD_TEMP_DIR", os.TempDir())
	v.SetDefault("UPLOAD_ALLOWED_TYPES", "")
	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_LIST_TTL_SECONDS", 30)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	v.AutomaticEnv()

	return &Config{
		Server: ServerConfig{
			Port:                       v.GetString("SERVER_PORT"),
			Mode:                       v.GetString("SERVER_MODE"),
			ReadTimeout:                v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:               v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins:             splitList(v.GetString("SERVER_ALLOWED_ORIGINS")),
			DegradedOnIncompleteConfig: v.GetBool("SERVER_DEGRADED_ON_INCOMPLETE_CONFIG"),
		},
		Storage: StorageConfig{
			Backend:        strings.ToLower(strings.TrimSpace(v.GetString("STORAGE_BACKEND"))),
			TimeoutSeconds: v.GetInt("STORAGE_TIMEOUT_SECONDS"),
			ListMode:       strings.ToLower(strings.TrimSpace(v.GetString("STORAGE_LIST_MODE"))),
			ListMax:        v.GetInt("STORAGE_LIST_MAX"),
		},
		Cloudinary: CloudinaryConfig{
			URL:        strings.TrimSpace(v.GetString("CLOUDINARY_URL")),
			CloudName:  strings.TrimSpace(v.GetString("CLOUDINARY_CLOUD_NAME")),
			APIKey:     strings.TrimSpace(v.GetString("CLOUDINARY_API_KEY")),
			APISecret:  strings.TrimSpace(v.GetString("CLOUDINARY_API_SECRET")),
			UploadMode: strings.ToLower(strings.TrimSpace(v.GetString("CLOUDINARY_UPLOAD_MODE"))),
			ListTypes:  splitList(v.GetString("CLOUDINARY_LIST_TYPES")),
		},
		Minio: MinioConfig{
			Endpoint:            strings.TrimSpace(v.GetString("MINIO_ENDPOINT")),
			AccessKey:           strings.TrimSpace(v.GetString("MINIO_ACCESS_KEY")),
			SecretKey:           strings.TrimSpace(v.GetString("MINIO_SECRET_KEY")),
			Bucket:              strings.TrimSpace(v.GetString("MINIO_BUCKET")),
			Region:              strings.TrimSpace(v.GetString("MINIO_REGION")),
			UseSSL:              v.GetBool("MINIO_USE_SSL"),
			PublicBaseURL:       strings.TrimRight(strings.TrimSpace(v.GetString("MINIO_PUBLIC_BASE_URL")), "/"),
			PresignExpiryMinute: v.GetInt("MINIO_PRESIGN_EXPIRY_MINUTES"),
		},
		Upload: UploadConfig{
			MaxBytes:     v.GetInt64("UPLOAD_MAX_BYTES"),
			Staging:      strings.ToLower(strings.TrimSpace(v.GetString("UPLOAD_STAGING"))),
			TempDir:      v.GetString("UPLOAD_TEMP_DIR"),
			AllowedTypes: splitList(v.GetString("UPLOAD_ALLOWED_TYPES")),
		},
		Cache: CacheConfig{
			Enabled:        v.GetBool("CACHE_ENABLED"),
			RedisURL:       v.GetString("REDIS_URL"),
			RedisHost:      v.GetString("REDIS_HOST"),
			RedisPort:      v.GetString("REDIS_PORT"),
			RedisPassword:  v.GetString("REDIS_PASSWORD"),
			RedisDB:        v.GetInt("REDIS_DB"),
			ListTTLSeconds: v.GetInt("CACHE_LIST_TTL_SECONDS"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}
}

// Validate reports settings the selected backend cannot run without. The
// returned error wraps domain.ErrConfigIncomplete when credentials are missing.
func (c *Config) Validate() error {
	var missing []string

	switch c.Storage.Backend {
	case BackendCloudinary:
		if c.Cloudinary.URL == "" {
			if c.Cloudinary.CloudName == "" {
				missing = append(missing, "CLOUDINARY_CLOUD_NAME")
			}
			if c.Cloudinary.APIKey == "" {
				missing = append(missing, "CLOUDINARY_API_KEY")
			}
			if c.Cloudinary.APISecret == "" {
				missing = append(missing, "CLOUDINARY_API_SECRET")
			}
		}
	case BackendMinio:
		if c.Minio.Endpoint == "" {
			missing = append(missing, "MINIO_ENDPOINT")
		}
		if c.Minio.AccessKey == "" {
			missing = append(missing, "MINIO_ACCESS_KEY")
		}
		if c.Minio.SecretKey == "" {
			missing = append(missing, "MINIO_SECRET_KEY")
		}
		if c.Minio.Bucket == "" {
			missing = append(missing, "MINIO_BUCKET")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", domain.ErrConfigIncomplete, strings.Join(missing, ", "))
	}

	if c.Storage.Backend == BackendCloudinary &&
		c.Cloudinary.UploadMode != UploadModeAuto && c.Cloudinary.UploadMode != UploadModeRaw {
		return fmt.Errorf("CLOUDINARY_UPLOAD_MODE must be %q or %q, got %q", UploadModeAuto, UploadModeRaw, c.Cloudinary.UploadMode)
	}

	if c.Storage.ListMode != ListModePrefix && c.Storage.ListMode != ListModeTag {
		return fmt.Errorf("STORAGE_LIST_MODE must be %q or %q, got %q", ListModePrefix, ListModeTag, c.Storage.ListMode)
	}
	if c.Upload.Staging != StagingDisk && c.Upload.Staging != StagingMemory {
		return fmt.Errorf("UPLOAD_STAGING must be %q or %q, got %q", StagingDisk, StagingMemory, c.Upload.Staging)
	}
	if c.Upload.MaxBytes < 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must not be negative")
	}
	if c.Upload.Staging == StagingDisk {
		ensureDir(c.Upload.TempDir)
	}

	return nil
}

func ensureDir(dir string) {
	if dir == "" {
		return
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		_ = os.MkdirAll(dir, 0o755)
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:2] + strings.Repeat("*", len(secret)-4) + secret[len(secret)-2:]
}
