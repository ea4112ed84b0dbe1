package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Velipetroll/Backend-Cloudinary/internal/cache"
	"github.com/Velipetroll/Backend-Cloudinary/internal/domain"
	"github.com/Velipetroll/Backend-Cloudinary/internal/storage"
)

// Listing is one folder's worth of assets.
type Listing struct {
	Key    domain.DestinationKey
	Assets []domain.AssetDescriptor
}

type AssetService struct {
	gateway  storage.Gateway
	cache    cache.ListingCache
	listMode storage.ListMode
	listMax  int

	// generations counts invalidations per folder. A listing read from the
	// gateway is cached only if no invalidation happened while it was in flight.
	mu          sync.RWMutex
	generations map[string]uint64
}

type Option func(*AssetService)

// WithListMode selects prefix or tag based listing.
func WithListMode(mode storage.ListMode) Option {
	return func(s *AssetService) {
		if mode != "" {
			s.listMode = mode
		}
	}
}

// WithListMax caps listing size.
func WithListMax(max int) Option {
	return func(s *AssetService) {
		if max > 0 {
			s.listMax = max
		}
	}
}

func WithCache(c cache.ListingCache) Option {
	return func(s *AssetService) {
		if c != nil {
			s.cache = c
		}
	}
}

func NewAssetService(gateway storage.Gateway, opts ...Option) *AssetService {
	s := &AssetService{
		gateway:  gateway,
		cache:    cache.NewNoopListingCache(),
		listMode: storage.ListByPrefix,
		listMax:  storage.DefaultListMax,

		generations: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload derives the destination key for req and stores its bytes there.
func (s *AssetService) Upload(ctx context.Context, req domain.UploadRequest) (*domain.AssetDescriptor, error) {
	key, err := domain.DeriveKey(req.Classification)
	if err != nil {
		return nil, err
	}
	if len(req.Body) == 0 {
		return nil, fmt.Errorf("%w: empty payload", domain.ErrNoFilePresent)
	}

	asset, err := s.gateway.Store(ctx, storage.StoreInput{
		Body:     req.Body,
		FileName: req.FileName,
		MimeType: req.MimeType,
		Key:      key,
		Tags:     []string{key.Tag()},
	})
	if err != nil {
		log.Error().Err(err).
			Str("folder", key.String()).
			Str("filename", req.FileName).
			Int("bytes", len(req.Body)).
			Msg("failed to store upload")
		return nil, err
	}

	if err := s.invalidate(ctx, key); err != nil {
		log.Warn().Err(err).Str("folder", key.String()).Msg("failed to invalidate listing cache")
	}

	log.Info().
		Str("folder", key.String()).
		Str("tag", key.Tag()).
		Str("public_id", asset.AssetID).
		Int64("bytes", asset.SizeBytes).
		Msg("asset stored")

	return asset, nil
}

// List returns the assets filed under the classification. A folder with no
// assets yields an empty, non-nil slice.
func (s *AssetService) List(ctx context.Context, c domain.Classification) (*Listing, error) {
	key, err := domain.DeriveKey(c)
	if err != nil {
		return nil, err
	}

	mode := string(s.listMode)
	if cached, ok, err := s.cache.Get(ctx, mode, key); err != nil {
		log.Warn().Err(err).Str("folder", key.String()).Msg("listing cache read failed")
	} else if ok {
		log.Debug().Str("folder", key.String()).Int("count", len(cached)).Msg("listing served from cache")
		return &Listing{Key: key, Assets: cached}, nil
	}

	gen := s.generation(key)
	assets, err := s.gateway.List(ctx, storage.ListQuery{Key: key, Mode: s.listMode, Max: s.listMax})
	if err != nil {
		log.Error().Err(err).Str("folder", key.String()).Msg("failed to list assets")
		return nil, err
	}
	if assets == nil {
		assets = []domain.AssetDescriptor{}
	}

	if err := s.cacheListing(ctx, mode, key, gen, assets); err != nil {
		log.Warn().Err(err).Str("folder", key.String()).Msg("listing cache write failed")
	}

	log.Info().Str("folder", key.String()).Str("mode", mode).Int("count", len(assets)).Msg("assets listed")
	return &Listing{Key: key, Assets: assets}, nil
}

// Resolve looks up an asset's descriptor and direct URL.
func (s *AssetService) Resolve(ctx context.Context, assetID string) (*domain.AssetDescriptor, error) {
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return nil, fmt.Errorf("%w: public_id is required", domain.ErrInvalidAssetID)
	}

	asset, err := s.gateway.FetchMetadata(ctx, assetID)
	if err != nil {
		log.Warn().Err(err).Str("public_id", assetID).Msg("failed to resolve asset")
		return nil, err
	}
	return asset, nil
}

func (s *AssetService) generation(key domain.DestinationKey) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generations[key.String()]
}

func (s *AssetService) invalidate(ctx context.Context, key domain.DestinationKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[key.String()]++
	return s.cache.Invalidate(ctx, key)
}

// cacheListing drops the write when the folder was invalidated after gen was read.
func (s *AssetService) cacheListing(ctx context.Context, mode string, key domain.DestinationKey, gen uint64, assets []domain.AssetDescriptor) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.generations[key.String()] != gen {
		log.Debug().Str("folder", key.String()).Msg("listing changed while in flight, not caching")
		return nil
	}
	return s.cache.Set(ctx, mode, key, assets)
}
