package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Velipetroll/Backend-Cloudinary/internal/domain"
)

type memoryObject struct {
	asset domain.AssetDescriptor
	tags  []string
	body  []byte
}

// MemoryGateway keeps assets in process memory. It backs local development
// (STORAGE_BACKEND=memory) and tests.
type MemoryGateway struct {
	mu      sync.RWMutex
	baseURL string
	objects []*memoryObject
	byID    map[string]*memoryObject
	now     func() time.Time
}

// NewMemoryGateway returns an empty gateway whose URLs start with baseURL.
func NewMemoryGateway(baseURL string) *MemoryGateway {
	if baseURL == "" {
		baseURL = "memory://assets"
	}
	return &MemoryGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		byID:    make(map[string]*memoryObject),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (g *MemoryGateway) Store(ctx context.Context, input StoreInput) (*domain.AssetDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUploadFailed, err)
	}

	ext := path.Ext(input.FileName)
	id := input.Key.String() + "/" + strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
	body := append([]byte(nil), input.Body...)

	obj := &memoryObject{
		asset: domain.AssetDescriptor{
			URL:              g.baseURL + "/" + id + ext,
			AssetID:          id,
			Format:           strings.TrimPrefix(strings.ToLower(ext), "."),
			SizeBytes:        int64(len(body)),
			CreatedAt:        g.now(),
			Folder:           input.Key.String(),
			OriginalFilename: input.FileName,
		},
		tags: append([]string(nil), input.Tags...),
		body: body,
	}

	g.mu.Lock()
	g.objects = append(g.objects, obj)
	g.byID[id] = obj
	g.mu.Unlock()

	asset := obj.asset
	return &asset, nil
}

func (g *MemoryGateway) List(ctx context.Context, query ListQuery) ([]domain.AssetDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrListFailed, err)
	}

	limit := query.limit()
	prefix := query.Key.Prefix()
	tag := query.Key.Tag()

	g.mu.RLock()
	defer g.mu.RUnlock()

	results := make([]domain.AssetDescriptor, 0)
	for _, obj := range g.objects {
		if len(results) >= limit {
			break
		}
		if query.Mode == ListByTag {
			if !containsString(obj.tags, tag) {
				continue
			}
		} else if !strings.HasPrefix(obj.asset.AssetID, prefix) {
			continue
		}
		results = append(results, obj.asset)
	}
	return results, nil
}

func (g *MemoryGateway) FetchMetadata(ctx context.Context, assetID string) (*domain.AssetDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrResolveFailed, err)
	}

	g.mu.RLock()
	obj, ok := g.byID[assetID]
	g.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAssetNotFound, assetID)
	}

	asset := obj.asset
	return &asset, nil
}

// Body returns a copy of a stored asset's bytes.
func (g *MemoryGateway) Body(assetID string) ([]byte, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	obj, ok := g.byID[assetID]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), obj.body...), true
}

// Len reports how many assets are stored.
func (g *MemoryGateway) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.objects)
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

var _ Gateway = (*MemoryGateway)(nil)
