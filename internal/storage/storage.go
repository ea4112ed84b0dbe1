package storage

import (
	"context"
	"time"

	"github.com/Velipetroll/Backend-Cloudinary/internal/domain"
)

// DefaultListMax caps listing results when the caller does not.
const DefaultListMax = 50

// ResourceMode tells the host how to treat stored bytes.
type ResourceMode string

const (
	// ModeAuto lets the host infer the resource type from content.
	ModeAuto ResourceMode = "auto"
	// ModeRaw stores the bytes as an opaque binary.
	ModeRaw ResourceMode = "raw"
)

// ListMode selects how assets under a destination key are found.
type ListMode string

const (
	ListByPrefix ListMode = "prefix"
	ListByTag    ListMode = "tag"
)

// Options are applied to every call a gateway makes to its host.
type Options struct {
	Mode    ResourceMode
	Timeout time.Duration
}

// StoreInput is a staged file bound for a destination key.
type StoreInput struct {
	Body     []byte
	FileName string
	MimeType string
	Key      domain.DestinationKey
	Tags     []string
}

// ListQuery addresses the assets filed under one destination key.
type ListQuery struct {
	Key  domain.DestinationKey
	Mode ListMode
	Max  int
}

func (q ListQuery) limit() int {
	if q.Max <= 0 {
		return DefaultListMax
	}
	return q.Max
}

// Gateway is the only component that talks to the remote media host.
//
// Store wraps failures in domain.ErrUploadFailed, List in domain.ErrListFailed
// and FetchMetadata returns domain.ErrAssetNotFound for unknown ids. Credential
// rejections additionally wrap domain.ErrAuth. Listing a key with no assets
// yields an empty slice, never an error. Calls are never retried.
type Gateway interface {
	Store(ctx context.Context, input StoreInput) (*domain.AssetDescriptor, error)
	List(ctx context.Context, query ListQuery) ([]domain.AssetDescriptor, error)
	FetchMetadata(ctx context.Context, assetID string) (*domain.AssetDescriptor, error)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
