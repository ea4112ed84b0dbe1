package domain

import (
	"path"
	"strings"
	"time"
)

// AssetDescriptor describes one file held by the remote host.
type AssetDescriptor struct {
	URL              string    `json:"url"`
	AssetID          string    `json:"public_id"`
	Format           string    `json:"format,omitempty"`
	SizeBytes        int64     `json:"bytes,omitempty"`
	CreatedAt        time.Time `json:"created_at,omitempty"`
	Folder           string    `json:"folder,omitempty"`
	OriginalFilename string    `json:"original_filename,omitempty"`
}

// DownloadName builds the filename offered to browsers when downloading the
// asset: the last segment of the asset id plus its format, if known.
func (a AssetDescriptor) DownloadName() string {
	name := path.Base(a.AssetID)
	if name == "." || name == "/" || name == "" {
		name = "download"
	}
	format := strings.TrimPrefix(a.Format, ".")
	if format == "" || strings.HasSuffix(strings.ToLower(name), "."+strings.ToLower(format)) {
		return name
	}
	return name + "." + format
}

// UploadRequest is a staged file ready for storage.
type UploadRequest struct {
	Body           []byte
	FileName       string
	MimeType       string
	Classification Classification
}
