package handlers

import (
	"fmt"
	"mime"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Velipetroll/Backend-Cloudinary/internal/domain"
	"github.com/Velipetroll/Backend-Cloudinary/internal/ingest"
	"github.com/Velipetroll/Backend-Cloudinary/internal/service"
)

type AssetHandler struct {
	assets   *service.AssetService
	ingestor *ingest.Ingestor
}

func NewAssetHandler(assets *service.AssetService, ingestor *ingest.Ingestor) *AssetHandler {
	return &AssetHandler{assets: assets, ingestor: ingestor}
}

type uploadResponse struct {
	URL              string `json:"url"`
	PublicID         string `json:"public_id"`
	Bytes            int64  `json:"bytes"`
	OriginalFilename string `json:"original_filename"`
	Format           string `json:"format,omitempty"`
}

type imageEntry struct {
	URL       string     `json:"url"`
	PublicID  string     `json:"public_id"`
	Format    string     `json:"format,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	Bytes     int64      `json:"bytes,omitempty"`
}

type listResponse struct {
	Success bool         `json:"success"`
	Count   int          `json:"count"`
	Folder  string       `json:"folder"`
	Images  []imageEntry `json:"images"`
}

// Upload handles POST /upload: one file plus tipo, anio and grado.
func (h *AssetHandler) Upload(c *gin.Context) {
	staged, err := h.ingestor.Stage(c.Writer, c.Request)
	if err != nil {
		RespondError(c, err)
		return
	}
	defer func() {
		if err := staged.Release(); err != nil {
			log.Warn().Err(err).Str("filename", staged.FileName).Msg("failed to release staged upload")
		}
	}()

	asset, err := h.assets.Upload(c.Request.Context(), staged.UploadRequest)
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, uploadResponse{
		URL:              asset.URL,
		PublicID:         asset.AssetID,
		Bytes:            asset.SizeBytes,
		OriginalFilename: asset.OriginalFilename,
		Format:           asset.Format,
	})
}

// List handles GET /imagenes?tipo=&anio=&grado=.
func (h *AssetHandler) List(c *gin.Context) {
	classification := domain.Classification{
		Tipo:  c.Query("tipo"),
		Anio:  c.Query("anio"),
		Grado: c.Query("grado"),
	}
	if missing := ingest.MissingFields(classification); len(missing) > 0 {
		RespondError(c, &ingest.MissingClassificationError{Missing: missing, Received: classification})
		return
	}

	listing, err := h.assets.List(c.Request.Context(), classification)
	if err != nil {
		RespondError(c, err)
		return
	}

	images := make([]imageEntry, 0, len(listing.Assets))
	for _, asset := range listing.Assets {
		entry := imageEntry{
			URL:      asset.URL,
			PublicID: asset.AssetID,
			Format:   asset.Format,
			Bytes:    asset.SizeBytes,
		}
		if !asset.CreatedAt.IsZero() {
			created := asset.CreatedAt
			entry.CreatedAt = &created
		}
		images = append(images, entry)
	}

	c.JSON(http.StatusOK, listResponse{
		Success: true,
		Count:   len(images),
		Folder:  listing.Key.String(),
		Images:  images,
	})
}

// Download handles GET /descargar?public_id= by redirecting to the asset.
func (h *AssetHandler) Download(c *gin.Context) {
	asset, err := h.assets.Resolve(c.Request.Context(), c.Query("public_id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	if asset.URL == "" {
		RespondError(c, fmt.Errorf("%w: %s has no direct url", domain.ErrResolveFailed, asset.AssetID))
		return
	}

	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": asset.DownloadName(),
	}))
	c.Redirect(http.StatusFound, asset.URL)
}
