package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Velipetroll/Backend-Cloudinary/internal/domain"
	"github.com/Velipetroll/Backend-Cloudinary/internal/ingest"
)

var statusByCode = map[domain.Code]int{
	domain.CodeInvalidClassification: http.StatusBadRequest,
	domain.CodeInvalidAssetID:        http.StatusBadRequest,
	domain.CodeNoFilePresent:         http.StatusBadRequest,
	domain.CodePayloadTooLarge:       http.StatusRequestEntityTooLarge,
	domain.CodeUnsupportedMediaType:  http.StatusUnsupportedMediaType,
	domain.CodeAssetNotFound:         http.StatusNotFound,
	domain.CodeUploadFailed:          http.StatusInternalServerError,
	domain.CodeListFailed:            http.StatusInternalServerError,
	domain.CodeResolveFailed:         http.StatusInternalServerError,
	domain.CodeAuthError:             http.StatusInternalServerError,
	domain.CodeConfigIncomplete:      http.StatusServiceUnavailable,
	domain.CodeInternal:              http.StatusInternalServerError,
}

var messageByCode = map[domain.Code]string{
	domain.CodeUploadFailed:     "failed to upload file",
	domain.CodeListFailed:       "failed to list files",
	domain.CodeResolveFailed:    "failed to resolve file",
	domain.CodeAuthError:        "media host rejected the configured credentials",
	domain.CodeConfigIncomplete: "service is not fully configured",
	domain.CodeInternal:         "internal error",
}

// StatusFor maps a taxonomy code to its HTTP status.
func StatusFor(code domain.Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// RespondError writes {"error": code, "message": ...}. Client errors echo the
// error text; host-side failures get a fixed message so host details stay in
// the logs.
func RespondError(c *gin.Context, err error) {
	code := domain.CodeOf(err)
	status := StatusFor(code)

	body := gin.H{"error": string(code)}
	if msg, ok := messageByCode[code]; ok {
		body["message"] = msg
	} else {
		body["message"] = err.Error()
	}

	var missing *ingest.MissingClassificationError
	if errors.As(err, &missing) {
		body["required"] = domain.ClassificationFields
		body["received"] = missing.Received
	}

	event := log.Warn()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).Str("code", string(code)).Int("status", status).Str("path", c.Request.URL.Path).Msg("request failed")

	c.AbortWithStatusJSON(status, body)
}
