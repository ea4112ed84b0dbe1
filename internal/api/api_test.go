package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Velipetroll/Backend-Cloudinary/internal/api/middleware"
	"github.com/Velipetroll/Backend-Cloudinary/internal/domain"
	"github.com/Velipetroll/Backend-Cloudinary/internal/ingest"
	"github.com/Velipetroll/Backend-Cloudinary/internal/service"
	"github.com/Velipetroll/Backend-Cloudinary/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router  *gin.Engine
	gateway *storage.MemoryGateway
	tempDir string
}

func newTestServer(t *testing.T, maxBytes int64) *testServer {
	t.Helper()
	gw := storage.NewMemoryGateway("https://cdn.example")
	dir := t.TempDir()
	router := NewRouter(&Services{
		AssetService: service.NewAssetService(gw),
		Ingestor:     ingest.New(ingest.Options{MaxBytes: maxBytes, Staging: ingest.StageOnDisk, TempDir: dir}),
	}, []string{"https://escuela.example"})
	return &testServer{router: router, gateway: gw, tempDir: dir}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, fields map[string]string, filename string, body []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if body != nil {
		w, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = w.Write(body)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func listURL(path, tipo, anio, grado string) string {
	q := url.Values{}
	q.Set("tipo", tipo)
	q.Set("anio", anio)
	q.Set("grado", grado)
	return path + "?" + q.Encode()
}

var quinto = map[string]string{"tipo": "tareas", "anio": "2024", "grado": "5to"}

func fakePDF(size int) []byte {
	return append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("x"), size-9)...)
}

func TestUploadListDownloadScenario(t *testing.T) {
	srv := newTestServer(t, 10<<20)

	rec := srv.do(uploadRequest(t, quinto, "guia.pdf", fakePDF(2048)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	uploaded := decode(t, rec)
	assert.Contains(t, uploaded["public_id"], "tareas/2024/5to/")
	assert.Equal(t, float64(2048), uploaded["bytes"])
	assert.Equal(t, "guia.pdf", uploaded["original_filename"])

	entries, err := os.ReadDir(srv.tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	for _, path := range []string{"/imagenes", "/list"} {
		rec = srv.do(httptest.NewRequest(http.MethodGet, listURL(path, "tareas", "2024", "5to"), nil))
		require.Equal(t, http.StatusOK, rec.Code)
		listed := decode(t, rec)
		assert.Equal(t, true, listed["success"])
		assert.Equal(t, float64(1), listed["count"])
		assert.Equal(t, "tareas/2024/5to", listed["folder"])
		images := listed["images"].([]any)
		require.Len(t, images, 1)
		assert.Equal(t, uploaded["url"], images[0].(map[string]any)["url"])
		assert.Equal(t, "pdf", images[0].(map[string]any)["format"])
	}

	for _, path := range []string{"/descargar", "/download"} {
		rec = srv.do(httptest.NewRequest(http.MethodGet, path+"?public_id="+url.QueryEscape(uploaded["public_id"].(string)), nil))
		require.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, uploaded["url"], rec.Header().Get("Location"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
		assert.Contains(t, rec.Header().Get("Content-Disposition"), ".pdf")
	}
}

func TestUploadTwiceProducesTwoAssets(t *testing.T) {
	srv := newTestServer(t, 0)

	var ids []string
	for i := 0; i < 2; i++ {
		rec := srv.do(uploadRequest(t, quinto, "guia.pdf", fakePDF(100)))
		require.Equal(t, http.StatusOK, rec.Code)
		ids = append(ids, decode(t, rec)["public_id"].(string))
	}
	assert.NotEqual(t, ids[0], ids[1])
	assert.Equal(t, 2, srv.gateway.Len())
}

func TestUploadErrors(t *testing.T) {
	cases := []struct {
		name   string
		fields map[string]string
		body   []byte
		status int
		code   domain.Code
	}{
		{"missing file", quinto, nil, http.StatusBadRequest, domain.CodeNoFilePresent},
		{"missing tipo", map[string]string{"anio": "2024", "grado": "5to"}, fakePDF(20), http.StatusBadRequest, domain.CodeInvalidClassification},
		{"separator in grado", map[string]string{"tipo": "tareas", "anio": "2024", "grado": "5/to"}, fakePDF(20), http.StatusBadRequest, domain.CodeInvalidClassification},
		{"too large", quinto, fakePDF(4096), http.StatusRequestEntityTooLarge, domain.CodePayloadTooLarge},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, 1024)
			rec := srv.do(uploadRequest(t, tc.fields, "guia.pdf", tc.body))
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, string(tc.code), decode(t, rec)["error"])
			assert.Equal(t, 0, srv.gateway.Len())

			entries, err := os.ReadDir(srv.tempDir)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestListEmptyFolder(t *testing.T) {
	srv := newTestServer(t, 0)

	rec := srv.do(httptest.NewRequest(http.MethodGet, listURL("/imagenes", "tareas", "2030", "9no"), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(0), body["count"])
	assert.Equal(t, []any{}, body["images"])
}

func TestListMissingParameters(t *testing.T) {
	srv := newTestServer(t, 0)

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/imagenes?tipo=tareas", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "InvalidClassification", body["error"])
	assert.Equal(t, []any{"tipo", "anio", "grado"}, body["required"])
	assert.Equal(t, "tareas", body["received"].(map[string]any)["tipo"])
}

func TestDownloadErrors(t *testing.T) {
	srv := newTestServer(t, 0)

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/descargar", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidAssetID", decode(t, rec)["error"])

	rec = srv.do(httptest.NewRequest(http.MethodGet, "/descargar?public_id=tareas/2024/5to/abc123", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Header().Get("Location"))
	assert.Equal(t, "AssetNotFound", decode(t, rec)["error"])
}

type brokenGateway struct{ storage.MemoryGateway }

func (g *brokenGateway) Store(ctx context.Context, input storage.StoreInput) (*domain.AssetDescriptor, error) {
	return nil, fmt.Errorf("%w: %w: Invalid api_key", domain.ErrUploadFailed, domain.ErrAuth)
}

func TestUploadHostFailureCleansUp(t *testing.T) {
	dir := t.TempDir()
	router := NewRouter(&Services{
		AssetService: service.NewAssetService(&brokenGateway{}),
		Ingestor:     ingest.New(ingest.Options{Staging: ingest.StageOnDisk, TempDir: dir}),
	}, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, quinto, "guia.pdf", fakePDF(100)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "AuthError", body["error"])
	assert.NotContains(t, body["message"], "api_key")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUnavailableRouter(t *testing.T) {
	router := NewUnavailableRouter(fmt.Errorf("%w: missing CLOUDINARY_API_KEY", domain.ErrConfigIncomplete), nil)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodPost, "/upload", nil),
		httptest.NewRequest(http.MethodGet, "/imagenes", nil),
		httptest.NewRequest(http.MethodGet, "/descargar?public_id=x", nil),
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "ConfigIncomplete", decode(t, rec)["error"])
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "degraded", decode(t, rec)["status"])
}

func TestCORSAndRequestID(t *testing.T) {
	srv := newTestServer(t, 0)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://escuela.example")
	rec := srv.do(req)
	assert.Equal(t, "https://escuela.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = srv.do(req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestNormalizeAllowedOrigins(t *testing.T) {
	origins, all := normalizeAllowedOrigins([]string{"https://a.example/, https://b.example", " "})
	assert.False(t, all)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, origins)

	_, all = normalizeAllowedOrigins([]string{"*"})
	assert.True(t, all)
}

func TestCORSConfigWildcardDropsCredentials(t *testing.T) {
	wildcard := corsConfig([]string{"*"})
	assert.True(t, wildcard.AllowAllOrigins)
	assert.False(t, wildcard.AllowCredentials)
	assert.Empty(t, wildcard.AllowOrigins)

	listed := corsConfig([]string{"https://escuela.example"})
	assert.False(t, listed.AllowAllOrigins)
	assert.True(t, listed.AllowCredentials)
	assert.Equal(t, []string{"https://escuela.example"}, listed.AllowOrigins)
}

func TestCORSWildcardResponse(t *testing.T) {
	router := NewRouter(nil, []string{"*"})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://any.example")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}
