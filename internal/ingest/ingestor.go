package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Velipetroll/Backend-Cloudinary/internal/domain"
)

const (
	// FileField is the multipart field carrying the upload.
	FileField = "file"

	// Room for boundaries, part headers and the classification fields.
	multipartOverhead = 1 << 20

	defaultMemoryLimit = 32 << 20
)

// Staging selects where an upload is held before it is handed to the host.
type Staging string

const (
	StageOnDisk   Staging = "disk"
	StageInMemory Staging = "memory"
)

// Options bound what Stage accepts.
type Options struct {
	MaxBytes     int64
	Staging      Staging
	TempDir      string
	AllowedTypes []string
}

// Ingestor turns an inbound multipart request into a Staged upload.
type Ingestor struct {
	opts    Options
	allowed map[string]struct{}
}

func New(opts Options) *Ingestor {
	if opts.Staging == "" {
		opts.Staging = StageOnDisk
	}
	allowed := make(map[string]struct{}, len(opts.AllowedTypes))
	for _, t := range opts.AllowedTypes {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			allowed[t] = struct{}{}
		}
	}
	return &Ingestor{opts: opts, allowed: allowed}
}

// Staged is a single accepted upload. Release must be called once the store
// attempt is over, whatever its outcome.
type Staged struct {
	domain.UploadRequest

	tempPath string
	form     *multipart.Form
	released bool
}

// Size is the staged payload length in bytes.
func (s *Staged) Size() int64 {
	return int64(len(s.Body))
}

// TempPath is the on-disk staging file, empty for in-memory staging.
func (s *Staged) TempPath() string {
	return s.tempPath
}

// Release deletes transient artifacts. It is safe to call more than once.
func (s *Staged) Release() error {
	if s == nil || s.released {
		return nil
	}
	s.released = true
	s.Body = nil

	var errs []error
	if s.tempPath != "" {
		if err := os.Remove(s.tempPath); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("remove staged file: %w", err))
		}
	}
	if s.form != nil {
		if err := s.form.RemoveAll(); err != nil {
			errs = append(errs, fmt.Errorf("remove multipart spill: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Stage parses r, validates the file and classification fields and stages
// the file bytes. On error nothing is left behind.
func (i *Ingestor) Stage(w http.ResponseWriter, r *http.Request) (staged *Staged, err error) {
	if i.opts.MaxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, i.opts.MaxBytes+multipartOverhead)
	}

	memoryLimit := int64(defaultMemoryLimit)
	if i.opts.Staging == StageInMemory && i.opts.MaxBytes > 0 {
		memoryLimit = i.opts.MaxBytes + multipartOverhead
	}

	if err := r.ParseMultipartForm(memoryLimit); err != nil {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
		if isTooLarge(err) {
			return nil, fmt.Errorf("%w: limit is %d bytes", domain.ErrPayloadTooLarge, i.opts.MaxBytes)
		}
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			return nil, fmt.Errorf("%w: request is not multipart/form-data", domain.ErrNoFilePresent)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrNoFilePresent, err)
	}

	staged = &Staged{form: r.MultipartForm}
	defer func() {
		if err != nil {
			if releaseErr := staged.Release(); releaseErr != nil {
				log.Warn().Err(releaseErr).Msg("failed to clean up rejected upload")
			}
			staged = nil
		}
	}()

	file, header, err := r.FormFile(FileField)
	if err != nil {
		return staged, fmt.Errorf("%w: field %q is required", domain.ErrNoFilePresent, FileField)
	}
	defer file.Close()

	if i.opts.MaxBytes > 0 && header.Size > i.opts.MaxBytes {
		return staged, fmt.Errorf("%w: %d bytes exceeds limit of %d", domain.ErrPayloadTooLarge, header.Size, i.opts.MaxBytes)
	}

	// Body fields only; query parameters never pick the destination.
	classification := domain.Classification{
		Tipo:  r.PostFormValue("tipo"),
		Anio:  r.PostFormValue("anio"),
		Grado: r.PostFormValue("grado"),
	}
	if missing := MissingFields(classification); len(missing) > 0 {
		return staged, &MissingClassificationError{Missing: missing, Received: classification}
	}

	body, err := i.read(staged, file)
	if err != nil {
		return staged, err
	}
	if len(body) == 0 {
		return staged, fmt.Errorf("%w: %q is empty", domain.ErrNoFilePresent, header.Filename)
	}
	if i.opts.MaxBytes > 0 && int64(len(body)) > i.opts.MaxBytes {
		return staged, fmt.Errorf("%w: limit is %d bytes", domain.ErrPayloadTooLarge, i.opts.MaxBytes)
	}

	mimeType := detectMimeType(header, body)
	if len(i.allowed) > 0 {
		if _, ok := i.allowed[mimeType]; !ok {
			return staged, fmt.Errorf("%w: %s", domain.ErrUnsupportedMediaType, mimeType)
		}
	}

	staged.UploadRequest = domain.UploadRequest{
		Body:           body,
		FileName:       header.Filename,
		MimeType:       mimeType,
		Classification: classification,
	}
	return staged, nil
}

func (i *Ingestor) read(staged *Staged, file multipart.File) ([]byte, error) {
	limit := i.opts.MaxBytes
	var src io.Reader = file
	if limit > 0 {
		src = io.LimitReader(file, limit+1)
	}

	if i.opts.Staging == StageInMemory {
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(src); err != nil {
			return nil, fmt.Errorf("%w: read upload: %v", domain.ErrNoFilePresent, err)
		}
		return buf.Bytes(), nil
	}

	tmp, err := os.CreateTemp(i.opts.TempDir, "upload-*")
	if err != nil {
		return nil, fmt.Errorf("create staging file: %w", err)
	}
	staged.tempPath = tmp.Name()

	_, copyErr := io.Copy(tmp, src)
	closeErr := tmp.Close()
	if copyErr != nil {
		return nil, fmt.Errorf("%w: stage upload: %v", domain.ErrNoFilePresent, copyErr)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("close staging file: %w", closeErr)
	}

	body, err := os.ReadFile(staged.tempPath)
	if err != nil {
		return nil, fmt.Errorf("read staging file: %w", err)
	}
	return body, nil
}

// MissingClassificationError reports which of tipo/anio/grado were absent.
type MissingClassificationError struct {
	Missing  []string
	Received domain.Classification
}

func (e *MissingClassificationError) Error() string {
	return fmt.Sprintf("%s: missing %s", domain.ErrInvalidClassification, strings.Join(e.Missing, ", "))
}

func (e *MissingClassificationError) Unwrap() error {
	return domain.ErrInvalidClassification
}

// MissingFields lists the classification fields that are blank.
func MissingFields(c domain.Classification) []string {
	var missing []string
	fields := c.Fields()
	for _, name := range domain.ClassificationFields {
		if strings.TrimSpace(fields[name]) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

func detectMimeType(header *multipart.FileHeader, body []byte) string {
	if ct := header.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
		if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
			return strings.ToLower(mediaType)
		}
	}
	detected := http.DetectContentType(body)
	if mediaType, _, err := mime.ParseMediaType(detected); err == nil {
		return mediaType
	}
	return "application/octet-stream"
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}
