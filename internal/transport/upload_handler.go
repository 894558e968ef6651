package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"storefront/internal/images"
	"storefront/internal/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// UploadField is the multipart field carrying image files
const UploadField = "images"

// ImageStore persists uploaded images and returns their references
type ImageStore interface {
	Save(ctx context.Context, filename string, r io.Reader) (string, error)
	Delete(ctx context.Context, ref string) error
}

// UploadHandler handles image uploads
type UploadHandler struct {
	store        ImageStore
	maxFiles     int
	maxFileBytes int64
	logger       *zap.Logger
}

// NewUploadHandler creates a new UploadHandler
func NewUploadHandler(store ImageStore, maxFiles int, maxFileBytes int64, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{
		store:        store,
		maxFiles:     maxFiles,
		maxFileBytes: maxFileBytes,
		logger:       logger,
	}
}

// RegisterRoutes mounts POST /uploads behind the given middleware
func (h *UploadHandler) RegisterRoutes(r chi.Router, middlewares ...func(http.Handler) http.Handler) {
	r.With(middlewares...).Post("/uploads", h.Upload)
}

// Upload stores every file in the images field and returns their references.
// Either all files are stored or none are.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	// Room for every file plus multipart framing
	r.Body = http.MaxBytesReader(w, r.Body, int64(h.maxFiles)*h.maxFileBytes+1<<20)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			middleware.RespondWithError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "expected multipart form data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File[UploadField]
	if len(files) == 0 {
		middleware.RespondWithError(w, http.StatusBadRequest, "no images uploaded")
		return
	}
	if len(files) > h.maxFiles {
		middleware.RespondWithError(w, http.StatusBadRequest, fmt.Sprintf("at most %d images per upload", h.maxFiles))
		return
	}

	urls := make([]string, 0, len(files))
	for _, fh := range files {
		if fh.Size > h.maxFileBytes {
			h.discard(r.Context(), urls)
			middleware.RespondWithError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("%s exceeds the %d byte limit", fh.Filename, h.maxFileBytes))
			return
		}

		ref, err := h.save(r.Context(), fh.Filename, fh.Open)
		if err != nil {
			h.discard(r.Context(), urls)
			switch {
			case errors.Is(err, images.ErrUnsupportedType):
				middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
			case errors.Is(err, images.ErrFileTooLarge):
				middleware.RespondWithError(w, http.StatusRequestEntityTooLarge, err.Error())
			default:
				h.logger.Error("Failed to store upload", zap.String("filename", fh.Filename), zap.Error(err))
				middleware.RespondWithError(w, http.StatusInternalServerError, "failed to store upload")
			}
			return
		}
		urls = append(urls, ref)
	}

	h.logger.Info("Images uploaded", zap.Int("count", len(urls)))
	middleware.RespondWithJSON(w, http.StatusCreated, map[string][]string{"urls": urls})
}

func (h *UploadHandler) save(ctx context.Context, filename string, open func() (multipart.File, error)) (string, error) {
	f, err := open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	return h.store.Save(ctx, filename, f)
}

// discard removes files already stored for a rejected request
func (h *UploadHandler) discard(ctx context.Context, refs []string) {
	for _, ref := range refs {
		if err := h.store.Delete(ctx, ref); err != nil {
			h.logger.Warn("Failed to discard upload", zap.String("ref", ref), zap.Error(err))
		}
	}
}
