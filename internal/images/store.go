package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"storefront/internal/slug"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrUnsupportedType  = errors.New("only image files are allowed (jpg, png, webp, gif)")
	ErrFileTooLarge     = errors.New("image exceeds the maximum file size")
	ErrInvalidReference = errors.New("invalid image reference")
)

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// LocalStore keeps uploaded images in a directory served under a URL prefix
type LocalStore struct {
	dir          string
	urlPrefix    string
	maxFileBytes int64
	logger       *zap.Logger
	now          func() time.Time
}

// NewLocalStore creates the upload directory if needed
func NewLocalStore(dir, urlPrefix string, maxFileBytes int64, logger *zap.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	if !strings.HasSuffix(urlPrefix, "/") {
		urlPrefix += "/"
	}
	return &LocalStore{
		dir:          dir,
		urlPrefix:    urlPrefix,
		maxFileBytes: maxFileBytes,
		logger:       logger,
		now:          time.Now,
	}, nil
}

// Dir returns the directory files are written to
func (s *LocalStore) Dir() string {
	return s.dir
}

// Owns reports whether ref points into this store
func (s *LocalStore) Owns(ref string) bool {
	return strings.HasPrefix(ref, s.urlPrefix)
}

// Save sniffs the content of r, writes it under a unique name and returns
// the root-relative reference clients store on products.
func (s *LocalStore) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxFileBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > s.maxFileBytes {
		return "", ErrFileTooLarge
	}

	mtype := mimetype.Detect(data)
	ext, ok := allowedTypes[mtype.String()]
	if !ok {
		return "", ErrUnsupportedType
	}

	name := s.uniqueName(filename, ext)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write upload: %w", err)
	}

	s.logger.Info("Image stored",
		zap.String("name", name),
		zap.String("mime", mtype.String()),
		zap.Int("bytes", len(data)),
	)

	return s.urlPrefix + name, nil
}

func (s *LocalStore) uniqueName(filename, ext string) string {
	base := filepath.Base(filename)
	base = slug.Slugify(strings.TrimSuffix(base, filepath.Ext(base)))
	if base == "" {
		base = "image"
	}
	return fmt.Sprintf("%s-%d-%s%s", base, s.now().UnixMilli(), uuid.NewString()[:8], ext)
}

// Delete removes the file behind ref. References outside the store prefix are
// ignored and a file that is already gone is not an error.
func (s *LocalStore) Delete(ctx context.Context, ref string) error {
	if !s.Owns(ref) {
		return nil
	}

	name := strings.TrimPrefix(ref, s.urlPrefix)
	if name == "" || name != path.Base(name) || name == "." || name == ".." || strings.ContainsRune(name, '\\') {
		return ErrInvalidReference
	}

	if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to delete image: %w", err)
	}

	return nil
}
