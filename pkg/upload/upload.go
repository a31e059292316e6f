// Package upload stores product images on local disk and enforces the
// type and size constraints of the catalog API.
package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// MaxFileSize is the largest accepted image, in bytes (5MB).
const MaxFileSize = 5 << 20

// PublicPrefix is the URL path prefix stored images are served under.
const PublicPrefix = "/uploads"

// Sentinel errors for rejected uploads. Both are client errors.
var (
	ErrFileTooLarge    = errors.New("image exceeds the 5MB size limit")
	ErrUnsupportedType = errors.New("only jpeg, jpg, png, gif, and webp images are allowed")
)

var allowedExtensions = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// IsClientError reports whether err is an upload rejection the API should
// surface as a 400 rather than a server fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrFileTooLarge) || errors.Is(err, ErrUnsupportedType)
}

// Store saves uploaded images into a local directory.
type Store struct {
	dir string
}

// NewStore creates the upload directory if needed and returns a Store over it.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Save validates the uploaded file and writes it under a fresh UUID filename.
// It returns the public path to record on the product, e.g. "/uploads/<id>.png".
func (s *Store) Save(file *multipart.FileHeader) (string, error) {
	if file.Size > MaxFileSize {
		return "", fmt.Errorf("%w: got %d bytes", ErrFileTooLarge, file.Size)
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedExtensions[ext] {
		return "", fmt.Errorf("%w: got %q", ErrUnsupportedType, ext)
	}

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	name := uuid.New().String() + ext
	dstPath := filepath.Join(s.dir, name)
	dst, err := os.Create(dstPath)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dstPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(dstPath)
		return "", fmt.Errorf("failed to write %s: %w", dstPath, err)
	}
	return PublicPrefix + "/" + name, nil
}

// Remove deletes a stored image given the public path Save returned. A file
// that is already gone is not an error.
func (s *Store) Remove(publicPath string) error {
	name := filepath.Base(publicPath)
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", name, err)
	}
	return nil
}

// Dir returns the directory images are written to, for static serving.
func (s *Store) Dir() string {
	return s.dir
}
