package service

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// allowedImageTypes maps permitted extensions to their expected MIME types.
var allowedImageTypes = map[string]string{
	".jpeg": "image/jpeg",
	".jpg":  "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
}

// Storage stores report images and issues public URLs for them.
type Storage interface {
	// Save writes the object under the given key and returns its public URL.
	Save(key string, contentType string, r io.Reader) (string, error)
	// Delete removes the object a previously issued URL points to.
	// Unknown URLs are ignored.
	Delete(publicURL string) error
}

// DiskStorage keeps objects on the local filesystem, served under /uploads.
type DiskStorage struct {
	dir     string
	baseURL string
}

func NewDiskStorage(dir, baseURL string) (*DiskStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &DiskStorage{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir returns the storage root, for static file serving.
func (s *DiskStorage) Dir() string {
	return s.dir
}

func (s *DiskStorage) Save(key string, contentType string, r io.Reader) (string, error) {
	dst := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, r); err != nil {
		os.Remove(dst)
		return "", err
	}

	return s.baseURL + "/uploads/" + key, nil
}

func (s *DiskStorage) Delete(publicURL string) error {
	prefix := s.baseURL + "/uploads/"
	if !strings.HasPrefix(publicURL, prefix) {
		zap.L().Warn("Skipping delete of foreign object URL", zap.String("url", publicURL))
		return nil
	}
	key := strings.TrimPrefix(publicURL, prefix)
	if strings.Contains(key, "..") {
		return fmt.Errorf("invalid object key: %s", key)
	}
	err := os.Remove(filepath.Join(s.dir, filepath.FromSlash(key)))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ImageKey derives the storage key for a report image:
// {reportID}/{timestamp}.{ext}. Namespacing by report id keeps objects
// collision-free and makes cleanup on delete unambiguous.
func ImageKey(reportID uuid.UUID, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("%s/%d%s", reportID, time.Now().UnixMilli(), ext)
}

// ValidateImage rejects disallowed files before any storage I/O.
func ValidateImage(header *multipart.FileHeader, maxSize int64) error {
	if header.Size > maxSize {
		return ErrPayloadTooLarge
	}

	ext := strings.ToLower(path.Ext(header.Filename))
	want, ok := allowedImageTypes[ext]
	if !ok {
		return ErrUnsupportedMediaType
	}

	// The declared MIME type must agree with the extension. Browsers always
	// set it; a missing value is tolerated since the extension already passed.
	if ct := header.Header.Get("Content-Type"); ct != "" && ct != want {
		return ErrUnsupportedMediaType
	}

	return nil
}
