package storage

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// MaxImageSize is the upload limit for receipt images
const MaxImageSize = 5 << 20

var (
	ErrUnsupportedType = errors.New("only image files are allowed (jpg, jpeg, png, gif, webp)")
	ErrTooLarge        = errors.New("file exceeds the 5MB limit")
	ErrNotFound        = errors.New("file not found")
	ErrInvalidKey      = errors.New("invalid file key")
)

var imageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// BlobStore is an opaque file store keyed by relative path
type BlobStore struct {
	fs      afero.Fs
	maxSize int64
}

// NewLocal returns a store rooted at dir on the local filesystem
func NewLocal(dir string) (*BlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return New(afero.NewBasePathFs(afero.NewOsFs(), dir)), nil
}

// NewMemory returns a store kept entirely in memory
func NewMemory() *BlobStore {
	return New(afero.NewMemMapFs())
}

// New wraps an afero filesystem
func New(fs afero.Fs) *BlobStore {
	return &BlobStore{fs: fs, maxSize: MaxImageSize}
}

// ImageExt returns the lower-cased extension of name when it is an accepted
// image type
func ImageExt(name string) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := imageTypes[ext]; !ok {
		return "", ErrUnsupportedType
	}
	return ext, nil
}

// SaveImage stores an image under prefix with a generated name and returns
// its key, e.g. "payment-receipts/receipt-<uuid>.png"
func (s *BlobStore) SaveImage(prefix, originalName string, r io.Reader) (string, error) {
	ext, err := ImageExt(originalName)
	if err != nil {
		return "", err
	}

	if err := s.fs.MkdirAll(prefix, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", prefix, err)
	}

	key := path.Join(prefix, "receipt-"+uuid.NewString()+ext)
	f, err := s.fs.Create(key)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(r, s.maxSize+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		s.fs.Remove(key)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if n > s.maxSize {
		s.fs.Remove(key)
		return "", ErrTooLarge
	}

	return key, nil
}

// Open returns a reader for key
func (s *BlobStore) Open(key string) (io.ReadSeekCloser, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	f, err := s.fs.Open(clean)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *BlobStore) Delete(key string) error {
	clean, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(clean); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Exists reports whether key is present
func (s *BlobStore) Exists(key string) bool {
	clean, err := cleanKey(key)
	if err != nil {
		return false
	}
	ok, _ := afero.Exists(s.fs, clean)
	return ok
}

// ContentType guesses the MIME type of key from its extension
func ContentType(key string) string {
	ext := strings.ToLower(path.Ext(key))
	if ct, ok := imageTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func cleanKey(key string) (string, error) {
	clean := path.Clean("/" + key)[1:]
	if clean == "" || strings.HasPrefix(clean, "..") {
		return "", ErrInvalidKey
	}
	return clean, nil
}
