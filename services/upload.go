package services

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// UploadResult is the opaque reference the messaging core consumes; the
// mechanics behind it stay in this store.
type UploadResult struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// UploadStore writes attachments to a local directory served statically
// under /uploads.
type UploadStore struct {
	dir      string
	baseURL  string
	maxBytes int64
}

func NewUploadStore(dir, baseURL string, maxBytes int64) (*UploadStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &UploadStore{dir: dir, baseURL: baseURL, maxBytes: maxBytes}, nil
}

func (u *UploadStore) Dir() string { return u.dir }

// Save stores one uploaded file under a uuid-prefixed name so display names
// never collide or escape the upload directory.
func (u *UploadStore) Save(fh *multipart.FileHeader) (UploadResult, error) {
	if fh.Size > u.maxBytes {
		return UploadResult{}, fmt.Errorf("%w: file exceeds %d bytes", ErrValidation, u.maxBytes)
	}
	src, err := fh.Open()
	if err != nil {
		return UploadResult{}, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	name := uuid.New().String() + filepath.Ext(fh.Filename)
	dst, err := os.Create(filepath.Join(u.dir, name))
	if err != nil {
		return UploadResult{}, fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close()

	size, err := io.Copy(dst, src)
	if err != nil {
		return UploadResult{}, fmt.Errorf("write upload: %w", err)
	}
	return UploadResult{
		URL:      u.baseURL + "/uploads/" + name,
		Filename: fh.Filename,
		Size:     size,
	}, nil
}
