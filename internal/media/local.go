package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStore writes uploads to a directory served under a URL prefix.
type LocalStore struct {
	dir       string
	urlPrefix string
}

// NewLocalStore creates a LocalStore rooted at dir. Files are addressed as urlPrefix/folder/name.
func NewLocalStore(dir, urlPrefix string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: dir, urlPrefix: strings.TrimRight(urlPrefix, "/")}, nil
}

// Dir is the root directory on disk.
func (s *LocalStore) Dir() string { return s.dir }

// Upload implements Store.
func (s *LocalStore) Upload(ctx context.Context, folder, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	folder = filepath.Base(filepath.Clean("/" + folder))
	name := uuid.NewString() + strings.ToLower(filepath.Ext(filename))

	target := filepath.Join(s.dir, folder)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", fmt.Errorf("create folder: %w", err)
	}
	f, err := os.Create(filepath.Join(target, name))
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path.Join(s.urlPrefix, folder, name), nil
}
