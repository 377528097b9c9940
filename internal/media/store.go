// Package media stores user-uploaded images and returns their public URLs.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
)

// MaxImageSize is the per-file upload limit.
const MaxImageSize = 5 << 20

var (
	// ErrUnsupportedType is returned for files that are not jpg/jpeg/png images.
	ErrUnsupportedType = errors.New("only .png, .jpg and .jpeg images are allowed")
	// ErrTooLarge is returned for files above MaxImageSize.
	ErrTooLarge = errors.New("file too large")
)

// Store uploads an image and returns the URL it can be fetched from.
type Store interface {
	Upload(ctx context.Context, folder, filename string, r io.Reader) (string, error)
}

var allowedExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// UploadImage validates a multipart file and uploads it to store.
func UploadImage(ctx context.Context, store Store, folder string, fh *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedExt[ext] {
		return "", ErrUnsupportedType
	}
	if fh.Size > MaxImageSize {
		return "", ErrTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	switch http.DetectContentType(head) {
	case "image/jpeg", "image/png":
	default:
		return "", ErrUnsupportedType
	}

	body := io.MultiReader(strings.NewReader(string(head)), io.LimitReader(f, MaxImageSize))
	return store.Upload(ctx, folder, fh.Filename, body)
}

// UploadImages uploads every file, stopping at the first failure.
func UploadImages(ctx context.Context, store Store, folder string, files []*multipart.FileHeader) ([]string, error) {
	urls := make([]string, 0, len(files))
	for _, fh := range files {
		url, err := UploadImage(ctx, store, folder, fh)
		if err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}
