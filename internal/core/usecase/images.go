package usecase

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/kirillkom/flipscout/internal/core/domain"
)

// MaxPhotoBytes bounds every photo read into memory.
const MaxPhotoBytes = 10 << 20

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// readPhoto reads a bounded photo and sniffs its type from the bytes, not
// from what the client declared.
func readPhoto(body io.Reader) ([]byte, string, error) {
	if body == nil {
		return nil, "", fmt.Errorf("%w: photo is required", domain.ErrInvalidInput)
	}
	data, err := io.ReadAll(io.LimitReader(body, MaxPhotoBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read photo: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: photo is empty", domain.ErrInvalidInput)
	}
	if len(data) > MaxPhotoBytes {
		return nil, "", fmt.Errorf("%w: photo exceeds %d bytes", domain.ErrInvalidInput, MaxPhotoBytes)
	}
	mimeType := http.DetectContentType(data)
	if _, ok := imageExtensions[mimeType]; !ok {
		return nil, "", fmt.Errorf("%w: unsupported photo type %s", domain.ErrInvalidInput, mimeType)
	}
	return data, mimeType, nil
}

func readStored(rc io.ReadCloser) ([]byte, error) {
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, MaxPhotoBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read stored photo: %w", err)
	}
	if len(data) > MaxPhotoBytes {
		return nil, fmt.Errorf("%w: stored photo exceeds %d bytes", domain.ErrInvalidInput, MaxPhotoBytes)
	}
	return data, nil
}

func validCategory(c domain.Category) (domain.Category, error) {
	if c == "" {
		return "", nil
	}
	return domain.ParseCategory(string(c))
}

func newReader(data []byte) io.Reader {
	return bytes.NewReader(data)
}
