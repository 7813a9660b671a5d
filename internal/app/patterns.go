package app

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"fabricview/pkg/domain"

	// Decoders for the image formats accepted as patterns.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// UploadPattern validates and stores an uploaded pattern image, then records
// its metadata. The blob is written first; a failed metadata write leaves an
// orphaned blob that no query references.
func (a *App) UploadPattern(ctx context.Context, userID, originalName string, data []byte) (domain.Pattern, error) {
	if len(data) == 0 {
		return domain.Pattern{}, ErrFileRequired
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return domain.Pattern{}, ErrNotAnImage
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return domain.Pattern{}, ErrNotAnImage
	}

	filename := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), sanitizeFilename(originalName))
	if err := a.objects.Put(ctx, filename, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return domain.Pattern{}, fmt.Errorf("store pattern blob: %w", err)
	}

	pattern := domain.Pattern{
		ID:               uuid.NewString(),
		OwnerID:          userID,
		Filename:         filename,
		OriginalFilename: filepath.Base(originalName),
		ContentType:      contentType,
		SizeBytes:        int64(len(data)),
		UploadedAt:       time.Now().UTC(),
	}
	if err := a.store.SavePattern(pattern); err != nil {
		return domain.Pattern{}, fmt.Errorf("save pattern metadata: %w", err)
	}
	pattern.URL = a.patternURL(pattern.Filename)
	return pattern, nil
}

// ListPatterns returns the caller's patterns, newest first.
func (a *App) ListPatterns(userID string) ([]domain.Pattern, error) {
	patterns, err := a.store.ListPatternsByOwner(userID)
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	for i := range patterns {
		patterns[i].URL = a.patternURL(patterns[i].Filename)
	}
	return patterns, nil
}

// OpenPattern streams a stored pattern blob by filename.
func (a *App) OpenPattern(ctx context.Context, filename string) (io.ReadCloser, error) {
	return a.objects.Get(ctx, filename)
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	name = unsafeNameChars.ReplaceAllString(name, "_")
	if name == "" || name == "." || name == ".." {
		return "pattern"
	}
	return name
}
