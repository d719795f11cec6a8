package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"scrapp.io/client/internal/api"
	"scrapp.io/client/internal/apperr"
)

const (
	// ClassifyPath is relative to the service base URL, not the API base.
	ClassifyPath = "/api/classify/"
	// ImageField is the multipart field the classifier reads.
	ImageField = "image"
)

// Photo is a handle to image bytes, typically a file picked or captured on device.
type Photo interface {
	Filename() string
	Open() (io.ReadCloser, error)
}

// FilePhoto is a Photo backed by a file on disk.
type FilePhoto string

func (p FilePhoto) Filename() string { return filepath.Base(string(p)) }

func (p FilePhoto) Open() (io.ReadCloser, error) { return os.Open(string(p)) }

// BytesPhoto is an in-memory Photo.
type BytesPhoto struct {
	Name string
	Data []byte
}

func (p BytesPhoto) Filename() string { return p.Name }

func (p BytesPhoto) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(p.Data)), nil
}

type ClassifierService struct {
	gw     *api.Client
	logger *zap.Logger
}

// NewClassifierService expects gw to be rooted at the service base URL; it is
// usually built with api.WithScheme(auth.SchemeBearer).
func NewClassifierService(gw *api.Client, logger *zap.Logger) *ClassifierService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassifierService{gw: gw, logger: logger}
}

// Classify uploads photo in a single request and returns the parsed verdict.
// Every key of probs is kept; ordering them is left to the presentation layer.
func (s *ClassifierService) Classify(ctx context.Context, photo Photo) (*ClassificationResult, error) {
	if photo == nil {
		return nil, apperr.Validation("classify", "no photo selected")
	}

	rc, err := photo.Open()
	if err != nil {
		return nil, apperr.Validation("classify", fmt.Sprintf("cannot read photo: %v", err))
	}
	defer rc.Close()

	name := photo.Filename()
	if name == "" {
		name = "photo.jpg"
	}

	var result ClassificationResult
	err = s.gw.PostMultipart(ctx, ClassifyPath, api.File{
		Field:       ImageField,
		Filename:    name,
		ContentType: contentTypeFor(name),
		Content:     rc,
	}, &result)
	if err != nil {
		s.logger.Warn("Classification failed", zap.String("file", name), zap.Error(err))
		return nil, fmt.Errorf("classify %s: %w", name, err)
	}

	if strings.TrimSpace(result.Label) == "" {
		detail := "classifier returned no label"
		if result.Message != nil && *result.Message != "" {
			detail = *result.Message
		}
		return nil, &apperr.Error{Kind: apperr.ErrUpstream, Op: "classify " + name, Detail: detail}
	}

	s.logger.Debug("Classified photo", zap.String("file", name), zap.String("label", result.Label))
	return &result, nil
}

func contentTypeFor(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
