package usecase

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"relaychat/internal/domain/entity"
	"relaychat/internal/domain/service"
	"relaychat/pkg/errors"
	"relaychat/pkg/logger"
)

var allowedDocumentTypes = map[string]bool{}

func init() {
	for _, t := range []string{
		"application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.ms-powerpoint",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
		"text/plain",
	} {
		allowedDocumentTypes[t] = true
	}
}

// MediaUploader stages an incoming attachment on disk, sniffs its type and
// hands it to the media store. The staged copy is always removed.
type MediaUploader struct {
	store    service.MediaStore
	tmpDir   string
	maxBytes int64
}

func NewMediaUploader(store service.MediaStore, tmpDir string, maxBytes int64) *MediaUploader {
	return &MediaUploader{
		store:    store,
		tmpDir:   tmpDir,
		maxBytes: maxBytes,
	}
}

type UploadedMedia struct {
	URL         string
	ContentType string
	MessageType string
}

func (m *MediaUploader) Upload(ctx context.Context, src io.Reader, folder string) (*UploadedMedia, error) {
	tmp, err := os.CreateTemp(m.tmpDir, "upload-*")
	if err != nil {
		return nil, errors.Internal("Failed to stage upload", err)
	}
	defer func() {
		tmp.Close()
		if err := os.Remove(tmp.Name()); err != nil && !os.IsNotExist(err) {
			logger.Warn("Upload: failed to remove staged file %s: %v", tmp.Name(), err)
		}
	}()

	n, err := io.Copy(tmp, io.LimitReader(src, m.maxBytes+1))
	if err != nil {
		return nil, errors.UploadFailed("Failed to read uploaded file", err)
	}
	if n == 0 {
		return nil, errors.InvalidArgument("Uploaded file is empty", nil)
	}
	if n > m.maxBytes {
		return nil, errors.InvalidArgument("File exceeds the maximum upload size", nil)
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Internal("Failed to rewind staged upload", err)
	}
	mtype, err := mimetype.DetectReader(tmp)
	if err != nil {
		return nil, errors.UploadFailed("Failed to detect file type", err)
	}
	contentType := baseMediaType(mtype.String())
	if !allowedMediaType(contentType) {
		return nil, errors.InvalidArgument("Unsupported file type "+contentType, nil)
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Internal("Failed to rewind staged upload", err)
	}
	url, err := m.store.UploadFile(ctx, tmp, contentType, folder)
	if err != nil {
		logger.Error("Upload Error: store rejected %s: %v", contentType, err)
		return nil, errors.UploadFailed("Failed to upload file", err)
	}

	return &UploadedMedia{
		URL:         url,
		ContentType: contentType,
		MessageType: entity.MessageTypeForMIME(contentType),
	}, nil
}

// Discard removes an uploaded file whose message could not be stored.
func (m *MediaUploader) Discard(ctx context.Context, url string) {
	if err := m.store.DeleteFile(ctx, url); err != nil {
		logger.Warn("Discard: failed to delete %s: %v", url, err)
	}
}

func baseMediaType(s string) string {
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func allowedMediaType(contentType string) bool {
	switch {
	case strings.HasPrefix(contentType, "image/"),
		strings.HasPrefix(contentType, "video/"),
		strings.HasPrefix(contentType, "audio/"):
		return true
	}
	return allowedDocumentTypes[contentType]
}
