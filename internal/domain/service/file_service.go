package service

import (
	"context"
	"io"
)

// MediaStore persists message attachments and returns their public URL.
type MediaStore interface {
	UploadFile(ctx context.Context, file io.Reader, contentType, folder string) (string, error)
	DeleteFile(ctx context.Context, fileURL string) error
	Close() error
}
