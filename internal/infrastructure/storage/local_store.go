package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps media on local disk and serves it under BaseURL. It backs
// STORE_DRIVER=memory, where no bucket is configured.
type LocalStore struct {
	dir     string
	baseURL string
}

func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media dir: %v", err)
	}
	return &LocalStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

func (s *LocalStore) Dir() string {
	return s.dir
}

func (s *LocalStore) UploadFile(ctx context.Context, file io.Reader, contentType, folder string) (string, error) {
	name := objectName(folder, contentType)
	path := filepath.Join(s.dir, filepath.FromSlash(name))

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create media folder: %v", err)
	}

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create media file: %v", err)
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write media file: %v", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close media file: %v", err)
	}

	return s.baseURL + "/" + name, nil
}

func (s *LocalStore) DeleteFile(ctx context.Context, fileURL string) error {
	if !strings.HasPrefix(fileURL, s.baseURL+"/") {
		return fmt.Errorf("media url does not belong to this store")
	}
	name := strings.TrimPrefix(fileURL, s.baseURL+"/")
	if strings.Contains(name, "..") {
		return fmt.Errorf("invalid media path")
	}
	return os.Remove(filepath.Join(s.dir, filepath.FromSlash(name)))
}

func (s *LocalStore) Close() error {
	return nil
}
