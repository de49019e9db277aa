package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"arcfolio/internal/storage/blob"

	"github.com/google/uuid"
)

// LocalFileStorage хранит изображения на локальном диске и раздаёт их через статический маршрут
type LocalFileStorage struct {
	baseDir string // Базовый каталог для хранения (например: "./uploads")
	baseURL string // Базовый URL для доступа к файлам (например: "http://localhost:8080/uploads")
}

var _ blob.Store = (*LocalFileStorage)(nil)

func NewLocalFileStorage(baseDir, baseURL string) (*LocalFileStorage, error) {
	// Создаем директорию, если она не существует
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}

	return &LocalFileStorage{
		baseDir: baseDir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Upload сохраняет файл как <folder>/<uuid><ext>; относительный путь служит public_id
func (s *LocalFileStorage) Upload(ctx context.Context, file blob.File, folder string, transforms []blob.Transform) (blob.UploadResult, error) {
	const op = "storage.filestorage.Upload"

	if err := ctx.Err(); err != nil {
		return blob.UploadResult{}, &blob.UploadError{Filename: file.Filename, Err: err}
	}

	publicID := path.Join(strings.Trim(folder, "/"), uuid.NewString()+file.Extension)
	filePath := s.FullPath(publicID)

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return blob.UploadResult{}, &blob.UploadError{
			Filename: file.Filename,
			Err:      fmt.Errorf("%s: failed to create directories: %w", op, err),
		}
	}

	dst, err := os.Create(filePath)
	if err != nil {
		return blob.UploadResult{}, &blob.UploadError{
			Filename: file.Filename,
			Err:      fmt.Errorf("%s: failed to create destination file: %w", op, err),
		}
	}

	done := make(chan error, 1)
	go func() {
		_, copyErr := io.Copy(dst, file.Reader())
		done <- copyErr
	}()

	select {
	case copyErr := <-done:
		closeErr := dst.Close()
		if copyErr == nil {
			copyErr = closeErr
		}
		if copyErr != nil {
			_ = os.Remove(filePath)
			return blob.UploadResult{}, &blob.UploadError{
				Filename: file.Filename,
				Err:      fmt.Errorf("%s: failed to copy file: %w", op, copyErr),
			}
		}
	case <-ctx.Done():
		<-done
		_ = dst.Close()
		_ = os.Remove(filePath)
		return blob.UploadResult{}, &blob.UploadError{Filename: file.Filename, Err: ctx.Err()}
	}

	return blob.UploadResult{
		URL:      blob.DeliveryURL(s.baseURL, publicID, transforms),
		PublicID: publicID,
	}, nil
}

// Delete удаляет файл из хранилища
func (s *LocalFileStorage) Delete(ctx context.Context, publicID string) error {
	const op = "storage.filestorage.Delete"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w: %v", op, blob.ErrTransient, err)
	}

	clean := path.Clean("/" + publicID)
	if clean == "/" {
		return fmt.Errorf("%s: %w", op, blob.ErrNotFound)
	}

	err := os.Remove(s.FullPath(strings.TrimPrefix(clean, "/")))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%s: %w", op, blob.ErrNotFound)
	default:
		return fmt.Errorf("%s: %w: %v", op, blob.ErrTransient, err)
	}
}

// FullPath возвращает полный путь к файлу на диске
func (s *LocalFileStorage) FullPath(publicID string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(publicID))
}

func (s *LocalFileStorage) BaseDir() string {
	return s.baseDir
}
