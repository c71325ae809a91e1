package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEmptyFile       = errors.New("пустые данные файла")
	ErrUnsupportedType = errors.New("недопустимый тип файла")
)

const (
	FolderDoctors       = "doctors"
	FolderPrescriptions = "prescriptions"
)

var (
	ImageTypes    = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}
	DocumentTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp", "application/pdf"}
)

// FileStorage хранит объекты по ключам вида "<папка>/<uuid><расширение>".
type FileStorage interface {
	// UploadFile проверяет тип содержимого по allowed и возвращает ключ объекта.
	UploadFile(ctx context.Context, folder string, data []byte, filename string, allowed []string) (string, error)

	// DeleteFile принимает ключ или публичный URL объекта.
	DeleteFile(ctx context.Context, ref string) error

	GetFile(ctx context.Context, key string) ([]byte, error)

	GetPresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)

	PublicURL(key string) string
}

// DetectContentType определяет MIME-тип по первым байтам и сверяет его со списком.
func DetectContentType(data []byte, allowed []string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyFile
	}

	fileType := http.DetectContentType(data)
	if i := strings.Index(fileType, ";"); i >= 0 {
		fileType = strings.TrimSpace(fileType[:i])
	}

	for _, t := range allowed {
		if t == fileType {
			return fileType, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrUnsupportedType, fileType)
}

// ObjectKey строит уникальный ключ; расширение берется из имени файла или из типа.
func ObjectKey(folder, filename, contentType string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		switch contentType {
		case "image/jpeg":
			ext = ".jpg"
		case "image/png":
			ext = ".png"
		case "image/gif":
			ext = ".gif"
		case "image/webp":
			ext = ".webp"
		case "application/pdf":
			ext = ".pdf"
		default:
			ext = ".bin"
		}
	}

	return fmt.Sprintf("%s/%s%s", folder, uuid.New().String(), ext)
}
