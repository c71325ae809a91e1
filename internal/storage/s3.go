package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"medbook/config"
)

type S3Storage struct {
	client  *minio.Client
	cfg     config.S3Config
	baseURL string
	logger  *zap.Logger
}

func NewS3Storage(ctx context.Context, cfg config.S3Config, logger *zap.Logger) (*S3Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации клиента S3: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("ошибка проверки существования бакета: %w", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{
			Region: cfg.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("ошибка создания бакета: %w", err)
		}
		logger.Info("Создан бакет", zap.String("bucket", cfg.Bucket))
	}

	return &S3Storage{
		client:  client,
		cfg:     cfg,
		baseURL: publicBase(cfg),
		logger:  logger,
	}, nil
}

func publicBase(cfg config.S3Config) string {
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, strings.TrimSuffix(cfg.Endpoint, "/"), cfg.Bucket)
}

// objectKey превращает публичный URL в ключ; ключ возвращается как есть.
func objectKey(baseURL, ref string) (string, error) {
	if ref == "" {
		return "", errors.New("пустая ссылка на файл")
	}

	if strings.Contains(ref, "://") {
		prefix := baseURL + "/"
		if !strings.HasPrefix(ref, prefix) || len(ref) == len(prefix) {
			return "", fmt.Errorf("некорректный URL файла: %s", ref)
		}
		return strings.TrimPrefix(ref, prefix), nil
	}

	return strings.TrimPrefix(ref, "/"), nil
}

func (s *S3Storage) UploadFile(ctx context.Context, folder string, data []byte, filename string, allowed []string) (string, error) {
	fileType, err := DetectContentType(data, allowed)
	if err != nil {
		return "", err
	}

	key := ObjectKey(folder, filename, fileType)

	_, err = s.client.PutObject(ctx, s.cfg.Bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: fileType,
	})
	if err != nil {
		return "", fmt.Errorf("ошибка загрузки файла в S3: %w", err)
	}

	s.logger.Debug("Файл загружен",
		zap.String("key", key),
		zap.String("content_type", fileType),
		zap.Int("size", len(data)))

	return key, nil
}

func (s *S3Storage) DeleteFile(ctx context.Context, ref string) error {
	if ref == "" {
		return nil
	}

	key, err := objectKey(s.baseURL, ref)
	if err != nil {
		return err
	}

	if err := s.client.RemoveObject(ctx, s.cfg.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("ошибка удаления файла из S3: %w", err)
	}

	return nil
}

func (s *S3Storage) GetFile(ctx context.Context, key string) ([]byte, error) {
	key, err := objectKey(s.baseURL, key)
	if err != nil {
		return nil, err
	}

	object, err := s.client.GetObject(ctx, s.cfg.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("ошибка получения файла из S3: %w", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла из S3: %w", err)
	}

	return data, nil
}

func (s *S3Storage) GetPresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	key, err := objectKey(s.baseURL, key)
	if err != nil {
		return "", err
	}

	if expiry <= 0 {
		expiry = s.cfg.PresignExpiry
	}

	presignedURL, err := s.client.PresignedGetObject(ctx, s.cfg.Bucket, key, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("ошибка генерации пресайн URL: %w", err)
	}

	return presignedURL.String(), nil
}

func (s *S3Storage) PublicURL(key string) string {
	return s.baseURL + "/" + key
}
