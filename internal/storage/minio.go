// Package storage сохраняет файлы договоров в S3-совместимом хранилище.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/mmeshcher/realty-contracts/internal/model"
)

// Config содержит параметры подключения к хранилищу.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

// MinioStorage загружает файлы в MinIO и выдаёт постоянные ссылки на них.
type MinioStorage struct {
	client    *minio.Client
	bucket    string
	publicURL string
	newID     func() string
}

// NewMinioStorage создаёт клиент хранилища.
func NewMinioStorage(cfg Config) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicURL = scheme + "://" + cfg.Endpoint
	}

	return &MinioStorage{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		newID:     func() string { return uuid.NewString() },
	}, nil
}

// EnsureBucket создаёт бакет, если его ещё нет.
func (s *MinioStorage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

// Upload загружает файл и возвращает его имя и ссылку.
func (s *MinioStorage) Upload(ctx context.Context, u model.Upload) (model.Document, error) {
	objectName := s.objectName(u.FileName)

	contentType := u.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, s.bucket, objectName, u.Body, u.Size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return model.Document{}, fmt.Errorf("upload %s: %w", u.FileName, err)
	}

	return model.Document{
		FileName: u.FileName,
		FileURL:  s.objectURL(objectName),
	}, nil
}

func (s *MinioStorage) objectName(fileName string) string {
	return path.Join("contracts", s.newID(), SanitizeFileName(fileName))
}

func (s *MinioStorage) objectURL(objectName string) string {
	return s.publicURL + "/" + s.bucket + "/" + objectName
}

// SanitizeFileName оставляет в имени файла только безопасные символы.
// Расширение очищается отдельно и сохраняется, даже если от основы ничего не осталось.
func SanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))

	ext := path.Ext(name)
	stem := cleanPart(strings.TrimSuffix(name, ext))
	ext = cleanPart(ext)

	if stem == "" {
		stem = "file"
	}
	if ext == "" {
		return stem
	}
	return stem + "." + ext
}

func cleanPart(s string) string {
	result := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			result = append(result, r)
		case r == '-', r == '_', r == '.':
			result = append(result, r)
		default:
			result = append(result, '-')
		}
	}
	return strings.Trim(string(result), "-.")
}
