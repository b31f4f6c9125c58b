// Package s3storage: архив загруженных фермерами фото в S3-совместимом хранилище.
//
// "Тупой" клиент: кладёт байты по ключу. Архив работает по принципу best effort:
// ошибка загрузки логируется вызывающим, но не ломает ход диалога.
package s3storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ilkoid/agribot/pkg/config"
)

// Archiver определяет интерфейс архива изображений.
// Используется для мокания в тестах и внедрения зависимостей.
type Archiver interface {
	PutImage(ctx context.Context, sessionHash string, data []byte, contentType string) (string, error)
}

// Client: архив поверх minio-go.
type Client struct {
	api    *minio.Client
	bucket string
	prefix string
}

// Проверка что Client реализует Archiver
var _ Archiver = (*Client)(nil)

// New создает клиент из конфигурации.
func New(cfg config.S3Config) (*Client, error) {
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")

	minioClient, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}

	return &Client{
		api:    minioClient,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// ObjectKey строит ключ <prefix>/<session-hash>/<uuid>.jpg.
func (c *Client) ObjectKey(sessionHash string) string {
	return path.Join(c.prefix, sessionHash, uuid.NewString()+".jpg")
}

// PutImage сохраняет изображение и возвращает ключ объекта.
func (c *Client) PutImage(ctx context.Context, sessionHash string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "image/jpeg"
	}
	key := c.ObjectKey(sessionHash)

	_, err := c.api.PutObject(ctx, c.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return key, nil
}
