// Package storage guarda blobs (imagens de perfil) em um backend compatível com S3
// ou, sem backend, embutidos como data URL.
package storage

import (
	"context"
	"fmt"

	"github.com/monitorasaude/api/internal/config"
)

// UploadInput representa uma operação de upload simples.
type UploadInput struct {
	Key          string
	Body         []byte
	ContentType  string
	CacheControl string
}

// UploadResult descreve o artefato persistido.
type UploadResult struct {
	URL  string
	Key  string
	ETag string
}

// Uploader armazena e remove blobs.
type Uploader interface {
	Upload(ctx context.Context, input UploadInput) (*UploadResult, error)
	Delete(ctx context.Context, key string) error
}

// New escolhe o uploader pela configuração.
func New(ctx context.Context, cfg config.StorageConfig) (Uploader, error) {
	switch cfg.Provider {
	case "", "noop":
		return NoopUploader{}, nil
	case "s3", "r2":
		return NewS3Uploader(ctx, S3Config{
			Endpoint:     cfg.S3Endpoint,
			Region:       cfg.S3Region,
			Bucket:       cfg.S3Bucket,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			PublicDomain: cfg.S3PublicURL,
		})
	default:
		return nil, fmt.Errorf("storage: provedor desconhecido %q", cfg.Provider)
	}
}
