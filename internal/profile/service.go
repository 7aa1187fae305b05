// Package profile mantém a imagem de perfil dos usuários.
package profile

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/monitorasaude/api/internal/schema"
	"github.com/monitorasaude/api/internal/storage"
	"github.com/monitorasaude/api/internal/store"
	"github.com/monitorasaude/api/internal/util"
)

// MaxSize é o tamanho máximo aceito para a imagem.
const MaxSize = 2 << 20

var allowedTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

type Service struct {
	images   *store.Store[schema.ProfileImage]
	uploader storage.Uploader
	logger   zerolog.Logger
}

func NewService(images *store.Store[schema.ProfileImage], uploader storage.Uploader) *Service {
	return &Service{
		images:   images,
		uploader: uploader,
		logger:   log.With().Str("component", "profile").Logger(),
	}
}

// Get devolve a imagem do usuário.
func (s *Service) Get(ctx context.Context, userID string) (schema.ProfileImage, error) {
	return s.images.FindOne(ctx, schema.Eq("userId", userID))
}

// detectType confere o tipo declarado contra o conteúdo.
func detectType(content []byte, declared string) (string, error) {
	declared = strings.ToLower(strings.TrimSpace(strings.Split(declared, ";")[0]))
	sniffed := http.DetectContentType(content)
	if declared == "" || declared == "application/octet-stream" {
		declared = sniffed
	}
	if _, ok := allowedTypes[declared]; !ok {
		return "", util.Invalid("formato de imagem não suportado")
	}
	if sniffed != declared {
		return "", util.Invalid("conteúdo não corresponde ao tipo informado")
	}
	return declared, nil
}

// Upload substitui a imagem do usuário. Mantém um registro por usuário.
func (s *Service) Upload(ctx context.Context, userID string, content []byte, contentType string) (schema.ProfileImage, error) {
	if len(content) == 0 {
		return schema.ProfileImage{}, util.Invalid("imagem vazia")
	}
	if len(content) > MaxSize {
		return schema.ProfileImage{}, util.Invalid("imagem maior que 2MB")
	}
	ct, err := detectType(content, contentType)
	if err != nil {
		return schema.ProfileImage{}, err
	}

	previous, err := s.Get(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return schema.ProfileImage{}, err
	}

	key := "profile/" + userID + "/" + util.NewID() + "." + allowedTypes[ct]
	res, err := s.uploader.Upload(ctx, storage.UploadInput{
		Key:          key,
		Body:         content,
		ContentType:  ct,
		CacheControl: "public, max-age=86400",
	})
	if err != nil {
		return schema.ProfileImage{}, err
	}

	img := schema.ProfileImage{
		ID:          previous.ID,
		UserID:      userID,
		URL:         res.URL,
		StorageKey:  res.Key,
		ContentType: ct,
		Size:        int64(len(content)),
		CreatedAt:   previous.CreatedAt,
	}
	if err := s.images.Put(ctx, &img); err != nil {
		return schema.ProfileImage{}, err
	}

	if previous.StorageKey != "" && previous.StorageKey != img.StorageKey {
		if err := s.uploader.Delete(ctx, previous.StorageKey); err != nil {
			s.logger.Warn().Err(err).Str("key", previous.StorageKey).Msg("falha ao remover imagem anterior")
		}
	}
	return img, nil
}

// Delete remove a imagem do usuário. Sem imagem, não faz nada.
func (s *Service) Delete(ctx context.Context, userID string) error {
	img, err := s.Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.images.Delete(ctx, img.ID); err != nil {
		return err
	}
	if err := s.uploader.Delete(ctx, img.StorageKey); err != nil {
		s.logger.Warn().Err(err).Str("key", img.StorageKey).Msg("falha ao remover objeto")
	}
	return nil
}
