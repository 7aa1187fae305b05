package storage

import (
	"context"
	"encoding/base64"
	"errors"
)

// NoopUploader não envia nada: devolve o conteúdo como data URL para ser gravado no registro.
type NoopUploader struct{}

func (NoopUploader) Upload(_ context.Context, input UploadInput) (*UploadResult, error) {
	if len(input.Body) == 0 {
		return nil, errors.New("storage: corpo vazio")
	}
	url := "data:" + input.ContentType + ";base64," + base64.StdEncoding.EncodeToString(input.Body)
	return &UploadResult{URL: url}, nil
}

func (NoopUploader) Delete(context.Context, string) error {
	return nil
}
