// Package render padroniza o envelope JSON das respostas HTTP.
package render

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/monitorasaude/api/internal/auth"
	"github.com/monitorasaude/api/internal/link"
	"github.com/monitorasaude/api/internal/store"
	"github.com/monitorasaude/api/internal/util"
)

const maxBody = 1 << 20

// SuccessEnvelope padroniza respostas com dados.
type SuccessEnvelope struct {
	Data  any `json:"data"`
	Error any `json:"error"`
}

// ErrorEnvelope padroniza respostas de erro.
type ErrorEnvelope struct {
	Data  any        `json:"data"`
	Error *ErrorBody `json:"error"`
}

// ErrorBody descreve falhas normalizadas.
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// JSON escreve envelope de sucesso.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(SuccessEnvelope{Data: data, Error: nil})
}

// Fail escreve envelope de erro e mantém formato consistente.
func Fail(w http.ResponseWriter, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorEnvelope{
		Data:  nil,
		Error: &ErrorBody{Code: code, Message: message, Details: details},
	})
}

// Decode lê o corpo JSON da requisição.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		return util.Invalid("payload inválido")
	}
	return nil
}

// Error traduz erros comuns dos pacotes de base para o envelope.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var validation *util.ValidationError
	switch {
	case errors.As(err, &validation):
		Fail(w, http.StatusBadRequest, "VALIDATION", validation.Message, nil)
	case errors.Is(err, store.ErrNotFound):
		Fail(w, http.StatusNotFound, "NOT_FOUND", "registro não encontrado", nil)
	case errors.Is(err, store.ErrConflict):
		Fail(w, http.StatusConflict, "CONFLICT", "registro em conflito", nil)
	case errors.Is(err, link.ErrNotConfigured):
		Fail(w, http.StatusServiceUnavailable, "UNAVAILABLE", link.ErrNotConfigured.Error(), nil)
	case errors.Is(err, link.ErrRemoteUnavailable):
		Fail(w, http.StatusServiceUnavailable, "UNAVAILABLE", "banco remoto indisponível, tente novamente", nil)
	case errors.Is(err, auth.ErrSessionNotFound):
		Fail(w, http.StatusUnauthorized, "AUTH", "sessão expirada", nil)
	case errors.Is(err, auth.ErrInvalidToken):
		Fail(w, http.StatusBadRequest, "VALIDATION", auth.ErrInvalidToken.Error(), nil)
	default:
		Internal(w, r, err)
	}
}

// Internal registra a falha e responde 500 sem detalhes.
func Internal(w http.ResponseWriter, r *http.Request, err error) {
	log.Error().Err(err).Str("request_id", chimiddleware.GetReqID(r.Context())).Str("path", r.URL.Path).Msg("handler error")
	Fail(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
}

// Session recupera a sessão autenticada ou responde 401.
func Session(w http.ResponseWriter, r *http.Request) (auth.Session, bool) {
	s, ok := auth.SessionFrom(r.Context())
	if !ok {
		Fail(w, http.StatusUnauthorized, "AUTH", "não autenticado", nil)
	}
	return s, ok
}

// Forbidden responde 403 padrão.
func Forbidden(w http.ResponseWriter) {
	Fail(w, http.StatusForbidden, "FORBIDDEN", "sem acesso", nil)
}
