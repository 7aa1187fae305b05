package profile

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/monitorasaude/api/internal/http/render"
	"github.com/monitorasaude/api/internal/util"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/profile/image", h.handleGetOwn)
	r.Put("/profile/image", h.handleUpload)
	r.Delete("/profile/image", h.handleDelete)
	r.Get("/users/{id}/image", h.handleGet)
}

func (h *Handler) handleGetOwn(w http.ResponseWriter, r *http.Request) {
	session, ok := render.Session(w, r)
	if !ok {
		return
	}
	h.respond(w, r, session.Subject)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	if _, ok := render.Session(w, r); !ok {
		return
	}
	h.respond(w, r, chi.URLParam(r, "id"))
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, userID string) {
	img, err := h.service.Get(r.Context(), userID)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, img)
}

// handleUpload aceita multipart (campo "image") ou o corpo bruto com Content-Type.
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	session, ok := render.Session(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, MaxSize+64<<10)

	var (
		content     []byte
		contentType string
		err         error
	)
	if file, header, ferr := r.FormFile("image"); ferr == nil {
		defer file.Close()
		content, err = io.ReadAll(file)
		contentType = header.Header.Get("Content-Type")
	} else if errors.Is(ferr, http.ErrNotMultipart) {
		content, err = io.ReadAll(r.Body)
		contentType = r.Header.Get("Content-Type")
	} else {
		err = ferr
	}
	if err != nil {
		render.Error(w, r, util.Invalid("imagem inválida ou maior que 2MB"))
		return
	}

	img, err := h.service.Upload(r.Context(), session.Subject, content, contentType)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, img)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	session, ok := render.Session(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), session.Subject); err != nil {
		render.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
