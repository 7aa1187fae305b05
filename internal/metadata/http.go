package metadata

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/monitorasaude/api/internal/auth"
	"github.com/monitorasaude/api/internal/http/render"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/metadata/{kind}", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Put("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleDelete)
	})
}

// handleList: não administradores só veem opções ativas.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	session, ok := render.Session(w, r)
	if !ok {
		return
	}
	activeOnly := !session.Is(auth.RoleAdmin) || r.URL.Query().Get("active") == "true"
	items, err := h.service.List(r.Context(), chi.URLParam(r, "kind"), activeOnly)
	if err != nil {
		handleError(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, items)
}

func adminOnly(w http.ResponseWriter, r *http.Request) bool {
	session, ok := render.Session(w, r)
	if !ok {
		return false
	}
	if !session.Is(auth.RoleAdmin) {
		render.Forbidden(w)
		return false
	}
	return true
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	if !adminOnly(w, r) {
		return
	}
	var in Input
	if err := render.Decode(r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	item, err := h.service.Create(r.Context(), chi.URLParam(r, "kind"), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	render.JSON(w, http.StatusCreated, item)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if !adminOnly(w, r) {
		return
	}
	var in Input
	if err := render.Decode(r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	item, err := h.service.Update(r.Context(), chi.URLParam(r, "kind"), chi.URLParam(r, "id"), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !adminOnly(w, r) {
		return
	}
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "kind"), chi.URLParam(r, "id")); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func handleError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrUnknownKind) {
		render.Fail(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
		return
	}
	render.Error(w, r, err)
}
