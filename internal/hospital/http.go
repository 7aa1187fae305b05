package hospital

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

// RegisterPublicRoutes registra o login de hospital.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/auth/hospital/login", h.handleLogin)
}

// RegisterRoutes registra o CRUD autenticado.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/hospitals", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleDelete)
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := render.Decode(r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	token, session, view, err := h.service.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		handleError(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, map[string]any{
		"token":     token,
		"expiresAt": session.ExpiresAt,
		"role":      session.Role,
		"user":      view,
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, items)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	session, ok := render.Session(w, r)
	if !ok {
		return
	}
	if !session.Is(auth.RoleAdmin) {
		render.Forbidden(w)
		return
	}
	var in Input
	if err := render.Decode(r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	item, err := h.service.Create(r.Context(), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	render.JSON(w, http.StatusCreated, item)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	session, ok := render.Session(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if !session.Is(auth.RoleAdmin) && !(session.Is(auth.RoleHospital) && session.Subject == id) {
		render.Forbidden(w)
		return
	}
	var in Input
	if err := render.Decode(r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	item, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	session, ok := render.Session(w, r)
	if !ok {
		return
	}
	if !session.Is(auth.RoleAdmin) {
		render.Forbidden(w)
		return
	}
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrHasDoctors), errors.Is(err, ErrDuplicateEmail):
		render.Fail(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, ErrInvalidCredentials):
		render.Fail(w, http.StatusUnauthorized, "AUTH", err.Error(), nil)
	default:
		render.Error(w, r, err)
	}
}
