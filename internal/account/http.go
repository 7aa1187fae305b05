package account

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/monitorasaude/api/internal/auth"
	"github.com/monitorasaude/api/internal/http/render"
)

// Handler expõe cadastro, login e perfil.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterPublicRoutes registra as rotas sem autenticação.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/admin/login", h.handleAdminLogin)
	r.Post("/auth/password/forgot", h.handleForgot)
	r.Post("/auth/password/reset", h.handleReset)
}

// RegisterRoutes registra as rotas autenticadas.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/logout", h.handleLogout)
	r.Get("/me", h.handleMe)
	r.Put("/me", h.handleUpdateMe)
	r.Put("/me/password", h.handleChangePassword)
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in RegisterInput
	if err := render.Decode(r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	user, err := h.service.Register(r.Context(), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	render.JSON(w, http.StatusCreated, View(user))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := render.Decode(r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	res, err := h.service.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		handleError(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, res)
}

func (h *Handler) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := render.Decode(r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	res, err := h.service.LoginAdmin(r.Context(), in.Email, in.Password)
	if err != nil {
		handleError(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, res)
}

func (h *Handler) handleForgot(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if err := render.Decode(r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	if err := h.service.RequestPasswordReset(r.Context(), in.Email); err != nil {
		handleError(w, r, err)
		return
	}
	render.JSON(w, http.StatusAccepted, map[string]string{"message": "se o email estiver cadastrado, enviaremos as instruções"})
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := render.Decode(r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	if err := h.service.ResetPassword(r.Context(), in.Token, in.Password); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	session, ok := render.Session(w, r)
	if !ok {
		return
	}
	if err := h.service.Logout(r.Context(), session); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	session, ok := render.Session(w, r)
	if !ok {
		return
	}
	// hospitais e administradores não têm linha em users
	if !session.Is(auth.RoleDoctor, auth.RolePatient) {
		render.JSON(w, http.StatusOK, map[string]any{"id": session.Subject, "email": session.Email, "name": session.Name, "role": session.Role})
		return
	}
	user, err := h.service.Me(r.Context(), session.Subject)
	if err != nil {
		handleError(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, View(user))
}

func (h *Handler) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	session, ok := render.Session(w, r)
	if !ok {
		return
	}
	if !session.Is(auth.RoleDoctor, auth.RolePatient) {
		render.Forbidden(w)
		return
	}
	var in ProfileInput
	if err := render.Decode(r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	user, err := h.service.UpdateProfile(r.Context(), session.Subject, in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, View(user))
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	session, ok := render.Session(w, r)
	if !ok {
		return
	}
	if !session.Is(auth.RoleDoctor, auth.RolePatient) {
		render.Forbidden(w)
		return
	}
	var in struct {
		Current  string `json:"currentPassword"`
		Password string `json:"newPassword"`
	}
	if err := render.Decode(r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	if err := h.service.ChangePassword(r.Context(), session.Subject, in.Current, in.Password); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrDuplicateEmail), errors.Is(err, ErrDuplicateCRM):
		render.Fail(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, ErrInvalidCredentials):
		render.Fail(w, http.StatusUnauthorized, "AUTH", err.Error(), nil)
	default:
		render.Error(w, r, err)
	}
}
