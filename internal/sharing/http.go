package sharing

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
	r.Route("/sharing", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleShare)
		r.Delete("/patients/{patientId}", h.handleDropPatient)
		r.Delete("/{doctorId}", h.handleRevoke)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	session, ok := render.Session(w, r)
	if !ok {
		return
	}
	var (
		items []View
		err   error
	)
	switch session.Role {
	case auth.RolePatient:
		items, err = h.service.ListForPatient(r.Context(), session.Subject)
	case auth.RoleDoctor:
		items, err = h.service.ListForDoctor(r.Context(), session.Subject)
	default:
		render.Forbidden(w)
		return
	}
	if err != nil {
		handleError(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, items)
}

func (h *Handler) handleShare(w http.ResponseWriter, r *http.Request) {
	session, ok := render.Session(w, r)
	if !ok {
		return
	}
	if !session.Is(auth.RolePatient) {
		render.Forbidden(w)
		return
	}
	var in struct {
		DoctorID string `json:"doctorId"`
	}
	if err := render.Decode(r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	rec, err := h.service.Share(r.Context(), session.Subject, in.DoctorID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, rec)
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	session, ok := render.Session(w, r)
	if !ok {
		return
	}
	if !session.Is(auth.RolePatient) {
		render.Forbidden(w)
		return
	}
	if err := h.service.Revoke(r.Context(), session.Subject, chi.URLParam(r, "doctorId")); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDropPatient permite ao médico abrir mão do acesso.
func (h *Handler) handleDropPatient(w http.ResponseWriter, r *http.Request) {
	session, ok := render.Session(w, r)
	if !ok {
		return
	}
	if !session.Is(auth.RoleDoctor) {
		render.Forbidden(w)
		return
	}
	if err := h.service.Revoke(r.Context(), chi.URLParam(r, "patientId"), session.Subject); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrPatientNotFound), errors.Is(err, ErrDoctorNotFound):
		render.Fail(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	default:
		render.Error(w, r, err)
	}
}
