package indicator

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/monitorasaude/api/internal/auth"
	"github.com/monitorasaude/api/internal/http/render"
)

// PatientAccess decide quem lê e registra medições de um paciente.
type PatientAccess interface {
	CanView(ctx context.Context, viewer auth.Session, patientID string) (bool, error)
	CanEdit(ctx context.Context, viewer auth.Session, patientID string) (bool, error)
}

type Handler struct {
	service *Service
	access  PatientAccess
}

func NewHandler(service *Service, access PatientAccess) *Handler {
	return &Handler{service: service, access: access}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/indicators", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleDelete)
	})
	r.Get("/patients/{id}/values", h.handleListValues)
	r.Post("/patients/{id}/values", h.handleAddValue)
	r.Put("/patients/{id}/values/{valueId}", h.handleUpdateValue)
	r.Delete("/patients/{id}/values/{valueId}", h.handleDeleteValue)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	session, ok := render.Session(w, r)
	if !ok {
		return
	}
	items, err := h.service.List(r.Context(), session)
	if err != nil {
		handleError(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, items)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	if _, ok := render.Session(w, r); !ok {
		return
	}
	item, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, item)
}

func doctorOnly(w http.ResponseWriter, r *http.Request) (auth.Session, bool) {
	session, ok := render.Session(w, r)
	if !ok {
		return session, false
	}
	if !session.Is(auth.RoleDoctor) {
		render.Forbidden(w)
		return session, false
	}
	return session, true
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	session, ok := doctorOnly(w, r)
	if !ok {
		return
	}
	var in Input
	if err := render.Decode(r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	item, err := h.service.Create(r.Context(), session.Subject, in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	render.JSON(w, http.StatusCreated, item)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	session, ok := doctorOnly(w, r)
	if !ok {
		return
	}
	var in Input
	if err := render.Decode(r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	item, err := h.service.Update(r.Context(), session.Subject, chi.URLParam(r, "id"), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	session, ok := doctorOnly(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), session.Subject, chi.URLParam(r, "id")); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// authorize confere o acesso da sessão ao paciente da rota.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, edit bool) (auth.Session, string, bool) {
	session, ok := render.Session(w, r)
	if !ok {
		return session, "", false
	}
	patientID := chi.URLParam(r, "id")
	check := h.access.CanView
	if edit {
		check = h.access.CanEdit
	}
	allowed, err := check(r.Context(), session, patientID)
	if err != nil {
		handleError(w, r, err)
		return session, "", false
	}
	if !allowed {
		render.Forbidden(w)
		return session, "", false
	}
	return session, patientID, true
}

func (h *Handler) handleListValues(w http.ResponseWriter, r *http.Request) {
	session, patientID, ok := h.authorize(w, r, false)
	if !ok {
		return
	}
	items, err := h.service.ListValues(r.Context(), patientID, r.URL.Query().Get("indicatorId"), session.Is(auth.RoleDoctor))
	if err != nil {
		handleError(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, items)
}

func (h *Handler) handleAddValue(w http.ResponseWriter, r *http.Request) {
	_, patientID, ok := h.authorize(w, r, true)
	if !ok {
		return
	}
	var in ValueInput
	if err := render.Decode(r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	item, err := h.service.AddValue(r.Context(), patientID, in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	render.JSON(w, http.StatusCreated, item)
}

func (h *Handler) handleUpdateValue(w http.ResponseWriter, r *http.Request) {
	_, patientID, ok := h.authorize(w, r, true)
	if !ok {
		return
	}
	var in ValueUpdate
	if err := render.Decode(r, &in); err != nil {
		handleError(w, r, err)
		return
	}
	item, err := h.service.UpdateValue(r.Context(), patientID, chi.URLParam(r, "valueId"), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleDeleteValue(w http.ResponseWriter, r *http.Request) {
	_, patientID, ok := h.authorize(w, r, true)
	if !ok {
		return
	}
	if err := h.service.DeleteValue(r.Context(), patientID, chi.URLParam(r, "valueId")); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func handleError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrStandardImmutable) {
		render.Fail(w, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
		return
	}
	render.Error(w, r, err)
}
