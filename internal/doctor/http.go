package doctor

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/monitorasaude/api/internal/account"
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
	r.Route("/doctors", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/crm/{state}/{crm}", h.handleFindByCRM)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleDelete)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.service.List(r.Context(), Filter{HospitalID: q.Get("hospitalId"), Specialty: q.Get("specialty")})
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

func (h *Handler) handleFindByCRM(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.FindByCRM(r.Context(), chi.URLParam(r, "crm"), chi.URLParam(r, "state"))
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
	var in struct {
		CreateInput
		HospitalID string `json:"hospitalId"`
	}
	if err := render.Decode(r, &in); err != nil {
		handleError(w, r, err)
		return
	}

	hospitalID := in.HospitalID
	switch {
	case session.Is(auth.RoleHospital):
		hospitalID = session.Subject
	case session.Is(auth.RoleAdmin):
	default:
		render.Forbidden(w)
		return
	}

	item, err := h.service.Create(r.Context(), hospitalID, in.CreateInput)
	if err != nil {
		handleError(w, r, err)
		return
	}
	render.JSON(w, http.StatusCreated, item)
}

// canManage: o próprio médico, o hospital do médico ou um administrador.
func (h *Handler) canManage(r *http.Request, session auth.Session, id string, selfAllowed bool) (bool, error) {
	if session.Is(auth.RoleAdmin) || (selfAllowed && session.Subject == id) {
		return true, nil
	}
	if !session.Is(auth.RoleHospital) {
		return false, nil
	}
	d, err := h.service.Get(r.Context(), id)
	if err != nil {
		return false, err
	}
	return d.HospitalID != nil && *d.HospitalID == session.Subject, nil
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	session, ok := render.Session(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	allowed, err := h.canManage(r, session, id, true)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if !allowed {
		render.Forbidden(w)
		return
	}
	var in UpdateInput
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
	id := chi.URLParam(r, "id")
	allowed, err := h.canManage(r, session, id, false)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if !allowed {
		render.Forbidden(w)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrHasPatients), errors.Is(err, ErrDuplicateCRM), errors.Is(err, account.ErrDuplicateEmail):
		render.Fail(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, ErrNoHospital):
		render.Fail(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	default:
		render.Error(w, r, err)
	}
}
