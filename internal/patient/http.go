package patient

import (
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

// RegisterRoutes usa padrões completos: /patients/{id}/values pertence ao pacote indicator.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/patients", h.handleList)
	r.Post("/patients", h.handleCreate)
	r.Get("/patients/{id}", h.handleGet)
	r.Put("/patients/{id}", h.handleUpdate)
	r.Delete("/patients/{id}", h.handleDelete)
	r.Get("/patients/{id}/personal-data", h.handleGetPersonal)
	r.Put("/patients/{id}/personal-data", h.handleSavePersonal)
	r.Get("/patients/{id}/medical-data", h.handleGetMedical)
	r.Put("/patients/{id}/medical-data", h.handleSaveMedical)
}

func doctorSession(w http.ResponseWriter, r *http.Request) (auth.Session, bool) {
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

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	session, ok := doctorSession(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	items, err := h.service.List(r.Context(), session.Subject, Filter{Status: q.Get("status"), Name: q.Get("name")})
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, items)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	session, ok := doctorSession(w, r)
	if !ok {
		return
	}
	var in Input
	if err := render.Decode(r, &in); err != nil {
		render.Error(w, r, err)
		return
	}
	item, err := h.service.Create(r.Context(), session.Subject, in)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusCreated, item)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	session, ok := render.Session(w, r)
	if !ok {
		return
	}
	item, err := h.service.Resolve(r.Context(), session, chi.URLParam(r, "id"))
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	session, ok := doctorSession(w, r)
	if !ok {
		return
	}
	var in UpdateInput
	if err := render.Decode(r, &in); err != nil {
		render.Error(w, r, err)
		return
	}
	item, err := h.service.Update(r.Context(), session.Subject, chi.URLParam(r, "id"), in)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	session, ok := doctorSession(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), session.Subject, chi.URLParam(r, "id")); err != nil {
		render.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// readable confirma acesso de leitura aos dados próprios do paciente.
func (h *Handler) readable(w http.ResponseWriter, r *http.Request) (string, bool) {
	session, ok := render.Session(w, r)
	if !ok {
		return "", false
	}
	id := chi.URLParam(r, "id")
	allowed, err := h.service.CanView(r.Context(), session, id)
	if err != nil {
		render.Error(w, r, err)
		return "", false
	}
	if !allowed {
		render.Forbidden(w)
		return "", false
	}
	return id, true
}

// writable: só o próprio paciente altera seus dados.
func writable(w http.ResponseWriter, r *http.Request) (string, bool) {
	session, ok := render.Session(w, r)
	if !ok {
		return "", false
	}
	id := chi.URLParam(r, "id")
	if !session.Is(auth.RolePatient) || session.Subject != id {
		render.Forbidden(w)
		return "", false
	}
	return id, true
}

func (h *Handler) handleGetPersonal(w http.ResponseWriter, r *http.Request) {
	id, ok := h.readable(w, r)
	if !ok {
		return
	}
	d, err := h.service.GetPersonalData(r.Context(), id)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, d)
}

func (h *Handler) handleSavePersonal(w http.ResponseWriter, r *http.Request) {
	id, ok := writable(w, r)
	if !ok {
		return
	}
	var in PersonalInput
	if err := render.Decode(r, &in); err != nil {
		render.Error(w, r, err)
		return
	}
	d, err := h.service.SavePersonalData(r.Context(), id, in)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, d)
}

func (h *Handler) handleGetMedical(w http.ResponseWriter, r *http.Request) {
	id, ok := h.readable(w, r)
	if !ok {
		return
	}
	d, err := h.service.GetMedicalData(r.Context(), id)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, d)
}

func (h *Handler) handleSaveMedical(w http.ResponseWriter, r *http.Request) {
	id, ok := writable(w, r)
	if !ok {
		return
	}
	var in MedicalInput
	if err := render.Decode(r, &in); err != nil {
		render.Error(w, r, err)
		return
	}
	d, err := h.service.SaveMedicalData(r.Context(), id, in)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, d)
}
