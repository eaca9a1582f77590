package consultation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	svc    *Service
	logger *logrus.Logger
}

func NewHandler(svc *Service, logger *logrus.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type createRequest struct {
	PatientID      string `json:"patientId"`
	Professional   string `json:"professional"`
	Modality       string `json:"modality"`
	Recommendation string `json:"recommendation,omitempty"`
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

type callResponse struct {
	CallState CallState `json:"callState"`
}

type endResponse struct {
	Summary string `json:"summary"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	sess, err := h.svc.Start(r.Context(), StartRequest{
		PatientID:      req.PatientID,
		Professional:   Role(req.Professional),
		Modality:       Type(req.Modality),
		Recommendation: req.Recommendation,
	})
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	view, err := h.svc.Get(r.Context(), sess.ID)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	view, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, "Get", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	msg, err := h.svc.SendMessage(r.Context(), id, req.Text)
	if err != nil {
		h.writeError(w, "SendMessage", err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *Handler) ToggleCall(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	state, err := h.svc.ToggleCall(r.Context(), id)
	if err != nil {
		h.writeError(w, "ToggleCall", err)
		return
	}
	writeJSON(w, http.StatusOK, callResponse{CallState: state})
}

func (h *Handler) End(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	summary, err := h.svc.End(r.Context(), id)
	if err != nil {
		h.writeError(w, "End", err)
		return
	}
	writeJSON(w, http.StatusOK, endResponse{Summary: summary})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	status := Status(r.URL.Query().Get("status"))
	switch status {
	case "", StatusPending, StatusActive, StatusCompleted, StatusCancelled:
	default:
		badRequest(w, "invalid status filter")
		return
	}

	sessions, err := h.svc.List(r.Context(), status)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}
	if sessions == nil {
		sessions = []Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid consultation id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, fn string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrUnknownProfessional), errors.Is(err, ErrInvalidModality), errors.Is(err, ErrEmptyMessage):
		status = http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrSessionEnded):
		status = http.StatusGone
	default:
		h.logger.WithFields(logrus.Fields{"Function": fn, "Error": err}).Error("Consultation request failed")
		writeJSON(w, status, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/consultations", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Post("/{id}/messages", h.SendMessage)
		r.Post("/{id}/call", h.ToggleCall)
		r.Post("/{id}/end", h.End)
	})
}
