package intake

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"afyacal/internal/triage"
)

// Shown to the patient when triage fails; the flow stays open for a retry.
const triageFailedMessage = "Something went wrong analyzing your symptoms. Please try again or contact a professional."

type Handler struct {
	store   *Store
	triager Triager
	logger  *logrus.Logger
}

func NewHandler(store *Store, t Triager, logger *logrus.Logger) *Handler {
	return &Handler{store: store, triager: t, logger: logger}
}

type flowResponse struct {
	ID string `json:"id"`
	State
}

type toggleSymptomRequest struct {
	Symptom string `json:"symptom"`
}

type detailsRequest struct {
	Duration    *string `json:"duration,omitempty"`
	Severity    *string `json:"severity,omitempty"`
	Description *string `json:"description,omitempty"`
}

type submitResponse struct {
	ID            string        `json:"id"`
	Result        triage.Result `json:"result"`
	MissingFields []string      `json:"missingFields,omitempty"`
}

type optionsResponse struct {
	Symptoms   []string          `json:"symptoms"`
	Durations  []string          `json:"durations"`
	Severities []triage.Severity `json:"severities"`
}

func (h *Handler) Options(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, optionsResponse{
		Symptoms:   SymptomOptions,
		Durations:  DurationOptions,
		Severities: SeverityOptions,
	})
}

func (h *Handler) CreateFlow(w http.ResponseWriter, r *http.Request) {
	id := uuid.New()
	// Completed and cancelled flows leave the store; the submit handler
	// returns the result to the caller directly.
	f := NewFlow(h.triager,
		func(triage.Result) { h.store.Remove(id) },
		func() { h.store.Remove(id) },
	)
	h.store.Add(id, f)

	h.logger.WithFields(logrus.Fields{"Function": "CreateFlow", "FlowID": id}).Info("Intake started")
	writeJSON(w, http.StatusCreated, flowResponse{ID: id.String(), State: f.State()})
}

func (h *Handler) GetFlow(w http.ResponseWriter, r *http.Request) {
	id, f, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, flowResponse{ID: id.String(), State: f.State()})
}

func (h *Handler) ToggleSymptom(w http.ResponseWriter, r *http.Request) {
	id, f, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req toggleSymptomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if err := f.ToggleSymptom(req.Symptom); err != nil {
		writeFlowError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, flowResponse{ID: id.String(), State: f.State()})
}

func (h *Handler) UpdateDetails(w http.ResponseWriter, r *http.Request) {
	id, f, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req detailsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	if req.Duration != nil {
		if err := f.SetDuration(*req.Duration); err != nil {
			writeFlowError(w, err)
			return
		}
	}
	if req.Severity != nil {
		if err := f.SetSeverity(triage.Severity(*req.Severity)); err != nil {
			writeFlowError(w, err)
			return
		}
	}
	if req.Description != nil {
		if err := f.SetDescription(*req.Description); err != nil {
			writeFlowError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, flowResponse{ID: id.String(), State: f.State()})
}

func (h *Handler) Next(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, (*Flow).Next)
}

func (h *Handler) Back(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, (*Flow).Back)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, (*Flow).Cancel)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, action func(*Flow) error) {
	id, f, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := action(f); err != nil {
		writeFlowError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, flowResponse{ID: id.String(), State: f.State()})
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	id, f, ok := h.lookup(w, r)
	if !ok {
		return
	}

	res, err := f.Submit(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, ErrFlowClosed), errors.Is(err, ErrSubmitPending), errors.Is(err, ErrNotFinalStep):
			writeFlowError(w, err)
		default:
			h.logger.WithFields(logrus.Fields{
				"Function": "Submit",
				"FlowID":   id,
				"Error":    err,
			}).Error("Triage failed")
			writeJSON(w, http.StatusBadGateway, map[string]string{
				"error": triageFailedMessage,
			})
		}
		return
	}

	writeJSON(w, http.StatusOK, submitResponse{
		ID:            id.String(),
		Result:        res,
		MissingFields: res.MissingFields(),
	})
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (uuid.UUID, *Flow, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid intake id")
		return uuid.Nil, nil, false
	}
	f, ok := h.store.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "intake not found"})
		return uuid.Nil, nil, false
	}
	return id, f, true
}

func writeFlowError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrInvalidOption):
		status = http.StatusBadRequest
	case errors.Is(err, ErrFlowClosed):
		status = http.StatusGone
	case errors.Is(err, ErrStepIncomplete), errors.Is(err, ErrSubmitPending), errors.Is(err, ErrNotFinalStep):
		status = http.StatusConflict
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
	r.Get("/intake/options", h.Options)
	r.Post("/intake", h.CreateFlow)
	r.Get("/intake/{id}", h.GetFlow)
	r.Post("/intake/{id}/symptoms", h.ToggleSymptom)
	r.Put("/intake/{id}/details", h.UpdateDetails)
	r.Post("/intake/{id}/next", h.Next)
	r.Post("/intake/{id}/back", h.Back)
	r.Post("/intake/{id}/cancel", h.Cancel)
	r.Post("/intake/{id}/submit", h.Submit)
}
