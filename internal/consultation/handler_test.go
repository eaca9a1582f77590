package consultation

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"afyacal/internal/platform/logging"
)

func newTestRouter(t *testing.T) (http.Handler, *serviceFixture) {
	t.Helper()
	f := newServiceFixture(t)
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		RegisterRoutes(r, NewHandler(f.svc, logging.Discard()))
	})
	return r, f
}

func call(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestConsultationHTTPFlow(t *testing.T) {
	srv, f := newTestRouter(t)

	w := call(t, srv, http.MethodPost, "/api/consultations",
		`{"patientId":"patient-9","professional":"NURSE","modality":"VIDEO","recommendation":"Hydrate"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	created := decodeBody[View](t, w)
	if created.CallState != CallConnecting || len(created.Messages) != 1 {
		t.Errorf("created view = %+v", created)
	}
	base := "/api/consultations/" + created.Session.ID.String()

	w = call(t, srv, http.MethodPost, base+"/messages", `{"text":"It hurts when I swallow"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("send: %d %s", w.Code, w.Body.String())
	}
	if msg := decodeBody[Message](t, w); msg.Role != RolePatient {
		t.Errorf("message = %+v", msg)
	}

	w = call(t, srv, http.MethodPost, base+"/messages", `{"text":"  "}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("blank message: %d", w.Code)
	}

	f.timers.fire()

	w = call(t, srv, http.MethodGet, base, "")
	view := decodeBody[View](t, w)
	if view.CallState != CallActive || len(view.Messages) != 3 || view.Session.Status != StatusActive {
		t.Errorf("view = %+v", view)
	}

	w = call(t, srv, http.MethodPost, base+"/call", "")
	if got := decodeBody[callResponse](t, w); got.CallState != CallIdle {
		t.Errorf("toggle = %+v", got)
	}

	w = call(t, srv, http.MethodPost, base+"/end", "")
	if w.Code != http.StatusOK {
		t.Fatalf("end: %d %s", w.Code, w.Body.String())
	}
	if got := decodeBody[endResponse](t, w); got.Summary != "Follow up in two days." {
		t.Errorf("summary = %q", got.Summary)
	}

	w = call(t, srv, http.MethodPost, base+"/end", "")
	if w.Code != http.StatusGone {
		t.Errorf("second end: %d", w.Code)
	}

	w = call(t, srv, http.MethodGet, "/api/consultations?status=completed", "")
	list := decodeBody[[]Session](t, w)
	if len(list) != 1 || list[0].Notes != "Follow up in two days." {
		t.Errorf("list = %+v", list)
	}
}

func TestConsultationHTTPErrors(t *testing.T) {
	srv, _ := newTestRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"bad json", http.MethodPost, "/api/consultations", `{`, http.StatusBadRequest},
		{"unknown professional", http.MethodPost, "/api/consultations", `{"professional":"ER"}`, http.StatusBadRequest},
		{"bad modality", http.MethodPost, "/api/consultations", `{"professional":"DOCTOR","modality":"FAX"}`, http.StatusBadRequest},
		{"bad id", http.MethodGet, "/api/consultations/nope", "", http.StatusBadRequest},
		{"missing", http.MethodGet, "/api/consultations/5f0b7d2e-8c44-4d8e-9a55-0c3f0e0f1a11", "", http.StatusNotFound},
		{"bad status filter", http.MethodGet, "/api/consultations?status=lost", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := call(t, srv, tt.method, tt.path, tt.body); w.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestConsultationHTTPListEmpty(t *testing.T) {
	srv, _ := newTestRouter(t)

	w := call(t, srv, http.MethodGet, "/api/consultations", "")
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("list = %d %s", w.Code, w.Body.String())
	}
}
