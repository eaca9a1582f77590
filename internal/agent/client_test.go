package agent

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"afyacal/internal/platform/logging"
	"afyacal/internal/triage"
)

// fakeGemini answers generateContent calls with a fixed model text.
type fakeGemini struct {
	mu     sync.Mutex
	text   string
	status int
	bodies []string
}

func (f *fakeGemini) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.bodies = append(f.bodies, string(body))
	f.mu.Unlock()

	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`))
		return
	}

	parts := []map[string]any{}
	if f.text != "" {
		parts = append(parts, map[string]any{"text": f.text})
	}
	resp := map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{"role": "model", "parts": parts},
		}},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func newTestClient(t *testing.T, f *fakeGemini) *GeminiClient {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	c, err := NewGeminiClient(context.Background(), GeminiConfig{
		APIKey:     "test-key",
		Model:      "test-model",
		BaseURL:    srv.URL + "/",
		HTTPClient: srv.Client(),
	}, logging.Discard())
	if err != nil {
		t.Fatalf("NewGeminiClient: %v", err)
	}
	return c
}

func TestGeminiPerformTriage(t *testing.T) {
	f := &fakeGemini{text: `{"severity":"medium","recommendation":"Call a nurse","suggestedProfessional":"NURSE","reasoning":"Short fever"}`}
	c := newTestClient(t, f)

	res, err := c.PerformTriage(context.Background(), triage.SymptomReport{
		Symptoms:    []string{"Fever", "Cough"},
		Duration:    "1-3 days",
		Severity:    triage.SeverityLow,
		Description: "tired",
	})
	if err != nil {
		t.Fatalf("PerformTriage: %v", err)
	}
	if res.SuggestedProfessional != triage.ProfessionalNurse || res.Severity != triage.SeverityMedium {
		t.Errorf("result = %+v", res)
	}

	body := f.bodies[0]
	for _, want := range []string{"Fever, Cough", "1-3 days", "Stated Severity: low", "application/json", "suggestedProfessional"} {
		if !strings.Contains(body, want) {
			t.Errorf("request body missing %q: %s", want, body)
		}
	}
}

func TestGeminiPerformTriageParseFailure(t *testing.T) {
	c := newTestClient(t, &fakeGemini{text: "not json at all"})

	_, err := c.PerformTriage(context.Background(), triage.SymptomReport{Symptoms: []string{"Rash"}})
	if err == nil || !strings.Contains(err.Error(), triage.ErrParse.Error()) {
		t.Fatalf("err = %v, want parse failure", err)
	}
}

func TestGeminiRequestFailure(t *testing.T) {
	c := newTestClient(t, &fakeGemini{status: http.StatusServiceUnavailable})

	if _, err := c.PerformTriage(context.Background(), triage.SymptomReport{}); err == nil {
		t.Fatal("expected request failure")
	}
	if _, err := c.GenerateSummary(context.Background(), "PATIENT: hi"); err == nil {
		t.Fatal("expected request failure")
	}
}

func TestGeminiGenerateSummary(t *testing.T) {
	f := &fakeGemini{text: "Patient greeted the nurse."}
	c := newTestClient(t, f)

	got, err := c.GenerateSummary(context.Background(), "PATIENT: hi\nNURSE: hello")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Patient greeted the nurse." {
		t.Errorf("summary = %q", got)
	}
	if !strings.Contains(f.bodies[0], "medical scribe") {
		t.Errorf("system instruction not sent: %s", f.bodies[0])
	}
	if !strings.Contains(f.bodies[0], `PATIENT: hi\nNURSE: hello`) {
		t.Errorf("transcript not sent verbatim: %s", f.bodies[0])
	}
}

func TestGeminiGenerateSummaryEmptyText(t *testing.T) {
	c := newTestClient(t, &fakeGemini{})

	got, err := c.GenerateSummary(context.Background(), "PATIENT: hi")
	if err != nil {
		t.Fatal(err)
	}
	if got != SummaryUnavailable {
		t.Errorf("summary = %q, want fallback", got)
	}
}

func TestMockTriageRules(t *testing.T) {
	m := NewMockClient()
	tests := []struct {
		name   string
		report triage.SymptomReport
		want   triage.Professional
	}{
		{"red flag", triage.SymptomReport{Symptoms: []string{"Cough", "Chest Pain"}, Severity: triage.SeverityLow}, triage.ProfessionalER},
		{"high severity", triage.SymptomReport{Symptoms: []string{"Fever"}, Severity: triage.SeverityHigh, Duration: "1-3 days"}, triage.ProfessionalDoctor},
		{"long duration", triage.SymptomReport{Symptoms: []string{"Rash"}, Severity: triage.SeverityLow, Duration: "More than a week"}, triage.ProfessionalDoctor},
		{"mild", triage.SymptomReport{Symptoms: []string{"Sore Throat"}, Severity: triage.SeverityLow, Duration: "1-3 days"}, triage.ProfessionalNurse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := m.PerformTriage(context.Background(), tt.report)
			if err != nil {
				t.Fatal(err)
			}
			if res.SuggestedProfessional != tt.want {
				t.Errorf("professional = %s, want %s", res.SuggestedProfessional, tt.want)
			}
			if len(res.MissingFields()) != 0 {
				t.Errorf("mock result is incomplete: %v", res.MissingFields())
			}
		})
	}
}

func TestMockSummary(t *testing.T) {
	got, _ := NewMockClient().GenerateSummary(context.Background(), "NURSE: hello\nPATIENT: my head hurts")
	if !strings.Contains(got, "my head hurts") {
		t.Errorf("summary = %q", got)
	}
	if empty, _ := NewMockClient().GenerateSummary(context.Background(), ""); empty != SummaryUnavailable {
		t.Errorf("empty transcript summary = %q", empty)
	}
}
