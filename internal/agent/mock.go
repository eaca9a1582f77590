package agent

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"afyacal/internal/triage"
)

// MockClient answers without any network access. It is used in local mode
// when no API key is configured.
type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

var redFlagSymptoms = []string{"Chest Pain", "Shortness of Breath"}

// PerformTriage applies a few fixed rules instead of calling a model.
func (m *MockClient) PerformTriage(_ context.Context, r triage.SymptomReport) (triage.Result, error) {
	for _, s := range r.Symptoms {
		if slices.Contains(redFlagSymptoms, s) {
			return triage.Result{
				Severity:              triage.SeverityEmergency,
				Recommendation:        "Go to the nearest emergency room or call emergency services now.",
				SuggestedProfessional: triage.ProfessionalER,
				Reasoning:             fmt.Sprintf("%s can signal a life-threatening condition.", s),
			}, nil
		}
	}

	if r.Severity == triage.SeverityHigh || r.Duration == "More than a week" {
		return triage.Result{
			Severity:              triage.SeverityHigh,
			Recommendation:        "Book a consultation with a doctor today.",
			SuggestedProfessional: triage.ProfessionalDoctor,
			Reasoning:             fmt.Sprintf("Reported %s severity lasting %s.", r.Severity, r.Duration),
		}, nil
	}

	return triage.Result{
		Severity:              r.Severity,
		Recommendation:        "Rest, stay hydrated and chat with a nurse if symptoms persist.",
		SuggestedProfessional: triage.ProfessionalNurse,
		Reasoning:             fmt.Sprintf("Symptoms (%s) look manageable with nurse guidance.", strings.Join(r.Symptoms, ", ")),
	}, nil
}

// GenerateSummary lists what the patient said.
func (m *MockClient) GenerateSummary(_ context.Context, transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return SummaryUnavailable, nil
	}

	var patient []string
	for _, line := range strings.Split(transcript, "\n") {
		if text, ok := strings.CutPrefix(line, "PATIENT: "); ok {
			patient = append(patient, text)
		}
	}

	var b strings.Builder
	b.WriteString("Consultation summary\n")
	if len(patient) == 0 {
		b.WriteString("- The patient did not describe any symptoms.\n")
	}
	for _, p := range patient {
		fmt.Fprintf(&b, "- Patient: %s\n", p)
	}
	b.WriteString("Follow-up: contact your care team if symptoms worsen.")
	return b.String(), nil
}
