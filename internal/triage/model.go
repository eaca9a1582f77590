package triage

import (
	"time"

	"github.com/google/uuid"
)

type Severity string

const (
	SeverityLow       Severity = "low"
	SeverityMedium    Severity = "medium"
	SeverityHigh      Severity = "high"
	SeverityEmergency Severity = "emergency"
)

// Professional is who the patient should talk to next.
type Professional string

const (
	ProfessionalNurse  Professional = "NURSE"
	ProfessionalDoctor Professional = "DOCTOR"
	ProfessionalER     Professional = "ER"
)

// SymptomReport is what the patient tells us during intake.
type SymptomReport struct {
	Symptoms    []string `json:"symptoms"`
	Severity    Severity `json:"severity"`
	Duration    string   `json:"duration"`
	Description string   `json:"description"`
}

// Clone returns a copy that shares no backing array with r.
func (r SymptomReport) Clone() SymptomReport {
	out := r
	out.Symptoms = append([]string(nil), r.Symptoms...)
	return out
}

// Result is the AI assessment of a single SymptomReport. Fields may be empty
// when the model did not return them; see MissingFields.
type Result struct {
	Severity              Severity     `json:"severity"`
	Recommendation        string       `json:"recommendation"`
	SuggestedProfessional Professional `json:"suggestedProfessional"`
	Reasoning             string       `json:"reasoning"`
}

// MissingFields lists the required response fields that came back empty.
func (r Result) MissingFields() []string {
	var missing []string
	if r.Severity == "" {
		missing = append(missing, "severity")
	}
	if r.Recommendation == "" {
		missing = append(missing, "recommendation")
	}
	if r.SuggestedProfessional == "" {
		missing = append(missing, "suggestedProfessional")
	}
	if r.Reasoning == "" {
		missing = append(missing, "reasoning")
	}
	return missing
}

// Record is the audit entry kept for every successful triage.
type Record struct {
	ID        uuid.UUID     `json:"id" db:"id"`
	Report    SymptomReport `json:"report" db:"report"`
	Result    Result        `json:"result" db:"result"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}
