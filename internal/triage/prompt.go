package triage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrParse is returned when the model text is present but not a JSON object.
var ErrParse = errors.New("triage response is not valid JSON")

// Field describes one property of the structured triage response.
type Field struct {
	Name        string
	Description string
}

// ResponseFields is the response schema: every field is a required string.
var ResponseFields = []Field{
	{Name: "severity", Description: "Final assessed severity: low, medium, high, or emergency"},
	{Name: "recommendation", Description: "A short, actionable instruction for the patient."},
	{Name: "suggestedProfessional", Description: "Who should they talk to? 'NURSE', 'DOCTOR', or 'ER'"},
	{Name: "reasoning", Description: "Why this recommendation was made."},
}

// BuildPrompt embeds all four report fields verbatim.
func BuildPrompt(r SymptomReport) string {
	var b strings.Builder
	b.WriteString("Analyze these symptoms and provide a triage recommendation:\n")
	fmt.Fprintf(&b, "Symptoms: %s\n", strings.Join(r.Symptoms, ", "))
	fmt.Fprintf(&b, "Duration: %s\n", r.Duration)
	fmt.Fprintf(&b, "Description: %s\n", r.Description)
	fmt.Fprintf(&b, "Stated Severity: %s", r.Severity)
	return b.String()
}

// ParseResult decodes the model text. Empty text decodes as an empty object,
// so the caller gets a Result with every field missing rather than an error.
func ParseResult(text string) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		text = "{}"
	}

	var res Result
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return res, nil
}
