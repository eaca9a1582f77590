package agent

import (
	"google.golang.org/genai"

	"afyacal/internal/triage"
)

const summarySystemInstruction = "You are a professional medical scribe. Summarize the conversation clearly for a patient's record. Focus on symptoms discussed, advice given, and follow-up actions."

// SummaryUnavailable is returned when the model answers with no text.
const SummaryUnavailable = "Summary unavailable."

func buildSummaryPrompt(transcript string) string {
	return "Summarize this medical consultation and provide key takeaways and next steps: \n\n" + transcript
}

// triageSchema mirrors triage.ResponseFields: an object of required strings.
func triageSchema() *genai.Schema {
	props := make(map[string]*genai.Schema, len(triage.ResponseFields))
	required := make([]string, 0, len(triage.ResponseFields))
	for _, f := range triage.ResponseFields {
		props[f.Name] = &genai.Schema{
			Type:        genai.TypeString,
			Description: f.Description,
		}
		required = append(required, f.Name)
	}
	return &genai.Schema{
		Type:             genai.TypeObject,
		Properties:       props,
		Required:         required,
		PropertyOrdering: required,
	}
}
