package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"afyacal/internal/consultation"
	"afyacal/internal/triage"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")).
			MarginBottom(1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(1, 2)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	emergencyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("231")).
			Background(lipgloss.Color("160")).
			Padding(0, 1)

	patientStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	professionalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("35"))
)

var severityColors = map[triage.Severity]lipgloss.Color{
	triage.SeverityLow:       "35",
	triage.SeverityMedium:    "214",
	triage.SeverityHigh:      "202",
	triage.SeverityEmergency: "160",
}

func severityBadge(s triage.Severity) string {
	color, ok := severityColors[s]
	if !ok {
		color = "244"
	}
	label := strings.ToUpper(string(s))
	if label == "" {
		label = "UNKNOWN"
	}
	return lipgloss.NewStyle().Bold(true).Foreground(color).Render(label)
}

func field(label, value string) string {
	if value == "" {
		value = "-"
	}
	return labelStyle.Render(label+": ") + valueStyle.Render(value)
}

// renderResult draws the triage result panel shown after a successful submit.
func renderResult(res triage.Result) string {
	lines := []string{
		titleStyle.Render("Triage result"),
		labelStyle.Render("Severity: ") + severityBadge(res.Severity),
		field("Suggested professional", string(res.SuggestedProfessional)),
		"",
		field("Recommendation", res.Recommendation),
		"",
		labelStyle.Render("Reasoning"),
		res.Reasoning,
	}
	if missing := res.MissingFields(); len(missing) > 0 {
		lines = append(lines, "", warnStyle.Render("Incomplete response, missing: "+strings.Join(missing, ", ")))
	}

	out := panelStyle.Render(strings.Join(lines, "\n"))
	if res.SuggestedProfessional == triage.ProfessionalER || res.Severity == triage.SeverityEmergency {
		out += "\n" + emergencyStyle.Render("Call emergency services or go to the nearest emergency room now.")
	}
	return out
}

func renderMessage(m consultation.Message) string {
	style := professionalStyle
	if m.Role == consultation.RolePatient {
		style = patientStyle
	}
	return fmt.Sprintf("%s %s %s",
		labelStyle.Render(m.Timestamp.Format("15:04")),
		style.Bold(true).Render(string(m.Role)+":"),
		m.Text,
	)
}

func renderSummary(summary string) string {
	if summary == "" {
		summary = warnStyle.Render("The summary could not be generated.")
	}
	return panelStyle.Render(titleStyle.Render("Consultation summary") + "\n" + summary)
}
