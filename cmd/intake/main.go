// Command intake runs the symptom checker in the terminal and, when triage
// suggests a nurse or doctor, opens a chat consultation with them.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/sirupsen/logrus"

	"afyacal/internal/agent"
	"afyacal/internal/config"
	"afyacal/internal/consultation"
	"afyacal/internal/intake"
	"afyacal/internal/platform/logging"
	"afyacal/internal/triage"
)

const (
	actionNext   = "next"
	actionBack   = "back"
	actionCancel = "cancel"
	actionSubmit = "submit"
)

var errCancelled = errors.New("intake cancelled")

type aiClient interface {
	triage.AIClient
	consultation.Summarizer
}

func main() {
	config.LoadEnv()
	cfg := config.Load()

	// Only problems reach the terminal; the forms own stdout.
	logger := logging.New("warn", "text")
	logger.SetOutput(os.Stderr)

	ctx := context.Background()
	ai, err := newAIClient(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	triageSvc := triage.NewService(ai, triage.NewMemoryRepository(), nil, logger)

	res, err := runIntake(ctx, intake.NewFlow(triageSvc, nil, nil))
	if err != nil {
		if errors.Is(err, errCancelled) || errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("Intake cancelled.")
			return
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	fmt.Println(renderResult(res))

	role := consultation.Role(res.SuggestedProfessional)
	prof, ok := consultation.ProfessionalFor(role)
	if !ok {
		return
	}

	start := true
	if err := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(fmt.Sprintf("Start a chat with %s?", prof.DisplayName)).
			Affirmative("Start").
			Negative("Not now").
			Value(&start),
	)).Run(); err != nil || !start {
		return
	}

	svc := consultation.NewService(consultation.NewMemoryRepository(), ai, nil, nil, consultation.RoomConfig{
		ConnectDelay: cfg.ConnectDelay,
		ReplyDelay:   cfg.ReplyDelay,
	}, logger)
	if err := runChat(ctx, svc, role, res.Recommendation, cfg.ReplyDelay); err != nil && !errors.Is(err, huh.ErrUserAborted) {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newAIClient(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (aiClient, error) {
	if cfg.UseMockAI {
		return agent.NewMockClient(), nil
	}
	client, err := agent.NewGeminiClient(ctx, agent.GeminiConfig{
		APIKey: cfg.APIKey,
		Model:  cfg.ModelName,
	}, logger)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// runIntake walks the flow one step per form until it is submitted or
// cancelled.
func runIntake(ctx context.Context, flow *intake.Flow) (triage.Result, error) {
	for {
		var err error
		switch flow.Step() {
		case intake.FirstStep:
			err = symptomsStep(flow)
		case 2:
			err = detailsStep(flow)
		case intake.LastStep:
			var res triage.Result
			var done bool
			res, done, err = describeStep(ctx, flow)
			if done {
				return res, nil
			}
		}
		if err != nil {
			return triage.Result{}, err
		}
	}
}

func stepTitle(step int, title string) string {
	return fmt.Sprintf("Step %d of %d: %s", step, intake.LastStep, title)
}

func actionSelect(action *string, options ...huh.Option[string]) *huh.Select[string] {
	return huh.NewSelect[string]().
		Title("Continue?").
		Options(options...).
		Value(action)
}

// move applies the chosen navigation action.
func move(flow *intake.Flow, action string) error {
	switch action {
	case actionCancel:
		_ = flow.Cancel()
		return errCancelled
	case actionBack:
		if err := flow.Back(); err != nil {
			return err
		}
		if flow.State().Closed {
			return errCancelled
		}
	case actionNext:
		if err := flow.Next(); err != nil {
			if errors.Is(err, intake.ErrStepIncomplete) {
				fmt.Println(warnStyle.Render("Select at least one symptom to continue."))
				return nil
			}
			return err
		}
	}
	return nil
}

func symptomsStep(flow *intake.Flow) error {
	selected := flow.Report().Symptoms
	action := actionNext

	err := huh.NewForm(huh.NewGroup(
		huh.NewMultiSelect[string]().
			Title(stepTitle(1, "What symptoms are you experiencing?")).
			Options(huh.NewOptions(intake.SymptomOptions...)...).
			Value(&selected),
		actionSelect(&action,
			huh.NewOption("Next", actionNext),
			huh.NewOption("Cancel", actionCancel),
		),
	)).Run()
	if err != nil {
		return err
	}

	if err := syncSymptoms(flow, selected); err != nil {
		return err
	}
	return move(flow, action)
}

// syncSymptoms toggles the flow's symptoms until they match selected.
func syncSymptoms(flow *intake.Flow, selected []string) error {
	current := flow.Report().Symptoms
	for _, tag := range intake.SymptomOptions {
		if slices.Contains(selected, tag) != slices.Contains(current, tag) {
			if err := flow.ToggleSymptom(tag); err != nil {
				return err
			}
		}
	}
	return nil
}

func detailsStep(flow *intake.Flow) error {
	report := flow.Report()
	duration := report.Duration
	severity := report.Severity
	action := actionNext

	err := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title(stepTitle(2, "How long have you had these symptoms?")).
			Options(huh.NewOptions(intake.DurationOptions...)...).
			Value(&duration),
		huh.NewSelect[triage.Severity]().
			Title("How severe are they?").
			Options(huh.NewOptions(intake.SeverityOptions...)...).
			Value(&severity),
		actionSelect(&action,
			huh.NewOption("Next", actionNext),
			huh.NewOption("Back", actionBack),
			huh.NewOption("Cancel", actionCancel),
		),
	)).Run()
	if err != nil {
		return err
	}

	if err := flow.SetDuration(duration); err != nil {
		return err
	}
	if err := flow.SetSeverity(severity); err != nil {
		return err
	}
	return move(flow, action)
}

func describeStep(ctx context.Context, flow *intake.Flow) (triage.Result, bool, error) {
	description := flow.Report().Description
	action := actionSubmit

	err := huh.NewForm(huh.NewGroup(
		huh.NewText().
			Title(stepTitle(3, "Anything else we should know?")).
			Placeholder("Describe your symptoms in your own words").
			CharLimit(1000).
			Value(&description),
		actionSelect(&action,
			huh.NewOption("Get recommendation", actionSubmit),
			huh.NewOption("Back", actionBack),
			huh.NewOption("Cancel", actionCancel),
		),
	)).Run()
	if err != nil {
		return triage.Result{}, false, err
	}

	if err := flow.SetDescription(description); err != nil {
		return triage.Result{}, false, err
	}
	if action != actionSubmit {
		return triage.Result{}, false, move(flow, action)
	}

	fmt.Println(labelStyle.Render("Analyzing your symptoms..."))
	res, err := flow.Submit(ctx)
	if err != nil {
		// The flow stays on the last step so the patient can retry.
		fmt.Println(warnStyle.Render("Something went wrong analyzing your symptoms. Please try again or contact a professional."))
		return triage.Result{}, false, nil
	}
	return res, true, nil
}

// runChat is a line-based consultation: each form submits one message.
// "/call" toggles the call indicator and "/end" ends the session.
func runChat(ctx context.Context, svc *consultation.Service, role consultation.Role, recommendation string, replyDelay time.Duration) error {
	sess, err := svc.Start(ctx, consultation.StartRequest{
		Professional:   role,
		Modality:       consultation.TypeChat,
		Recommendation: recommendation,
	})
	if err != nil {
		return err
	}

	shown := 0
	printNew := func() error {
		view, err := svc.Get(ctx, sess.ID)
		if err != nil {
			return err
		}
		for _, m := range view.Messages[shown:] {
			fmt.Println(renderMessage(m))
		}
		shown = len(view.Messages)
		return nil
	}

	for {
		if err := printNew(); err != nil {
			return err
		}

		var text string
		if err := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("Message").
				Placeholder("Type a message, /call to toggle the call, /end to finish").
				Value(&text),
		)).Run(); err != nil {
			return err
		}

		switch strings.TrimSpace(text) {
		case "":
			continue
		case "/end":
			summary, err := svc.End(ctx, sess.ID)
			if err != nil {
				return err
			}
			fmt.Println(renderSummary(summary))
			return nil
		case "/call":
			state, err := svc.ToggleCall(ctx, sess.ID)
			if err != nil {
				return err
			}
			fmt.Println(labelStyle.Render("Call: " + string(state)))
		default:
			if _, err := svc.SendMessage(ctx, sess.ID, text); err != nil {
				return err
			}
			// Let the scripted reply land before redrawing.
			time.Sleep(replyDelay + 100*time.Millisecond)
		}
	}
}
