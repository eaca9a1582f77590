package intake

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"afyacal/internal/triage"
)

var (
	ErrFlowClosed     = errors.New("intake flow is closed")
	ErrStepIncomplete = errors.New("current step is incomplete")
	ErrSubmitPending  = errors.New("a submission is already in progress")
	ErrNotFinalStep   = errors.New("submit is only allowed from the last step")
	ErrInvalidOption  = errors.New("value is not one of the allowed options")
)

const (
	FirstStep = 1
	LastStep  = 3
)

var SymptomOptions = []string{
	"Fever", "Cough", "Chest Pain", "Headache",
	"Rash", "Sore Throat", "Nausea", "Shortness of Breath",
}

var DurationOptions = []string{"Less than 24 hours", "1-3 days", "4-7 days", "More than a week"}

// SeverityOptions are the levels a patient may self-report; emergency is only
// ever assessed by triage.
var SeverityOptions = []triage.Severity{triage.SeverityLow, triage.SeverityMedium, triage.SeverityHigh}

const (
	DefaultDuration = "1-3 days"
	DefaultSeverity = triage.SeverityLow
)

// Triager is the triage client the flow submits to.
type Triager interface {
	PerformTriage(ctx context.Context, report triage.SymptomReport) (triage.Result, error)
}

// Flow is the 3-step symptom intake wizard.
type Flow struct {
	mu      sync.Mutex
	step    int
	report  triage.SymptomReport
	loading bool
	closed  bool

	triager    Triager
	onComplete func(triage.Result)
	onCancel   func()
}

// NewFlow starts a flow on step 1 with step-2 defaults already populated.
// Either callback may be nil.
func NewFlow(t Triager, onComplete func(triage.Result), onCancel func()) *Flow {
	return &Flow{
		step: FirstStep,
		report: triage.SymptomReport{
			Symptoms: []string{},
			Severity: DefaultSeverity,
			Duration: DefaultDuration,
		},
		triager:    t,
		onComplete: onComplete,
		onCancel:   onCancel,
	}
}

// State is a point-in-time view of a flow.
type State struct {
	Step       int                  `json:"step"`
	Report     triage.SymptomReport `json:"report"`
	Loading    bool                 `json:"loading"`
	CanAdvance bool                 `json:"canAdvance"`
	Closed     bool                 `json:"closed"`
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return State{
		Step:       f.step,
		Report:     f.report.Clone(),
		Loading:    f.loading,
		CanAdvance: f.canAdvanceLocked(),
		Closed:     f.closed,
	}
}

func (f *Flow) Step() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

func (f *Flow) Report() triage.SymptomReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.report.Clone()
}

func (f *Flow) Loading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loading
}

// CanAdvance reports whether the forward control (next or submit) is enabled.
func (f *Flow) CanAdvance() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canAdvanceLocked()
}

func (f *Flow) canAdvanceLocked() bool {
	if f.closed || f.loading {
		return false
	}
	if f.step == FirstStep && len(f.report.Symptoms) == 0 {
		return false
	}
	return true
}

// ToggleSymptom removes tag if selected, otherwise selects it.
func (f *Flow) ToggleSymptom(tag string) error {
	if !slices.Contains(SymptomOptions, tag) {
		return fmt.Errorf("symptom %q: %w", tag, ErrInvalidOption)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrFlowClosed
	}

	if i := slices.Index(f.report.Symptoms, tag); i >= 0 {
		f.report.Symptoms = slices.Delete(f.report.Symptoms, i, i+1)
	} else {
		f.report.Symptoms = append(f.report.Symptoms, tag)
	}
	return nil
}

func (f *Flow) SetDuration(d string) error {
	if !slices.Contains(DurationOptions, d) {
		return fmt.Errorf("duration %q: %w", d, ErrInvalidOption)
	}
	return f.update(func(r *triage.SymptomReport) { r.Duration = d })
}

func (f *Flow) SetSeverity(s triage.Severity) error {
	if !slices.Contains(SeverityOptions, s) {
		return fmt.Errorf("severity %q: %w", s, ErrInvalidOption)
	}
	return f.update(func(r *triage.SymptomReport) { r.Severity = s })
}

func (f *Flow) SetDescription(text string) error {
	return f.update(func(r *triage.SymptomReport) { r.Description = text })
}

func (f *Flow) update(fn func(r *triage.SymptomReport)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrFlowClosed
	}
	fn(&f.report)
	return nil
}

// Next moves forward one step. It is refused while step 1 has no symptoms and
// is a no-op on the last step.
func (f *Flow) Next() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrFlowClosed
	}
	if !f.canAdvanceLocked() {
		return ErrStepIncomplete
	}
	if f.step < LastStep {
		f.step++
	}
	return nil
}

// Back moves back one step. On step 1 it cancels the intake.
func (f *Flow) Back() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrFlowClosed
	}
	if f.step > FirstStep {
		f.step--
		f.mu.Unlock()
		return nil
	}
	f.mu.Unlock()
	return f.Cancel()
}

// Cancel aborts the intake and discards the accumulated report.
func (f *Flow) Cancel() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrFlowClosed
	}
	f.closed = true
	f.report = triage.SymptomReport{}
	cb := f.onCancel
	f.mu.Unlock()

	if cb != nil {
		cb()
	}
	return nil
}

// Submit sends the report to the triage client. On failure the flow stays on
// the last step so the patient can retry; on success the completion callback
// runs and the flow closes.
func (f *Flow) Submit(ctx context.Context) (triage.Result, error) {
	f.mu.Lock()
	switch {
	case f.closed:
		f.mu.Unlock()
		return triage.Result{}, ErrFlowClosed
	case f.loading:
		f.mu.Unlock()
		return triage.Result{}, ErrSubmitPending
	case f.step != LastStep:
		f.mu.Unlock()
		return triage.Result{}, ErrNotFinalStep
	}
	f.loading = true
	report := f.report.Clone()
	f.mu.Unlock()

	res, err := f.triager.PerformTriage(ctx, report)

	f.mu.Lock()
	f.loading = false
	if f.closed {
		// Cancelled while the request was in flight; the result is dropped.
		f.mu.Unlock()
		return triage.Result{}, ErrFlowClosed
	}
	if err != nil {
		f.mu.Unlock()
		return triage.Result{}, err
	}
	f.closed = true
	cb := f.onComplete
	f.mu.Unlock()

	if cb != nil {
		cb(res)
	}
	return res, nil
}
