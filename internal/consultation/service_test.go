package consultation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"afyacal/internal/platform/logging"
)

type recordingReports struct {
	mu        sync.Mutex
	summaries []string
	err       error
}

func (r *recordingReports) SendSummaryReport(_ context.Context, _ Session, summary string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries = append(r.summaries, summary)
	return r.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []any
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// gatedRepo holds the first save of an active session until release closes.
type gatedRepo struct {
	Repository
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedRepo(inner Repository) *gatedRepo {
	return &gatedRepo{Repository: inner, entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedRepo) Save(ctx context.Context, sess *Session) error {
	if sess.Status == StatusActive {
		held := false
		g.once.Do(func() { held = true })
		if held {
			close(g.entered)
			<-g.release
		}
	}
	return g.Repository.Save(ctx, sess)
}

type serviceFixture struct {
	svc     *Service
	repo    Repository
	timers  *fakeTimers
	sum     *fakeSummarizer
	reports *recordingReports
	pub     *recordingPublisher
	now     time.Time
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		repo:    NewMemoryRepository(),
		timers:  &fakeTimers{},
		sum:     &fakeSummarizer{summary: "Follow up in two days."},
		reports: &recordingReports{},
		pub:     &recordingPublisher{},
		now:     time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	cfg := RoomConfig{
		AfterFunc: f.timers.AfterFunc,
		Now:       func() time.Time { return f.now },
	}
	f.svc = NewService(f.repo, f.sum, f.reports, f.pub, cfg, logging.Discard())
	return f
}

func (f *serviceFixture) start(t *testing.T, role Role, modality Type) *Session {
	t.Helper()
	sess, err := f.svc.Start(context.Background(), StartRequest{
		PatientID:      "patient-7",
		Professional:   role,
		Modality:       modality,
		Recommendation: "Rest and fluids",
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return sess
}

func (f *serviceFixture) stored(t *testing.T, sess *Session) *Session {
	t.Helper()
	got, err := f.repo.GetByID(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	return got
}

func TestServiceStartValidation(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Start(ctx, StartRequest{Professional: RoleAdmin}); !errors.Is(err, ErrUnknownProfessional) {
		t.Errorf("admin err = %v", err)
	}
	if _, err := f.svc.Start(ctx, StartRequest{Professional: RoleDoctor, Modality: "HOLOGRAM"}); !errors.Is(err, ErrInvalidModality) {
		t.Errorf("modality err = %v", err)
	}

	sess := f.start(t, RoleDoctor, "")
	if sess.Type != TypeChat || sess.ProfessionalID != "prof-doctor" || sess.Status != StatusPending {
		t.Errorf("session = %+v", sess)
	}
}

func TestServiceLifecycle(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	sess := f.start(t, RoleNurse, TypeChat)

	if _, err := f.svc.SendMessage(ctx, sess.ID, "I have a fever"); err != nil {
		t.Fatal(err)
	}
	if got := f.stored(t, sess).Status; got != StatusActive {
		t.Errorf("status after first message = %s, want active", got)
	}

	f.timers.fire()
	view, err := f.svc.Get(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(view.Messages) != 3 {
		t.Errorf("messages = %d, want greeting, message and reply", len(view.Messages))
	}

	summary, err := f.svc.End(ctx, sess.ID)
	if err != nil || summary != "Follow up in two days." {
		t.Fatalf("End = %q, %v", summary, err)
	}

	stored := f.stored(t, sess)
	if stored.Status != StatusCompleted || stored.Notes != summary {
		t.Errorf("stored = %+v", stored)
	}
	if len(f.reports.summaries) != 1 {
		t.Errorf("reports sent = %d, want 1", len(f.reports.summaries))
	}
	if len(f.pub.events) != 1 {
		t.Fatalf("events = %d, want 1", len(f.pub.events))
	}
	if ev := f.pub.events[0].(EndedEvent); ev.Type != "consultation.ended" || !ev.SummaryAvailable {
		t.Errorf("event = %+v", ev)
	}
	if f.svc.Len() != 0 {
		t.Error("room kept after end")
	}

	if _, err := f.svc.End(ctx, sess.ID); !errors.Is(err, ErrSessionEnded) {
		t.Errorf("second End err = %v", err)
	}
	if _, err := f.svc.SendMessage(ctx, sess.ID, "hello?"); !errors.Is(err, ErrSessionEnded) {
		t.Errorf("send after end err = %v", err)
	}

	view, err = f.svc.Get(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(view.Messages) != 0 || view.Session.Status != StatusCompleted {
		t.Errorf("ended view = %+v", view)
	}
}

func TestServiceEndSwallowsSummaryFailure(t *testing.T) {
	f := newServiceFixture(t)
	f.sum.err = errors.New("quota exceeded")
	sess := f.start(t, RoleDoctor, TypeChat)

	summary, err := f.svc.End(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("End err = %v, want nil", err)
	}
	if summary != "" {
		t.Errorf("summary = %q, want empty", summary)
	}
	if got := f.stored(t, sess).Status; got != StatusCompleted {
		t.Errorf("status = %s, want completed", got)
	}
	if len(f.reports.summaries) != 0 {
		t.Error("report sent without a summary")
	}
	if ev := f.pub.events[0].(EndedEvent); ev.SummaryAvailable {
		t.Error("event claims a summary")
	}
}

func TestServiceToggleCallActivates(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	sess := f.start(t, RoleNurse, TypeAudio)

	state, err := f.svc.ToggleCall(ctx, sess.ID)
	if err != nil || state != CallConnecting {
		t.Fatalf("ToggleCall = %s, %v", state, err)
	}
	if got := f.stored(t, sess).Status; got != StatusActive {
		t.Errorf("status = %s, want active", got)
	}

	f.timers.fire()
	view, _ := f.svc.Get(ctx, sess.ID)
	if view.CallState != CallActive {
		t.Errorf("call state = %s, want active", view.CallState)
	}
}

func TestServiceEndWinsOverSlowActivationSave(t *testing.T) {
	f := newServiceFixture(t)
	gate := newGatedRepo(f.repo)
	f.svc = NewService(gate, f.sum, f.reports, f.pub, f.svc.roomCfg, logging.Discard())
	ctx := context.Background()
	sess := f.start(t, RoleNurse, TypeChat)

	sent := make(chan error, 1)
	go func() {
		_, err := f.svc.SendMessage(ctx, sess.ID, "I have a fever")
		sent <- err
	}()
	<-gate.entered

	ended := make(chan error, 1)
	go func() {
		_, err := f.svc.End(ctx, sess.ID)
		ended <- err
	}()
	// The room leaves the live set before its final save.
	deadline := time.Now().Add(2 * time.Second)
	for f.svc.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("End did not close the room")
		}
		time.Sleep(time.Millisecond)
	}
	close(gate.release)

	if err := <-sent; err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if err := <-ended; err != nil {
		t.Fatalf("End: %v", err)
	}

	stored := f.stored(t, sess)
	if stored.Status != StatusCompleted || stored.Notes != "Follow up in two days." {
		t.Errorf("stored = %s, notes %q; want completed with summary", stored.Status, stored.Notes)
	}
}

func TestServiceUnknownSession(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	id := uuid.New()

	if _, err := f.svc.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get err = %v", err)
	}
	if _, err := f.svc.End(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("End err = %v", err)
	}
}

func TestServiceSweep(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	idle := f.start(t, RoleNurse, TypeVideo)

	f.now = f.now.Add(20 * time.Minute)
	busy := f.start(t, RoleDoctor, TypeChat)
	if _, err := f.svc.SendMessage(ctx, busy.ID, "still here"); err != nil {
		t.Fatal(err)
	}

	f.now = f.now.Add(15 * time.Minute)
	if n := f.svc.Sweep(ctx, 30*time.Minute); n != 1 {
		t.Fatalf("swept = %d, want 1", n)
	}

	if got := f.stored(t, idle).Status; got != StatusCancelled {
		t.Errorf("idle status = %s, want cancelled", got)
	}
	if got := f.stored(t, busy).Status; got != StatusActive {
		t.Errorf("busy status = %s, want active", got)
	}
	if f.svc.Len() != 1 {
		t.Errorf("open rooms = %d, want 1", f.svc.Len())
	}
	if len(f.sum.transcripts) != 0 || len(f.pub.events) != 0 {
		t.Error("sweep must not summarize or publish")
	}

	sessions, err := f.svc.List(ctx, StatusCancelled)
	if err != nil || len(sessions) != 1 || sessions[0].ID != idle.ID {
		t.Errorf("List(cancelled) = %v, %v", sessions, err)
	}
}
