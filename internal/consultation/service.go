package consultation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnknownProfessional = errors.New("unknown professional")
	ErrInvalidModality     = errors.New("invalid consultation modality")
)

// ReportSender delivers the end-of-session summary to the care team.
type ReportSender interface {
	SendSummaryReport(ctx context.Context, s Session, summary string) error
}

// EventPublisher emits lifecycle events. A nil publisher disables events.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// EndedEvent is published once per session that ended normally.
type EndedEvent struct {
	Type             string    `json:"type"`
	SessionID        string    `json:"session_id"`
	PatientID        string    `json:"patient_id"`
	ProfessionalID   string    `json:"professional_id"`
	Modality         Type      `json:"modality"`
	SummaryAvailable bool      `json:"summary_available"`
	At               time.Time `json:"at"`
}

// StartRequest opens a room with one of the fixed professionals.
type StartRequest struct {
	PatientID      string
	Professional   Role
	Modality       Type
	Recommendation string
}

// View is a live snapshot of a session.
type View struct {
	Session   Session   `json:"session"`
	Messages  []Message `json:"messages"`
	CallState CallState `json:"callState"`
}

type liveRoom struct {
	room    *Room
	session Session
	touched time.Time

	// saveMu orders the room's writes to the repository. Once closed is set
	// the final status has been saved and later activity writes are dropped.
	saveMu sync.Mutex
	closed bool
}

// persist saves sess unless the room already stored its final status.
// final marks the room closed so no later write can overwrite sess.
func (lr *liveRoom) persist(ctx context.Context, repo Repository, sess *Session, final bool) error {
	lr.saveMu.Lock()
	defer lr.saveMu.Unlock()
	if lr.closed {
		return nil
	}
	if final {
		lr.closed = true
	}
	return repo.Save(ctx, sess)
}

type Service struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]*liveRoom

	repo       Repository
	summarizer Summarizer
	reports    ReportSender
	publisher  EventPublisher
	logger     *logrus.Logger
	roomCfg    RoomConfig
	now        func() time.Time
}

// NewService wires the room manager. reports and publisher may be nil.
func NewService(repo Repository, summarizer Summarizer, reports ReportSender, publisher EventPublisher, cfg RoomConfig, logger *logrus.Logger) *Service {
	cfg = cfg.withDefaults()
	return &Service{
		rooms:      make(map[uuid.UUID]*liveRoom),
		repo:       repo,
		summarizer: summarizer,
		reports:    reports,
		publisher:  publisher,
		logger:     logger,
		roomCfg:    cfg,
		now:        cfg.Now,
	}
}

func validModality(t Type) bool {
	switch t {
	case TypeChat, TypeAudio, TypeVideo:
		return true
	}
	return false
}

func (s *Service) Start(ctx context.Context, req StartRequest) (*Session, error) {
	prof, ok := ProfessionalFor(req.Professional)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfessional, req.Professional)
	}
	if req.Modality == "" {
		req.Modality = TypeChat
	}
	if !validModality(req.Modality) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidModality, req.Modality)
	}

	sess := Session{
		ID:             uuid.New(),
		PatientID:      req.PatientID,
		ProfessionalID: prof.ID,
		StartTime:      s.now(),
		Type:           req.Modality,
		Status:         StatusPending,
		Recommendation: req.Recommendation,
	}
	if sess.PatientID == "" {
		sess.PatientID = patientSenderID
	}
	if err := s.repo.Save(ctx, &sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	id := sess.ID
	room := NewRoom(prof, req.Modality, s.summarizer, s.roomCfg, func(summary string, err error) {
		s.finish(id, summary, err)
	})

	s.mu.Lock()
	s.rooms[id] = &liveRoom{room: room, session: sess, touched: s.now()}
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"Function":     "Start",
		"SessionID":    id,
		"Professional": prof.ID,
		"Modality":     req.Modality,
	}).Info("Consultation opened")

	return &sess, nil
}

func (s *Service) live(id uuid.UUID) (*liveRoom, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lr, ok := s.rooms[id]
	return lr, ok
}

// closedErr tells a missing session apart from one that already ended.
func (s *Service) closedErr(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return ErrSessionEnded
}

// markActive records patient activity and moves a pending session to active.
func (s *Service) markActive(ctx context.Context, id uuid.UUID) {
	s.mu.Lock()
	lr, ok := s.rooms[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	lr.touched = s.now()
	if lr.session.Status != StatusPending {
		s.mu.Unlock()
		return
	}
	lr.session.Status = StatusActive
	sess := lr.session
	s.mu.Unlock()

	if err := lr.persist(ctx, s.repo, &sess, false); err != nil {
		s.logger.WithFields(logrus.Fields{
			"Function":  "markActive",
			"SessionID": id,
			"Error":     err,
		}).Error("Failed to update session status")
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*View, error) {
	if lr, ok := s.live(id); ok {
		s.mu.Lock()
		sess := lr.session
		s.mu.Unlock()
		return &View{
			Session:   sess,
			Messages:  lr.room.Messages(),
			CallState: lr.room.CallState(),
		}, nil
	}

	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &View{Session: *sess, Messages: []Message{}, CallState: CallIdle}, nil
}

func (s *Service) SendMessage(ctx context.Context, id uuid.UUID, text string) (Message, error) {
	lr, ok := s.live(id)
	if !ok {
		return Message{}, s.closedErr(ctx, id)
	}
	msg, err := lr.room.Send(text)
	if err != nil {
		return Message{}, err
	}
	s.markActive(ctx, id)
	return msg, nil
}

func (s *Service) ToggleCall(ctx context.Context, id uuid.UUID) (CallState, error) {
	lr, ok := s.live(id)
	if !ok {
		return CallIdle, s.closedErr(ctx, id)
	}
	state, err := lr.room.ToggleCall()
	if err != nil {
		return CallIdle, err
	}
	if state != CallIdle {
		s.markActive(ctx, id)
	}
	return state, nil
}

// End closes the room and returns the summary. A failed summary is logged and
// the session still ends with an empty summary.
func (s *Service) End(ctx context.Context, id uuid.UUID) (string, error) {
	lr, ok := s.live(id)
	if !ok {
		return "", s.closedErr(ctx, id)
	}

	summary, err := lr.room.End(ctx)
	if err != nil {
		if errors.Is(err, ErrSessionEnded) {
			return "", err
		}
		s.logger.WithFields(logrus.Fields{
			"Function":  "End",
			"SessionID": id,
			"Error":     err,
		}).Warn("Summary generation failed")
		return "", nil
	}
	return summary, nil
}

// finish is the room's end callback. It runs once per room.
func (s *Service) finish(id uuid.UUID, summary string, summaryErr error) {
	s.mu.Lock()
	lr, ok := s.rooms[id]
	delete(s.rooms, id)
	var sess Session
	if ok {
		sess = lr.session
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	log := s.logger.WithFields(logrus.Fields{"Function": "finish", "SessionID": id})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sess.Status = StatusCompleted
	sess.Notes = summary
	if err := lr.persist(ctx, s.repo, &sess, true); err != nil {
		log.WithError(err).Error("Failed to persist ended session")
	}

	if s.reports != nil && summaryErr == nil {
		if err := s.reports.SendSummaryReport(ctx, sess, summary); err != nil {
			log.WithError(err).Error("Failed to send summary report")
		}
	}

	if s.publisher != nil {
		event := EndedEvent{
			Type:             "consultation.ended",
			SessionID:        id.String(),
			PatientID:        sess.PatientID,
			ProfessionalID:   sess.ProfessionalID,
			Modality:         sess.Type,
			SummaryAvailable: summaryErr == nil,
			At:               s.now(),
		}
		if err := s.publisher.Publish(ctx, id.String(), event); err != nil {
			log.WithError(err).Error("Failed to publish consultation event")
		}
	}

	log.Info("Consultation ended")
}

func (s *Service) List(ctx context.Context, status Status) ([]Session, error) {
	sessions, err := s.repo.List(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// Sweep cancels rooms without patient activity for longer than ttl and
// returns how many were cancelled.
func (s *Service) Sweep(ctx context.Context, ttl time.Duration) int {
	cutoff := s.now().Add(-ttl)

	s.mu.Lock()
	stale := make(map[uuid.UUID]*liveRoom)
	for id, lr := range s.rooms {
		if lr.touched.Before(cutoff) {
			stale[id] = lr
		}
	}
	s.mu.Unlock()

	n := 0
	for id, lr := range stale {
		// A room ending concurrently is left to its end callback.
		if !lr.room.Abort() {
			continue
		}
		n++

		s.mu.Lock()
		delete(s.rooms, id)
		sess := lr.session
		s.mu.Unlock()

		sess.Status = StatusCancelled
		if err := lr.persist(ctx, s.repo, &sess, true); err != nil {
			s.logger.WithFields(logrus.Fields{
				"Function":  "Sweep",
				"SessionID": id,
				"Error":     err,
			}).Error("Failed to cancel session")
		}
	}
	return n
}

// Len reports the number of open rooms.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}
