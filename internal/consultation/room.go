package consultation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSessionEnded = errors.New("consultation has ended")
	ErrEmptyMessage = errors.New("message text is empty")
)

const (
	patientSenderID = "patient-1"
	scriptedReply   = "I understand. Let's look into that. Are you experiencing any other discomfort or pain in the affected area?"
)

// Summarizer turns a flattened transcript into a summary.
type Summarizer interface {
	GenerateSummary(ctx context.Context, transcript string) (string, error)
}

// RoomConfig holds the timings of a room. Zero values use the defaults.
type RoomConfig struct {
	ConnectDelay time.Duration
	ReplyDelay   time.Duration
	// AfterFunc replaces time.AfterFunc, mostly for tests.
	AfterFunc AfterFunc
	Now       func() time.Time
}

func (c RoomConfig) withDefaults() RoomConfig {
	if c.ConnectDelay == 0 {
		c.ConnectDelay = 2 * time.Second
	}
	if c.ReplyDelay == 0 {
		c.ReplyDelay = 1500 * time.Millisecond
	}
	if c.AfterFunc == nil {
		c.AfterFunc = realAfterFunc
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// EndFunc runs once when the room ends. summary is empty if summarizing
// failed; err carries the failure.
type EndFunc func(summary string, err error)

// Room is one live consultation: an append-only chat plus the call indicator.
type Room struct {
	mu           sync.Mutex
	professional Professional
	messages     []Message
	replies      map[int]Timer
	nextReply    int
	ended        bool

	call       *Call
	summarizer Summarizer
	onEnd      EndFunc
	cfg        RoomConfig
}

// NewRoom opens a room with the professional's greeting. A VIDEO room starts
// with the call connecting.
func NewRoom(p Professional, modality Type, summarizer Summarizer, cfg RoomConfig, onEnd EndFunc) *Room {
	cfg = cfg.withDefaults()
	r := &Room{
		professional: p,
		replies:      make(map[int]Timer),
		summarizer:   summarizer,
		onEnd:        onEnd,
		cfg:          cfg,
	}
	r.call = NewCall(cfg.ConnectDelay, cfg.AfterFunc, nil)

	r.messages = append(r.messages, Message{
		ID:        uuid.NewString(),
		SenderID:  p.ID,
		Role:      p.Role,
		Text:      fmt.Sprintf("Hello! I'm %s. I've reviewed your symptoms. How can I help you today?", p.DisplayName),
		Timestamp: cfg.Now(),
	})

	if modality == TypeVideo {
		r.call.Start()
	}
	return r
}

func (r *Room) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

func (r *Room) CallState() CallState {
	return r.call.State()
}

func (r *Room) Ended() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ended
}

// Send appends a patient message and schedules one scripted reply.
func (r *Room) Send(text string) (Message, error) {
	if strings.TrimSpace(text) == "" {
		return Message{}, ErrEmptyMessage
	}

	r.mu.Lock()
	if r.ended {
		r.mu.Unlock()
		return Message{}, ErrSessionEnded
	}
	msg := Message{
		ID:        uuid.NewString(),
		SenderID:  patientSenderID,
		Role:      RolePatient,
		Text:      text,
		Timestamp: r.cfg.Now(),
	}
	r.messages = append(r.messages, msg)

	r.nextReply++
	id := r.nextReply
	r.replies[id] = r.cfg.AfterFunc(r.cfg.ReplyDelay, func() { r.reply(id) })
	r.mu.Unlock()

	return msg, nil
}

func (r *Room) reply(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.replies, id)
	if r.ended {
		return
	}
	r.messages = append(r.messages, Message{
		ID:        uuid.NewString(),
		SenderID:  r.professional.ID,
		Role:      r.professional.Role,
		Text:      scriptedReply,
		Timestamp: r.cfg.Now(),
	})
}

// ToggleCall flips the call indicator and returns the new state.
func (r *Room) ToggleCall() (CallState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ended {
		return CallIdle, ErrSessionEnded
	}
	return r.call.Toggle(), nil
}

// Transcript flattens the chat to "<ROLE>: <text>" lines.
func (r *Room) Transcript() string {
	return FormatTranscript(r.Messages())
}

func FormatTranscript(msgs []Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Role, m.Text))
	}
	return strings.Join(lines, "\n")
}

// close marks the room ended and stops its timers. It reports false if the
// room was already closed.
func (r *Room) close() (string, bool) {
	r.mu.Lock()
	if r.ended {
		r.mu.Unlock()
		return "", false
	}
	r.ended = true
	for _, t := range r.replies {
		t.Stop()
	}
	r.replies = nil
	transcript := FormatTranscript(r.messages)
	r.mu.Unlock()

	r.call.Close()
	return transcript, true
}

// Abort closes the room without a summary or the end callback. Used for
// abandoned rooms.
func (r *Room) Abort() bool {
	_, ok := r.close()
	return ok
}

// End stops all timers, summarizes the transcript and runs the end callback
// exactly once, whether or not summarizing succeeded.
func (r *Room) End(ctx context.Context) (string, error) {
	transcript, ok := r.close()
	if !ok {
		return "", ErrSessionEnded
	}

	summary, err := r.summarizer.GenerateSummary(ctx, transcript)
	if err != nil {
		summary = ""
	}
	if r.onEnd != nil {
		r.onEnd(summary, err)
	}
	return summary, err
}
