package consultation

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RolePatient Role = "PATIENT"
	RoleNurse   Role = "NURSE"
	RoleDoctor  Role = "DOCTOR"
	RoleAdmin   Role = "ADMIN"
)

type Type string

const (
	TypeChat  Type = "CHAT"
	TypeAudio Type = "AUDIO"
	TypeVideo Type = "VIDEO"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// CallState is the simulated call indicator. There is no media behind it.
type CallState string

const (
	CallIdle       CallState = "idle"
	CallConnecting CallState = "connecting"
	CallActive     CallState = "active"
)

type Message struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"senderId"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the persisted record of a consultation. Messages are not part of
// it: they live in the room and are dropped when the room ends.
type Session struct {
	ID             uuid.UUID `json:"id" db:"id"`
	PatientID      string    `json:"patientId" db:"patient_id"`
	ProfessionalID string    `json:"professionalId" db:"professional_id"`
	StartTime      time.Time `json:"startTime" db:"start_time"`
	Type           Type      `json:"type" db:"type"`
	Status         Status    `json:"status" db:"status"`
	Notes          string    `json:"notes,omitempty" db:"notes"`
	Recommendation string    `json:"recommendation,omitempty" db:"recommendation"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
}

// Professional is one of the fixed personas a patient can talk to.
type Professional struct {
	ID          string
	Role        Role
	DisplayName string
}

var professionals = map[Role]Professional{
	RoleNurse:  {ID: "prof-nurse", Role: RoleNurse, DisplayName: "Nurse Sarah"},
	RoleDoctor: {ID: "prof-doctor", Role: RoleDoctor, DisplayName: "Dr. Smith"},
}

// ProfessionalFor returns the persona for role; only NURSE and DOCTOR exist.
func ProfessionalFor(role Role) (Professional, bool) {
	p, ok := professionals[role]
	return p, ok
}
