package consultation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("consultation not found")

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Session, error)
	Save(ctx context.Context, s *Session) error
	List(ctx context.Context, status Status) ([]Session, error)
}

type postgresRepo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &postgresRepo{db: db}
}

const sessionColumns = `id, patient_id, professional_id, start_time, type, status, notes, recommendation, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var s Session
	err := row.Scan(
		&s.ID,
		&s.PatientID,
		&s.ProfessionalID,
		&s.StartTime,
		&s.Type,
		&s.Status,
		&s.Notes,
		&s.Recommendation,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM consultation_sessions WHERE id = $1`

	s, err := scanSession(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

func (r *postgresRepo) List(ctx context.Context, status Status) ([]Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM consultation_sessions
		WHERE ($1 = '' OR status = $1)
		ORDER BY start_time DESC`

	rows, err := r.db.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *postgresRepo) Save(ctx context.Context, s *Session) error {
	if s.StartTime.IsZero() {
		s.StartTime = time.Now()
	}
	s.UpdatedAt = time.Now()

	query := `
		INSERT INTO consultation_sessions (id, patient_id, professional_id, start_time, type, status, notes, recommendation, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			status = $6,
			notes = $7,
			recommendation = $8,
			updated_at = $9
	`
	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.PatientID, s.ProfessionalID, s.StartTime, s.Type, s.Status, s.Notes, s.Recommendation, s.UpdatedAt)
	return err
}

type memoryRepo struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]Session
}

func NewMemoryRepository() Repository {
	return &memoryRepo{sessions: make(map[uuid.UUID]Session)}
}

func (r *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (r *memoryRepo) Save(_ context.Context, s *Session) error {
	if s.StartTime.IsZero() {
		s.StartTime = time.Now()
	}
	s.UpdatedAt = time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = *s
	return nil
}

func (r *memoryRepo) List(_ context.Context, status Status) ([]Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Session
	for _, s := range r.sessions {
		if status == "" || s.Status == status {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out, nil
}
