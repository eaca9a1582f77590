package triage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Save(ctx context.Context, rec *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
}

type postgresRepo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &postgresRepo{db: db}
}

func (r *postgresRepo) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	query := `SELECT id, report, result, created_at FROM triage_records WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, id)

	var rec Record
	var reportJSON, resultJSON []byte

	err := row.Scan(&rec.ID, &reportJSON, &resultJSON, &rec.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("triage record not found")
		}
		return nil, err
	}

	if err := json.Unmarshal(reportJSON, &rec.Report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	if err := json.Unmarshal(resultJSON, &rec.Result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}

	return &rec, nil
}

func (r *postgresRepo) Save(ctx context.Context, rec *Record) error {
	reportJSON, err := json.Marshal(rec.Report)
	if err != nil {
		return err
	}
	resultJSON, err := json.Marshal(rec.Result)
	if err != nil {
		return err
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO triage_records (id, report, result, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = r.db.ExecContext(ctx, query, rec.ID, reportJSON, resultJSON, rec.CreatedAt)
	return err
}

// memoryRepo backs the service when no database is reachable.
type memoryRepo struct {
	mu      sync.RWMutex
	records map[uuid.UUID]Record
}

func NewMemoryRepository() Repository {
	return &memoryRepo{records: make(map[uuid.UUID]Record)}
}

func (r *memoryRepo) Save(_ context.Context, rec *Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[rec.ID]; exists {
		return nil
	}
	stored := *rec
	stored.Report = rec.Report.Clone()
	r.records[rec.ID] = stored
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, fmt.Errorf("triage record not found")
	}
	return &rec, nil
}
