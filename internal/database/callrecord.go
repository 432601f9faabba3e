package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/patientdial/patientdial/internal/database/models"
)

// CallRecordRepository manages the per-call operational records.
type CallRecordRepository interface {
	Create(ctx context.Context, rec *models.CallRecord) error
	GetByCallSID(ctx context.Context, callSID string) (*models.CallRecord, error)
	List(ctx context.Context, limit int) ([]models.CallRecord, error)
	CountByDisposition(ctx context.Context) (map[string]int64, error)
}

// callRecordRepo implements CallRecordRepository.
type callRecordRepo struct {
	db *DB
}

// NewCallRecordRepository creates a new CallRecordRepository.
func NewCallRecordRepository(db *DB) CallRecordRepository {
	return &callRecordRepo{db: db}
}

// Create inserts a new call record.
func (r *callRecordRepo) Create(ctx context.Context, rec *models.CallRecord) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO call_records (call_sid, scenario, started_at, ended_at,
		 turns, disposition, transcript_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.CallSID, rec.Scenario, rec.StartedAt, rec.EndedAt,
		rec.Turns, rec.Disposition, rec.TranscriptPath,
	)
	if err != nil {
		return fmt.Errorf("inserting call record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	rec.ID = id
	return nil
}

// GetByCallSID returns the record for one call, or nil if absent.
func (r *callRecordRepo) GetByCallSID(ctx context.Context, callSID string) (*models.CallRecord, error) {
	rec := &models.CallRecord{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, call_sid, scenario, started_at, ended_at, turns,
		 disposition, transcript_path
		 FROM call_records WHERE call_sid = ?`, callSID,
	).Scan(&rec.ID, &rec.CallSID, &rec.Scenario, &rec.StartedAt, &rec.EndedAt,
		&rec.Turns, &rec.Disposition, &rec.TranscriptPath)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying call record: %w", err)
	}
	return rec, nil
}

// List returns the most recent records, newest first.
func (r *callRecordRepo) List(ctx context.Context, limit int) ([]models.CallRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, call_sid, scenario, started_at, ended_at, turns,
		 disposition, transcript_path
		 FROM call_records ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing call records: %w", err)
	}
	defer rows.Close()

	var out []models.CallRecord
	for rows.Next() {
		var rec models.CallRecord
		if err := rows.Scan(&rec.ID, &rec.CallSID, &rec.Scenario, &rec.StartedAt,
			&rec.EndedAt, &rec.Turns, &rec.Disposition, &rec.TranscriptPath); err != nil {
			return nil, fmt.Errorf("scanning call record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountByDisposition returns record counts grouped by disposition, for the
// metrics collector.
func (r *callRecordRepo) CountByDisposition(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT disposition, COUNT(*) FROM call_records GROUP BY disposition`)
	if err != nil {
		return nil, fmt.Errorf("counting call records: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var disposition string
		var count int64
		if err := rows.Scan(&disposition, &count); err != nil {
			return nil, fmt.Errorf("scanning disposition count: %w", err)
		}
		out[disposition] = count
	}
	return out, rows.Err()
}
