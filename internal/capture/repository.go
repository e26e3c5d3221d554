package capture

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/motion-bridge/internal/device"
)

// List paging limits.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Record describes one archived capture session. The samples themselves are
// stored alongside and fetched with Repository.Samples.
type Record struct {
	ID          string        `json:"id"`
	DeviceID    int           `json:"device_id"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"-"`
	Candidates  string        `json:"candidates"`
	Matched     int           `json:"matched"`
	SampleCount int           `json:"sample_count"`
	Encoding    Encoding      `json:"encoding"`
	RawSize     int           `json:"raw_size"`
	Checksum    string        `json:"checksum"`
	CreatedAt   time.Time     `json:"created_at"`
}

// DurationMS returns the session duration in whole milliseconds.
func (r Record) DurationMS() int64 {
	return r.Duration.Milliseconds()
}

// Filter controls which records List returns.
type Filter struct {
	// DeviceID restricts results to one device when non-nil.
	DeviceID *int

	// Limit defaults to DefaultListLimit and is capped at MaxListLimit.
	Limit int
}

// Repository stores and retrieves archived captures.
type Repository interface {
	Save(ctx context.Context, rec Record, samples []device.Sample) (Record, error)
	List(ctx context.Context, filter Filter) ([]Record, error)
	Samples(ctx context.Context, id string) ([]device.Sample, error)
}

// SQLiteRepository keeps captures in the capture_sessions table.
type SQLiteRepository struct {
	db       *sql.DB
	encoding Encoding
}

// NewSQLiteRepository creates a repository that compresses sample blobs
// with enc.
func NewSQLiteRepository(db *sql.DB, enc Encoding) *SQLiteRepository {
	if enc == "" {
		enc = EncodingZstd
	}
	return &SQLiteRepository{db: db, encoding: enc}
}

// Save encodes samples and inserts the record. The returned record carries
// the encoding, raw size and checksum actually stored.
func (r *SQLiteRepository) Save(ctx context.Context, rec Record, samples []device.Sample) (Record, error) {
	blob, err := Encode(samples, r.encoding)
	if err != nil {
		return Record{}, err
	}

	rec.SampleCount = len(samples)
	rec.Encoding = blob.Encoding
	rec.RawSize = blob.RawSize
	rec.Checksum = blob.Checksum
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO capture_sessions
		 (id, device_id, started_at, duration_ms, candidates, matched, sample_count, encoding, raw_size, checksum, samples, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.DeviceID,
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.DurationMS(),
		rec.Candidates, rec.Matched, rec.SampleCount,
		string(rec.Encoding), rec.RawSize, rec.Checksum, blob.Data,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return Record{}, fmt.Errorf("inserting capture session: %w", err)
	}
	return rec, nil
}

// List returns records matching filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) ([]Record, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	query := `SELECT id, device_id, started_at, duration_ms, candidates, matched, sample_count, encoding, raw_size, checksum, created_at
		FROM capture_sessions`
	var args []any
	if filter.DeviceID != nil {
		query += " WHERE device_id = ?"
		args = append(args, *filter.DeviceID)
	}
	query += " ORDER BY started_at DESC, created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying capture sessions: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating capture sessions: %w", err)
	}
	return records, nil
}

// Samples loads, verifies and decodes the samples of one capture.
func (r *SQLiteRepository) Samples(ctx context.Context, id string) ([]device.Sample, error) {
	var (
		blob     Blob
		encoding string
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT encoding, raw_size, checksum, samples FROM capture_sessions WHERE id = ?", id,
	).Scan(&encoding, &blob.RawSize, &blob.Checksum, &blob.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading capture %s: %w", id, err)
	}
	blob.Encoding = Encoding(encoding)

	samples, err := Decode(blob)
	if err != nil {
		return nil, fmt.Errorf("decoding capture %s: %w", id, err)
	}
	return samples, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var (
		rec        Record
		startedAt  string
		createdAt  string
		durationMS int64
		encoding   string
	)
	if err := s.Scan(
		&rec.ID, &rec.DeviceID, &startedAt, &durationMS,
		&rec.Candidates, &rec.Matched, &rec.SampleCount,
		&encoding, &rec.RawSize, &rec.Checksum, &createdAt,
	); err != nil {
		return Record{}, fmt.Errorf("scanning capture session: %w", err)
	}

	rec.Duration = time.Duration(durationMS) * time.Millisecond
	rec.Encoding = Encoding(encoding)
	rec.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt) //nolint:errcheck // Format is controlled
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt) //nolint:errcheck // Format is controlled
	return rec, nil
}
