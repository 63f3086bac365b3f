package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/shotstats/internal/scan"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a scan or batch does not exist.
var ErrNotFound = errors.New("not found")

// ResultStore persists analysed batches.
type ResultStore struct {
	db *DB
}

// NewResultStore wraps an opened, migrated database.
func NewResultStore(db *DB) *ResultStore {
	return &ResultStore{db: db}
}

// ScanRecord is one row of the scans table.
type ScanRecord struct {
	ID        uuid.UUID
	Parameter string
	Notes     string
	CreatedAt time.Time
	Batches   int
}

// SeriesPoint is the value of one channel at one scan point.
type SeriesPoint struct {
	Point float64
	Value float64
}

// CreateScan records a new scan.
func (s *ResultStore) CreateScan(ctx context.Context, id uuid.UUID, parameter, notes string, createdAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scans (scan_id, parameter, notes, created_at_ns) VALUES (?, ?, ?, ?)`,
		id.String(), parameter, notes, createdAt.UnixNano())
	if err != nil {
		return fmt.Errorf("create scan %s: %w", id, err)
	}
	return nil
}

// Scan returns one scan with its batch count.
func (s *ResultStore) Scan(ctx context.Context, id uuid.UUID) (ScanRecord, error) {
	var (
		rec     ScanRecord
		created int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT s.parameter, s.notes, s.created_at_ns, COUNT(b.batch_id)
		FROM scans s LEFT JOIN batches b ON b.scan_id = s.scan_id
		WHERE s.scan_id = ?
		GROUP BY s.scan_id`, id.String()).Scan(&rec.Parameter, &rec.Notes, &created, &rec.Batches)
	if errors.Is(err, sql.ErrNoRows) {
		return ScanRecord{}, fmt.Errorf("scan %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return ScanRecord{}, fmt.Errorf("scan %s: %w", id, err)
	}
	rec.ID = id
	rec.CreatedAt = time.Unix(0, created).UTC()
	return rec, nil
}

// Push writes a batch and all of its channels in one transaction. Either
// everything is stored or nothing is.
func (s *ResultStore) Push(ctx context.Context, scanID uuid.UUID, point float64, res scan.ChunkResult) (err error) {
	if res.Output == nil {
		return fmt.Errorf("batch %s has no output", res.ID)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var threshold sql.NullInt64
	if res.Config.Thresholds.IsUniform() {
		threshold = sql.NullInt64{Int64: int64(res.Config.Thresholds.Scalar()), Valid: true}
	}
	opts := res.Output.Options
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO batches (batch_id, scan_id, point, started_at_ns, duration_ns, shots,
			n_groups, n_rois, threshold, level, pooling, drift_aware)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID.String(), scanID.String(), point, res.StartedAt.UnixNano(), int64(res.Duration), res.Shots,
		res.Output.Groups, res.Output.ROIs, threshold, opts.Level, string(opts.Pooling), opts.DriftAware,
	); err != nil {
		return fmt.Errorf("insert batch %s: %w", res.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO channels (batch_id, name, value) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for name, v := range res.Output.Channels() {
		if _, err = stmt.ExecContext(ctx, res.ID.String(), name, v); err != nil {
			return fmt.Errorf("insert channel %s of batch %s: %w", name, res.ID, err)
		}
	}
	return tx.Commit()
}

// BatchChannels returns every stored channel of one batch.
func (s *ResultStore) BatchChannels(ctx context.Context, batchID uuid.UUID) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, value FROM channels WHERE batch_id = ?`, batchID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var (
			name string
			v    float64
		)
		if err := rows.Scan(&name, &v); err != nil {
			return nil, err
		}
		out[name] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("batch %s: %w", batchID, ErrNotFound)
	}
	return out, nil
}

// ScanSeries returns one channel across a scan, ordered by point and then
// by batch start time.
func (s *ResultStore) ScanSeries(ctx context.Context, scanID uuid.UUID, channel string) ([]SeriesPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.point, c.value
		FROM batches b JOIN channels c ON c.batch_id = b.batch_id
		WHERE b.scan_id = ? AND c.name = ?
		ORDER BY b.point, b.started_at_ns`, scanID.String(), channel)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SeriesPoint
	for rows.Next() {
		var p SeriesPoint
		if err := rows.Scan(&p.Point, &p.Value); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Sink returns a scan.Sink that stores every batch under scanID.
func (s *ResultStore) Sink(ctx context.Context, scanID uuid.UUID) scan.Sink {
	return &storeSink{ctx: ctx, store: s, scanID: scanID}
}

type storeSink struct {
	ctx    context.Context
	store  *ResultStore
	scanID uuid.UUID
}

func (k *storeSink) Push(point float64, res scan.ChunkResult) error {
	return k.store.Push(k.ctx, k.scanID, point, res)
}
