package allocation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/hrpfolio/internal/modules/optimization"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrSnapshotNotFound is returned when no snapshot matches.
var ErrSnapshotNotFound = errors.New("allocation snapshot not found")

// Repository handles allocation snapshot database operations
// Table: allocation_snapshots
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new allocation repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "allocation").Logger(),
	}
}

// Save stores a snapshot, assigning ID and CreatedAt when unset.
func (r *Repository) Save(ctx context.Context, s *Snapshot) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	payload, err := msgpack.Marshal(snapshotPayload{
		AsOf:     s.AsOf,
		Periods:  s.Periods,
		Weights:  s.Weights,
		Order:    s.Order,
		Excluded: s.Excluded,
	})
	if err != nil {
		return fmt.Errorf("failed to encode snapshot payload: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO allocation_snapshots (id, created_at, linkage, lookback_days, payload)
		VALUES (?, ?, ?, ?, ?)
	`, s.ID, s.CreatedAt.UnixMilli(), string(s.Linkage), s.LookbackDays, payload)
	if err != nil {
		return fmt.Errorf("failed to insert allocation snapshot: %w", err)
	}

	r.log.Debug().Str("id", s.ID).Int("assets", len(s.Weights)).Msg("Saved allocation snapshot")
	return nil
}

// Latest returns the most recent snapshot.
func (r *Repository) Latest(ctx context.Context) (*Snapshot, error) {
	snapshots, err := r.List(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, ErrSnapshotNotFound
	}
	return &snapshots[0], nil
}

// List returns up to limit snapshots, newest first.
func (r *Repository) List(ctx context.Context, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, created_at, linkage, lookback_days, payload
		FROM allocation_snapshots
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocation snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := []Snapshot{}
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating allocation snapshots: %w", err)
	}
	return snapshots, nil
}

// GetByID returns a snapshot by id.
func (r *Repository) GetByID(ctx context.Context, id string) (*Snapshot, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, created_at, linkage, lookback_days, payload
		FROM allocation_snapshots
		WHERE id = ?
	`, id)
	s, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	return s, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row scanner) (*Snapshot, error) {
	var (
		s         Snapshot
		createdAt int64
		linkage   string
		payload   []byte
	)
	if err := row.Scan(&s.ID, &createdAt, &linkage, &s.LookbackDays, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan allocation snapshot: %w", err)
	}

	var p snapshotPayload
	if err := msgpack.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", s.ID, err)
	}

	s.CreatedAt = time.UnixMilli(createdAt).UTC()
	s.Linkage = optimization.Linkage(linkage)
	s.AsOf = p.AsOf
	s.Periods = p.Periods
	s.Weights = optimization.WeightVector(p.Weights)
	s.Order = p.Order
	s.Excluded = p.Excluded
	if s.Excluded == nil {
		s.Excluded = []string{}
	}
	return &s, nil
}
