// Package competitor owns the tracked-competitor relation: one row per
// (owner, competitor) pair, holding the last resolved profile snapshot
// and the cached image URL.
package competitor

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rivaldex/rivaldex/internal/profile"
)

var (
	// ErrUnavailable means the backing store could not complete the
	// operation. Always fatal to an ingestion call.
	ErrUnavailable = errors.New("competitor store unavailable")

	// ErrNotTracked means no record exists for the (owner, competitor) pair.
	ErrNotTracked = errors.New("competitor not tracked")
)

// Record is a tracked competitor of an owner account.
// CreatedAt is set on first ingestion and never changes; RefreshedAt moves
// on every subsequent ingestion of the same pair.
type Record struct {
	ID          string            `json:"id"`
	Owner       string            `json:"owner"`
	Username    string            `json:"username"`
	DisplayName string            `json:"display_name"`
	ImageURL    string            `json:"image_url"`
	Profile     map[string]string `json:"profile,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	RefreshedAt time.Time         `json:"refreshed_at"`
}

// Store provides competitor persistence backed by Postgres.
type Store struct {
	db *sql.DB
}

// NewStore creates a new competitor Store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const recordColumns = `id, owner_username, competitor_username, display_name, image_url, profile, created_at, refreshed_at`

// Upsert atomically inserts or refreshes the record for (owner, target).
// An insert sets created_at; an update overwrites the payload and bumps
// refreshed_at while leaving created_at untouched. Enforcing owner != target
// is deliberately left to callers.
func (s *Store) Upsert(ctx context.Context, owner, target string, snap *profile.Snapshot, imageURL string) (*Record, error) {
	if owner == "" || target == "" {
		return nil, fmt.Errorf("upsert competitor: owner and target must be non-empty")
	}
	if snap == nil {
		return nil, fmt.Errorf("upsert competitor: snapshot is required")
	}

	profileJSON, err := json.Marshal(snap.Fields)
	if err != nil {
		return nil, fmt.Errorf("marshal profile fields: %w", err)
	}

	row := s.db.QueryRowContext(ctx,
		`INSERT INTO competitors (owner_username, competitor_username, display_name, image_url, profile)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (owner_username, competitor_username) DO UPDATE
		   SET display_name = EXCLUDED.display_name,
		       image_url    = EXCLUDED.image_url,
		       profile      = EXCLUDED.profile,
		       refreshed_at = now()
		 RETURNING `+recordColumns,
		owner, target, snap.DisplayName, imageURL, profileJSON,
	)
	rec, err := scanRecord(row)
	if err != nil {
		return nil, fmt.Errorf("upsert competitor %s/%s: %w: %w", owner, target, ErrUnavailable, err)
	}
	return rec, nil
}

// Exists reports whether a record exists for (owner, target).
func (s *Store) Exists(ctx context.Context, owner, target string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM competitors WHERE owner_username = $1 AND competitor_username = $2)`,
		owner, target,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("competitor exists %s/%s: %w: %w", owner, target, ErrUnavailable, err)
	}
	return exists, nil
}

// Get retrieves the record for (owner, target).
func (s *Store) Get(ctx context.Context, owner, target string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM competitors
		 WHERE owner_username = $1 AND competitor_username = $2`,
		owner, target,
	)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get competitor %s/%s: %w", owner, target, ErrNotTracked)
		}
		return nil, fmt.Errorf("get competitor %s/%s: %w: %w", owner, target, ErrUnavailable, err)
	}
	return rec, nil
}

// List returns all competitors tracked by owner, ordered by username.
func (s *Store) List(ctx context.Context, owner string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM competitors
		 WHERE owner_username = $1 ORDER BY competitor_username`,
		owner,
	)
	if err != nil {
		return nil, fmt.Errorf("list competitors for %s: %w: %w", owner, ErrUnavailable, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan competitor: %w: %w", ErrUnavailable, err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	rec := &Record{}
	var profileJSON []byte
	err := row.Scan(&rec.ID, &rec.Owner, &rec.Username, &rec.DisplayName, &rec.ImageURL, &profileJSON, &rec.CreatedAt, &rec.RefreshedAt)
	if err != nil {
		return nil, err
	}
	if len(profileJSON) > 0 {
		if err := json.Unmarshal(profileJSON, &rec.Profile); err != nil {
			return nil, fmt.Errorf("unmarshal profile fields: %w", err)
		}
	}
	return rec, nil
}
