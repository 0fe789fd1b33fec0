package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository defines device persistence operations.
type Repository interface {
	// Search returns entries on beamline whose active flag equals active,
	// ordered by name.
	Search(ctx context.Context, beamline string, active bool) ([]Entry, error)

	// List returns every entry ordered by name.
	List(ctx context.Context) ([]Entry, error)

	// Upsert inserts the entry or replaces the one with the same name.
	// The stored ID and CreatedAt are kept on replace.
	Upsert(ctx context.Context, e *Entry) error

	// Delete returns ErrDeviceNotFound if no entry has that name.
	Delete(ctx context.Context, name string) error

	// Count returns the number of entries.
	Count(ctx context.Context) (int, error)
}

// SQLiteRepository implements Repository over the devices table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectColumns = `SELECT id, name, beamline, active, device_class, metadata, created_at, updated_at FROM devices`

// Search returns entries matching beamline and active.
func (r *SQLiteRepository) Search(ctx context.Context, beamline string, active bool) ([]Entry, error) {
	return r.query(ctx, selectColumns+` WHERE beamline = ? AND active = ? ORDER BY name`, beamline, boolToInt(active))
}

// List retrieves all entries.
func (r *SQLiteRepository) List(ctx context.Context) ([]Entry, error) {
	return r.query(ctx, selectColumns+` ORDER BY name`)
}

// Upsert inserts or replaces an entry keyed by name.
// On return e carries the stored ID and timestamps.
func (r *SQLiteRepository) Upsert(ctx context.Context, e *Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}

	metadata := e.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	now := time.Now().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO devices (id, name, beamline, active, device_class, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			beamline = excluded.beamline,
			active = excluded.active,
			device_class = excluded.device_class,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
		RETURNING id, created_at`,
		e.ID, e.Name, e.Beamline, boolToInt(e.Active), e.DeviceClass, string(metaJSON),
		e.CreatedAt.Format(time.RFC3339Nano), e.UpdatedAt.Format(time.RFC3339Nano),
	)

	var createdAt string
	if err := row.Scan(&e.ID, &createdAt); err != nil {
		return fmt.Errorf("upserting device %q: %w", e.Name, err)
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		e.CreatedAt = t
	}
	return nil
}

// Delete removes an entry by name.
func (r *SQLiteRepository) Delete(ctx context.Context, name string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// Count returns the number of catalogued entries.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM devices`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting devices: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return entries, nil
}

// scanner is satisfied by *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*Entry, error) {
	var (
		e                    Entry
		active               int
		metaJSON             string
		createdAt, updatedAt string
	)
	if err := s.Scan(&e.ID, &e.Name, &e.Beamline, &active, &e.DeviceClass, &metaJSON, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	e.Active = active != 0

	if metaJSON != "" {
		if err := json.Unmarshal([]byte(metaJSON), &e.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshalling metadata for %q: %w", e.Name, err)
		}
	}
	if len(e.Metadata) == 0 {
		e.Metadata = nil
	}

	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt) //nolint:errcheck // Written by Upsert
	e.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt) //nolint:errcheck // Written by Upsert
	return &e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
