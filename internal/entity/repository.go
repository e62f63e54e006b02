package entity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Repository defines the interface for entity registry persistence.
type Repository interface {
	// GetByID retrieves an entry by entity ID.
	// Returns ErrEntryNotFound if it does not exist.
	GetByID(ctx context.Context, entityID string) (*Entry, error)

	// List retrieves all entries in registration order.
	List(ctx context.Context) ([]Entry, error)

	// ListByDevice retrieves a device's entries in registration order.
	ListByDevice(ctx context.Context, deviceID string) ([]Entry, error)

	// Create inserts a new entry.
	// Returns ErrEntryExists if the entity ID is already registered.
	Create(ctx context.Context, e *Entry) error

	// Delete removes an entry.
	// Returns ErrEntryNotFound if it does not exist.
	Delete(ctx context.Context, entityID string) error
}

// SQLiteRepository implements Repository using the entity_registry table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectColumns = `SELECT rowid, entity_id, domain, device_id, name, created_at FROM entity_registry`

// GetByID retrieves an entry by entity ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, entityID string) (*Entry, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE entity_id = ?`, entityID)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("querying entry by id: %w", err)
	}
	return e, nil
}

// List retrieves all entries in registration order.
func (r *SQLiteRepository) List(ctx context.Context) ([]Entry, error) {
	return r.queryEntries(ctx, selectColumns+` ORDER BY rowid`)
}

// ListByDevice retrieves a device's entries in registration order.
func (r *SQLiteRepository) ListByDevice(ctx context.Context, deviceID string) ([]Entry, error) {
	return r.queryEntries(ctx, selectColumns+` WHERE device_id = ? ORDER BY rowid`, deviceID)
}

// Create inserts a new entry and records its registration position.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO entity_registry (entity_id, domain, device_id, name, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.EntityID, e.Domain, e.DeviceID, e.Name, e.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintError(err) {
			return ErrEntryExists
		}
		return fmt.Errorf("inserting entry: %w", err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading entry rowid: %w", err)
	}
	e.seq = seq
	return nil
}

// Delete removes an entry.
func (r *SQLiteRepository) Delete(ctx context.Context, entityID string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM entity_registry WHERE entity_id = ?", entityID)
	if err != nil {
		return fmt.Errorf("deleting entry: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *SQLiteRepository) queryEntries(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}
	return entries, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(s rowScanner) (*Entry, error) {
	var e Entry
	var createdAt string
	if err := s.Scan(&e.seq, &e.EntityID, &e.Domain, &e.DeviceID, &e.Name, &createdAt); err != nil {
		return nil, err
	}

	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
	}
	e.CreatedAt = t
	return &e, nil
}

// isConstraintError reports whether err is a SQLite primary key or unique violation.
func isConstraintError(err error) bool {
	var sqErr sqlite3.Error
	if !errors.As(err, &sqErr) {
		return false
	}
	return sqErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
