// Package sqlite implements the failed-command journal on an embedded
// SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/commatea/Radiance-Link/pkg/persistence"
)

const schema = `
CREATE TABLE IF NOT EXISTS command_journal (
	id         TEXT PRIMARY KEY,
	command    TEXT NOT NULL,
	cause      TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_command_journal_created_at
	ON command_journal (created_at);
`

// Journal is a SQLite-backed command journal.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal database at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}

	// The sqlite driver serializes writes itself; a single connection
	// avoids SQLITE_BUSY on concurrent saves.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init journal schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Save records a failed command and returns its journal id.
func (j *Journal) Save(ctx context.Context, command, cause string) (string, error) {
	id := uuid.NewString()
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO command_journal (id, command, cause, created_at) VALUES (?, ?, ?, ?)`,
		id, command, cause, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("save journal entry: %w", err)
	}
	return id, nil
}

// Pending returns all journaled commands, oldest first.
func (j *Journal) Pending(ctx context.Context) ([]persistence.Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, command, cause, created_at FROM command_journal ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var entries []persistence.Entry
	for rows.Next() {
		var e persistence.Entry
		if err := rows.Scan(&e.ID, &e.Command, &e.Cause, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return entries, nil
}

// Delete removes a journaled command by id.
func (j *Journal) Delete(ctx context.Context, id string) error {
	if _, err := j.db.ExecContext(ctx,
		`DELETE FROM command_journal WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete journal entry: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (j *Journal) Close() error {
	return j.db.Close()
}

// RecordFailure adapts the journal to the connection layer's failure hook.
func (j *Journal) RecordFailure(ctx context.Context, command string, cause error) error {
	_, err := j.Save(ctx, command, cause.Error())
	return err
}
