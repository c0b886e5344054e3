// Package persistence defines the failed-command journal. Commands that
// could not be written to the wire are recorded for caller-driven replay;
// the driver itself never retries a failed send.
package persistence

import (
	"context"
	"time"
)

// Entry is one journaled command.
type Entry struct {
	ID        string    `json:"id"`
	Command   string    `json:"command"`
	Cause     string    `json:"cause"`
	CreatedAt time.Time `json:"created_at"`
}

// Journal stores failed commands.
type Journal interface {
	// Save records a failed command and returns its journal id.
	Save(ctx context.Context, command, cause string) (string, error)

	// Pending returns all journaled commands, oldest first.
	Pending(ctx context.Context) ([]Entry, error)

	// Delete removes a journaled command by id.
	Delete(ctx context.Context, id string) error

	// Close releases the journal's resources.
	Close() error
}
