package store

import (
	"context"
	"time"
)

// Audit record kinds.
const (
	KindViolation = "violation"
	KindKick      = "kick"
)

// AuditRecord is one persisted anti-cheat event.
type AuditRecord struct {
	ID            int64
	MatchID       string
	RoomCode      string
	PlayerID      string
	Kind          string
	ViolationType string
	Count         int
	Value         float64
	Limit         float64
	Detail        string
	CreatedAt     time.Time
}

// AuditStore defines the interface for persistent anti-cheat audit storage.
type AuditStore interface {
	// Save inserts a record. A zero CreatedAt is set to the current time.
	Save(ctx context.Context, rec AuditRecord) error
	// ListByPlayer returns the newest records for a player, newest first.
	ListByPlayer(ctx context.Context, playerID string, limit int) ([]AuditRecord, error)
	// Close releases database resources.
	Close() error
}

// NopStore discards everything. Used when no database is configured.
type NopStore struct{}

func (NopStore) Save(context.Context, AuditRecord) error { return nil }

func (NopStore) ListByPlayer(context.Context, string, int) ([]AuditRecord, error) {
	return nil, nil
}

func (NopStore) Close() error { return nil }
