package store

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultSinkBuffer  = 256
	defaultSinkTimeout = 2 * time.Second
)

// Sink writes audit records to a store on a background goroutine. Submit
// never blocks; records are dropped while the buffer is full.
type Sink struct {
	store   AuditStore
	records chan AuditRecord
	timeout time.Duration
	logger  *slog.Logger

	dropped atomic.Uint64
	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
}

// NewSink starts a sink over s. Non-positive buffer and timeout use defaults.
func NewSink(s AuditStore, buffer int, timeout time.Duration, logger *slog.Logger) *Sink {
	if buffer <= 0 {
		buffer = defaultSinkBuffer
	}
	if timeout <= 0 {
		timeout = defaultSinkTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	sk := &Sink{
		store:   s,
		records: make(chan AuditRecord, buffer),
		timeout: timeout,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go sk.run()
	return sk
}

// Submit queues a record and reports whether it was accepted.
func (sk *Sink) Submit(rec AuditRecord) bool {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	sk.mu.RLock()
	defer sk.mu.RUnlock()
	if sk.closed {
		return false
	}
	select {
	case sk.records <- rec:
		return true
	default:
		sk.dropped.Add(1)
		return false
	}
}

// Dropped returns the number of records dropped on overflow.
func (sk *Sink) Dropped() uint64 {
	return sk.dropped.Load()
}

// Close stops accepting records, flushes what is buffered and waits for the
// writer to finish.
func (sk *Sink) Close() {
	sk.mu.Lock()
	if !sk.closed {
		sk.closed = true
		close(sk.records)
	}
	sk.mu.Unlock()
	<-sk.done
}

func (sk *Sink) run() {
	defer close(sk.done)
	for rec := range sk.records {
		ctx, cancel := context.WithTimeout(context.Background(), sk.timeout)
		if err := sk.store.Save(ctx, rec); err != nil {
			sk.logger.Error("failed to save audit record", "player", rec.PlayerID, "kind", rec.Kind, "error", err)
		}
		cancel()
	}
}
