package input

import (
	"sort"
	"sync"
	"time"
)

// Buttons is a bitmask of pressed buttons.
type Buttons uint32

const (
	ButtonFire Buttons = 1 << iota
	ButtonJump
	ButtonDash
)

// Has reports whether all bits in b are set.
func (bs Buttons) Has(b Buttons) bool {
	return bs&b == b
}

// Input is one client command for one simulation tick.
type Input struct {
	SequenceNumber  uint32  `json:"seq"`
	TickNumber      uint64  `json:"tick"`
	MovementX       float64 `json:"mx"`
	MovementY       float64 `json:"my"`
	LookDeltaX      float64 `json:"lx"`
	LookDeltaY      float64 `json:"ly"`
	Buttons         Buttons `json:"buttons"`
	ClientTimestamp int64   `json:"ts"` // unix milliseconds

	// FireSeed is the spread seed the client predicted with, zero if none.
	FireSeed uint32 `json:"seed,omitempty"`
}

// ClientTime converts ClientTimestamp to a time.Time.
func (in Input) ClientTime() time.Time {
	return time.UnixMilli(in.ClientTimestamp)
}

// Queue buffers inputs per player between ticks. Network goroutines push,
// the tick loop drains.
type Queue struct {
	mu         sync.Mutex
	pending    map[string][]Input
	maxPerTick int
	lastSeq    map[string]uint32
	seen       map[string]bool
	dropped    uint64
}

// NewQueue creates a queue that hands out at most maxPerTick inputs per
// player per drain. Extra inputs stay queued for the next tick.
func NewQueue(maxPerTick int) *Queue {
	if maxPerTick <= 0 {
		maxPerTick = 1
	}
	return &Queue{
		pending:    make(map[string][]Input),
		maxPerTick: maxPerTick,
		lastSeq:    make(map[string]uint32),
		seen:       make(map[string]bool),
	}
}

// Push enqueues an input. Inputs whose sequence number is not newer than the
// last accepted one for the player are dropped, and false is returned.
func (q *Queue) Push(playerID string, in Input) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.seen[playerID] && in.SequenceNumber <= q.lastSeq[playerID] {
		q.dropped++
		return false
	}
	q.seen[playerID] = true
	q.lastSeq[playerID] = in.SequenceNumber
	q.pending[playerID] = append(q.pending[playerID], in)
	return true
}

// Drain removes and returns up to maxPerTick inputs per player, ordered by
// sequence number.
func (q *Queue) Drain() map[string][]Input {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make(map[string][]Input, len(q.pending))
	for id, inputs := range q.pending {
		if len(inputs) == 0 {
			continue
		}
		sort.Slice(inputs, func(i, j int) bool {
			return inputs[i].SequenceNumber < inputs[j].SequenceNumber
		})
		n := len(inputs)
		if n > q.maxPerTick {
			n = q.maxPerTick
		}
		batch := make([]Input, n)
		copy(batch, inputs[:n])
		out[id] = batch
		q.pending[id] = inputs[n:]
	}
	return out
}

// Remove discards all queued inputs and sequence tracking for a player.
func (q *Queue) Remove(playerID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.pending, playerID)
	delete(q.lastSeq, playerID)
	delete(q.seen, playerID)
}

// Pending returns the number of queued inputs for a player.
func (q *Queue) Pending(playerID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending[playerID])
}

// Dropped returns the number of stale inputs rejected so far.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
