package lagcomp

import (
	"sort"
	"sync"
	"time"

	"github.com/ugaemi/duel-arena-server/internal/geom"
)

// Sample is one recorded position of an entity.
type Sample struct {
	Position    geom.Vector2
	Velocity    geom.Vector2 // units per second
	HasVelocity bool
	Timestamp   time.Time
}

// history is a fixed-capacity ring of samples ordered oldest to newest.
type history struct {
	samples []Sample
	head    int // index of the oldest sample
	count   int
}

func newHistory(capacity int) *history {
	return &history{samples: make([]Sample, capacity)}
}

func (h *history) at(i int) Sample {
	return h.samples[(h.head+i)%len(h.samples)]
}

func (h *history) push(s Sample) {
	if h.count == len(h.samples) {
		h.samples[h.head] = s
		h.head = (h.head + 1) % len(h.samples)
		return
	}
	h.samples[(h.head+h.count)%len(h.samples)] = s
	h.count++
}

func (h *history) dropOldest() {
	if h.count == 0 {
		return
	}
	h.head = (h.head + 1) % len(h.samples)
	h.count--
}

func (h *history) oldest() Sample { return h.at(0) }
func (h *history) newest() Sample { return h.at(h.count - 1) }

// Buffer keeps a bounded, timestamped position history per entity and answers
// "where was this entity at time t" queries for hit validation.
type Buffer struct {
	cfg      Config
	mu       sync.RWMutex
	entities map[string]*history
	now      func() time.Time
}

// NewBuffer creates a buffer. It panics on an invalid config; callers validate
// configuration at startup.
func NewBuffer(cfg Config) *Buffer {
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	return &Buffer{
		cfg:      cfg,
		entities: make(map[string]*history),
		now:      time.Now,
	}
}

// SetClock replaces the wall clock used for recording and clamping.
func (b *Buffer) SetClock(now func() time.Time) {
	b.mu.Lock()
	b.now = now
	b.mu.Unlock()
}

// RecordPosition appends a sample stamped with the current time.
func (b *Buffer) RecordPosition(entityID string, pos geom.Vector2) {
	b.record(entityID, Sample{Position: pos})
}

// RecordPositionWithVelocity appends a sample with a known velocity, which is
// used to extrapolate past the newest sample.
func (b *Buffer) RecordPositionWithVelocity(entityID string, pos, vel geom.Vector2) {
	b.record(entityID, Sample{Position: pos, Velocity: vel, HasVelocity: true})
}

func (b *Buffer) record(entityID string, s Sample) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	s.Timestamp = now

	h, ok := b.entities[entityID]
	if !ok {
		h = newHistory(b.cfg.MaxSamples)
		b.entities[entityID] = h
	}
	// Samples must stay ordered; a clock step backwards resets the history.
	if h.count > 0 && now.Before(h.newest().Timestamp) {
		h.head, h.count = 0, 0
	}
	h.push(s)

	cutoff := now.Add(-b.cfg.HistoryDuration)
	for h.count > 1 && h.oldest().Timestamp.Before(cutoff) {
		h.dropOldest()
	}
}

// PositionAt returns the entity's position at timestamp, clamped to the
// rewind window. It needs at least two samples.
func (b *Buffer) PositionAt(entityID string, timestamp time.Time) (geom.Vector2, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	h, ok := b.entities[entityID]
	if !ok || h.count < 2 {
		return geom.Vector2{}, false
	}
	return b.positionAt(h, b.clamp(timestamp)), true
}

// AllPositionsAt returns PositionAt for every entity with enough history.
func (b *Buffer) AllPositionsAt(timestamp time.Time) map[string]geom.Vector2 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	target := b.clamp(timestamp)
	out := make(map[string]geom.Vector2, len(b.entities))
	for id, h := range b.entities {
		if h.count < 2 {
			continue
		}
		out[id] = b.positionAt(h, target)
	}
	return out
}

func (b *Buffer) clamp(t time.Time) time.Time {
	return clampTime(t, b.now(), b.cfg.MaxRewind)
}

func clampTime(t, now time.Time, maxRewind time.Duration) time.Time {
	earliest := now.Add(-maxRewind)
	if t.Before(earliest) {
		return earliest
	}
	if t.After(now) {
		return now
	}
	return t
}

func (b *Buffer) positionAt(h *history, target time.Time) geom.Vector2 {
	first := h.oldest()
	if !target.After(first.Timestamp) {
		return first.Position
	}

	last := h.newest()
	if !target.Before(last.Timestamp) {
		return extrapolate(last, target, b.cfg.MaxExtrapolation)
	}

	// First sample at or after target; index 0 is excluded above.
	i := sort.Search(h.count, func(i int) bool {
		return !h.at(i).Timestamp.Before(target)
	})
	after := h.at(i)
	if after.Timestamp.Equal(target) {
		return after.Position
	}
	before := h.at(i - 1)
	return interpolate(before, after, target)
}

func interpolate(before, after Sample, target time.Time) geom.Vector2 {
	span := after.Timestamp.Sub(before.Timestamp)
	if span <= 0 {
		return after.Position
	}
	alpha := float64(target.Sub(before.Timestamp)) / float64(span)
	return before.Position.Lerp(after.Position, alpha)
}

func extrapolate(last Sample, target time.Time, limit time.Duration) geom.Vector2 {
	if !last.HasVelocity {
		return last.Position
	}
	ahead := target.Sub(last.Timestamp)
	if ahead > limit {
		ahead = limit
	}
	if ahead <= 0 {
		return last.Position
	}
	return last.Position.Add(last.Velocity.Scale(ahead.Seconds()))
}

// Latest returns the newest sample of an entity.
func (b *Buffer) Latest(entityID string) (Sample, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	h, ok := b.entities[entityID]
	if !ok || h.count == 0 {
		return Sample{}, false
	}
	return h.newest(), true
}

// SampleCount returns the number of samples held for an entity.
func (b *Buffer) SampleCount(entityID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if h, ok := b.entities[entityID]; ok {
		return h.count
	}
	return 0
}

// Remove forgets an entity.
func (b *Buffer) Remove(entityID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entities, entityID)
}

// Clear forgets every entity.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entities = make(map[string]*history)
}
