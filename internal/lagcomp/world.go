package lagcomp

import (
	"sort"
	"time"

	"github.com/ugaemi/duel-arena-server/internal/geom"
)

// PlayerState is one player's collision-relevant state inside a world snapshot.
type PlayerState struct {
	Position geom.Vector2
	Velocity geom.Vector2
	Capsule  geom.Capsule
	Alive    bool
}

// WorldSnapshot is the settled state of every player at the end of a tick.
type WorldSnapshot struct {
	Tick      uint64
	Timestamp time.Time
	Players   map[string]PlayerState
}

// WorldHistory keeps recent world snapshots for tick- or time-keyed rewind.
// It is owned by the tick loop and is not safe for concurrent use.
type WorldHistory struct {
	cfg       Config
	snapshots []WorldSnapshot // ordered by tick
	now       func() time.Time
}

// NewWorldHistory creates an empty history. It panics on an invalid config.
func NewWorldHistory(cfg Config) *WorldHistory {
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	return &WorldHistory{
		cfg:       cfg,
		snapshots: make([]WorldSnapshot, 0, cfg.MaxSamples),
		now:       time.Now,
	}
}

// SetClock replaces the wall clock used to clamp time queries.
func (w *WorldHistory) SetClock(now func() time.Time) {
	w.now = now
}

// Record appends a snapshot. The players map is copied. Snapshots for a tick
// not newer than the latest are ignored.
func (w *WorldHistory) Record(tick uint64, timestamp time.Time, players map[string]PlayerState) {
	if n := len(w.snapshots); n > 0 && tick <= w.snapshots[n-1].Tick {
		return
	}
	copied := make(map[string]PlayerState, len(players))
	for id, p := range players {
		copied[id] = p
	}
	if len(w.snapshots) == w.cfg.MaxSamples {
		w.snapshots = append(w.snapshots[:0], w.snapshots[1:]...)
	}
	w.snapshots = append(w.snapshots, WorldSnapshot{Tick: tick, Timestamp: timestamp, Players: copied})
}

// Prune drops snapshots older than now-HistoryDuration, always keeping the newest.
func (w *WorldHistory) Prune(now time.Time) int {
	cutoff := now.Add(-w.cfg.HistoryDuration)
	drop := 0
	for drop < len(w.snapshots)-1 && w.snapshots[drop].Timestamp.Before(cutoff) {
		drop++
	}
	if drop > 0 {
		w.snapshots = append(w.snapshots[:0], w.snapshots[drop:]...)
	}
	return drop
}

// Len returns the number of stored snapshots.
func (w *WorldHistory) Len() int {
	return len(w.snapshots)
}

// Latest returns the newest snapshot.
func (w *WorldHistory) Latest() (WorldSnapshot, bool) {
	if len(w.snapshots) == 0 {
		return WorldSnapshot{}, false
	}
	return w.snapshots[len(w.snapshots)-1], true
}

// SnapshotAtTick returns the snapshot recorded for tick, or the closest one
// when that exact tick is not stored. Ties prefer the older snapshot.
func (w *WorldHistory) SnapshotAtTick(tick uint64) (WorldSnapshot, bool) {
	n := len(w.snapshots)
	if n == 0 {
		return WorldSnapshot{}, false
	}
	i := sort.Search(n, func(i int) bool { return w.snapshots[i].Tick >= tick })
	switch {
	case i == n:
		return w.snapshots[n-1], true
	case w.snapshots[i].Tick == tick || i == 0:
		return w.snapshots[i], true
	}
	before, after := w.snapshots[i-1], w.snapshots[i]
	if tick-before.Tick <= after.Tick-tick {
		return before, true
	}
	return after, true
}

// SnapshotAtTime returns the snapshot closest to timestamp after clamping it to
// the rewind window.
func (w *WorldHistory) SnapshotAtTime(timestamp time.Time) (WorldSnapshot, bool) {
	i, ok := w.closestIndex(clampTime(timestamp, w.now(), w.cfg.MaxRewind))
	if !ok {
		return WorldSnapshot{}, false
	}
	return w.snapshots[i], true
}

func (w *WorldHistory) closestIndex(target time.Time) (int, bool) {
	n := len(w.snapshots)
	if n == 0 {
		return 0, false
	}
	i := sort.Search(n, func(i int) bool { return !w.snapshots[i].Timestamp.Before(target) })
	if i == n {
		return n - 1, true
	}
	if i == 0 {
		return 0, true
	}
	if target.Sub(w.snapshots[i-1].Timestamp) <= w.snapshots[i].Timestamp.Sub(target) {
		return i - 1, true
	}
	return i, true
}

// InterpolatedAt blends the two snapshots bracketing timestamp (clamped to
// the rewind window). Players present in only one bracket keep that state.
// It needs at least two snapshots.
func (w *WorldHistory) InterpolatedAt(timestamp time.Time) (WorldSnapshot, bool) {
	n := len(w.snapshots)
	if n < 2 {
		return WorldSnapshot{}, false
	}
	target := clampTime(timestamp, w.now(), w.cfg.MaxRewind)

	first, last := w.snapshots[0], w.snapshots[n-1]
	if !target.After(first.Timestamp) {
		return first, true
	}
	if !target.Before(last.Timestamp) {
		return last, true
	}

	i := sort.Search(n, func(i int) bool { return !w.snapshots[i].Timestamp.Before(target) })
	after := w.snapshots[i]
	if after.Timestamp.Equal(target) {
		return after, true
	}
	before := w.snapshots[i-1]
	alpha := float64(target.Sub(before.Timestamp)) / float64(after.Timestamp.Sub(before.Timestamp))

	players := make(map[string]PlayerState, len(after.Players))
	for id, a := range after.Players {
		b, ok := before.Players[id]
		if !ok {
			players[id] = a
			continue
		}
		offset := a.Position.Sub(b.Position).Scale(alpha)
		players[id] = PlayerState{
			Position: b.Position.Add(offset),
			Velocity: b.Velocity.Lerp(a.Velocity, alpha),
			Capsule:  b.Capsule.Translate(offset),
			Alive:    b.Alive,
		}
	}
	for id, b := range before.Players {
		if _, ok := players[id]; !ok {
			players[id] = b
		}
	}

	return WorldSnapshot{Tick: before.Tick, Timestamp: target, Players: players}, true
}
