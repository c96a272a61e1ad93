package combat

import (
	"math/rand/v2"
	"time"

	"github.com/ugaemi/duel-arena-server/internal/geom"
)

// FireRecord is one accepted shot.
type FireRecord struct {
	Sequence uint64
	Time     time.Time
	// ClientTime is the shooter's claimed fire time, zero for server-side shots.
	ClientTime time.Time
	SpreadSeed uint32
}

// Weapon gates fire rate and produces spread for one player.
type Weapon struct {
	cfg      WeaponConfig
	lastFire time.Time
	hasFired bool
	sequence uint64

	// history is a ring of the most recent shots, oldest first from histHead.
	history  []FireRecord
	histHead int
	histLen  int

	rng *rand.Rand
}

// NewWeapon creates a weapon. rng supplies fresh spread seeds; nil uses a
// randomly seeded source.
func NewWeapon(cfg WeaponConfig, rng *rand.Rand) *Weapon {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	size := cfg.FireHistorySize
	if size <= 0 {
		size = 1
	}
	return &Weapon{
		cfg:     cfg,
		history: make([]FireRecord, size),
		rng:     rng,
	}
}

// CanFire reports whether the cooldown has elapsed since the last shot.
func (w *Weapon) CanFire(now time.Time) bool {
	if !w.hasFired {
		return true
	}
	return now.Sub(w.lastFire) >= w.cfg.Cooldown
}

// RecordFire stamps a shot at now with a freshly generated spread seed.
func (w *Weapon) RecordFire(now time.Time) FireRecord {
	return w.RecordFireWithSeed(now, w.rng.Uint32())
}

// RecordFireWithSeed stamps a shot using a seed chosen by another authority,
// so both sides compute the same spread.
func (w *Weapon) RecordFireWithSeed(now time.Time, seed uint32) FireRecord {
	return w.record(now, time.Time{}, seed)
}

// RecordClientFire stamps a shot requested by a client at clientTime. A zero
// seed is replaced by a fresh one.
func (w *Weapon) RecordClientFire(now, clientTime time.Time, seed uint32) FireRecord {
	if seed == 0 {
		seed = w.rng.Uint32()
	}
	return w.record(now, clientTime, seed)
}

func (w *Weapon) record(now, clientTime time.Time, seed uint32) FireRecord {
	w.lastFire = now
	w.hasFired = true
	w.sequence++

	rec := FireRecord{Sequence: w.sequence, Time: now, ClientTime: clientTime, SpreadSeed: seed}
	w.pushHistory(rec)
	return rec
}

func (w *Weapon) pushHistory(rec FireRecord) {
	size := len(w.history)
	if w.histLen == size {
		w.history[w.histHead] = rec
		w.histHead = (w.histHead + 1) % size
		return
	}
	w.history[(w.histHead+w.histLen)%size] = rec
	w.histLen++
}

// ApplySpread rotates direction by a random angle within the spread cone.
func (w *Weapon) ApplySpread(direction geom.Vector2) geom.Vector2 {
	return SeededSpread(direction, w.rng.Uint32(), w.cfg.SpreadMax)
}

// ApplySeededSpread rotates direction by the angle derived from seed.
func (w *Weapon) ApplySeededSpread(direction geom.Vector2, seed uint32) geom.Vector2 {
	return SeededSpread(direction, seed, w.cfg.SpreadMax)
}

// ValidateFireRate reports whether a shot claimed at timestamp is plausible
// given the most recent recorded shot, allowing RateTolerance of jitter.
// Client claims are compared with the previous client claim when there is one.
func (w *Weapon) ValidateFireRate(timestamp time.Time) bool {
	last, ok := w.LastRecorded()
	if !ok {
		return true
	}
	return timestamp.Sub(last.reference()) >= w.cfg.Cooldown-w.cfg.RateTolerance
}

func (r FireRecord) reference() time.Time {
	if !r.ClientTime.IsZero() {
		return r.ClientTime
	}
	return r.Time
}

// LastRecorded returns the most recent shot.
func (w *Weapon) LastRecorded() (FireRecord, bool) {
	if w.histLen == 0 {
		return FireRecord{}, false
	}
	return w.history[(w.histHead+w.histLen-1)%len(w.history)], true
}

// History returns recorded shots, oldest first.
func (w *Weapon) History() []FireRecord {
	out := make([]FireRecord, w.histLen)
	for i := range out {
		out[i] = w.history[(w.histHead+i)%len(w.history)]
	}
	return out
}

// Sequence returns the number of shots fired so far.
func (w *Weapon) Sequence() uint64 {
	return w.sequence
}

// Reset clears cooldown and history, keeping the sequence monotonic.
func (w *Weapon) Reset() {
	w.hasFired = false
	w.lastFire = time.Time{}
	w.histHead, w.histLen = 0, 0
}
