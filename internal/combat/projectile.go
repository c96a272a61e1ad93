package combat

import (
	"log/slog"
	"time"

	"github.com/ugaemi/duel-arena-server/internal/geom"
)

// Arena is the static map as seen by projectiles and hit detection.
type Arena interface {
	InBounds(p geom.Vector2) bool
	HitsBarrier(p geom.Vector2, radius float64) bool
}

// Projectile is a live shot. ID is the pool slot for pooled projectiles and
// a value >= pool capacity for overflow allocations.
type Projectile struct {
	ID            uint32
	OwnerID       string
	Position      geom.Vector2
	Velocity      geom.Vector2
	SpawnTime     time.Time
	SpawnPosition geom.Vector2
	Damage        float64
	IsPredicted   bool

	// Latency is how far behind the server clock the shooter saw the world.
	// Hit validation rewinds targets by this much.
	Latency time.Duration

	inUse  bool
	pooled bool
}

// Active reports whether the projectile is live.
func (p *Projectile) Active() bool {
	return p.inUse
}

// Traveled returns the distance from the spawn point.
func (p *Projectile) Traveled() float64 {
	return p.Position.DistanceTo(p.SpawnPosition)
}

// DestroyReason explains why a projectile was removed.
type DestroyReason int

const (
	DestroyRange DestroyReason = iota
	DestroyBarrier
	DestroyBounds
	DestroyHit
	DestroyCleared
)

func (r DestroyReason) String() string {
	switch r {
	case DestroyRange:
		return "range"
	case DestroyBarrier:
		return "barrier"
	case DestroyBounds:
		return "bounds"
	case DestroyHit:
		return "hit"
	case DestroyCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// Destroyed reports a removed projectile and its final position.
type Destroyed struct {
	ID       uint32
	OwnerID  string
	Position geom.Vector2
	Reason   DestroyReason
}

// ProjectileManager owns a fixed-capacity projectile pool. Slots are reused
// instead of allocating per shot; when every slot is busy it falls back to
// heap allocation rather than dropping the shot.
type ProjectileManager struct {
	cfg   ProjectileConfig
	arena Arena

	slots    []Projectile
	free     []uint32 // stack of free slot indices
	overflow []*Projectile
	nextID   uint32

	fallbacks uint64
	logger    *slog.Logger
}

// NewProjectileManager creates a manager. arena may be nil, in which case
// only the range limit applies.
func NewProjectileManager(cfg ProjectileConfig, arena Arena, logger *slog.Logger) *ProjectileManager {
	if logger == nil {
		logger = slog.Default()
	}
	capacity := cfg.PoolCapacity
	if capacity <= 0 {
		capacity = 1
	}
	m := &ProjectileManager{
		cfg:    cfg,
		arena:  arena,
		slots:  make([]Projectile, capacity),
		free:   make([]uint32, 0, capacity),
		nextID: uint32(capacity),
		logger: logger,
	}
	// Lowest slot index is handed out first.
	for i := capacity - 1; i >= 0; i-- {
		m.free = append(m.free, uint32(i))
	}
	return m
}

func (m *ProjectileManager) acquire() *Projectile {
	if n := len(m.free); n > 0 {
		idx := m.free[n-1]
		m.free = m.free[:n-1]
		p := &m.slots[idx]
		*p = Projectile{ID: idx, inUse: true, pooled: true}
		return p
	}

	m.fallbacks++
	p := &Projectile{ID: m.nextID, inUse: true}
	m.nextID++
	m.overflow = append(m.overflow, p)
	m.logger.Warn("projectile pool exhausted, allocating", "capacity", len(m.slots), "overflow", len(m.overflow))
	return p
}

func (m *ProjectileManager) release(p *Projectile) {
	if !p.inUse {
		return
	}
	p.inUse = false
	if p.pooled {
		m.free = append(m.free, p.ID)
		return
	}
	for i, o := range m.overflow {
		if o == p {
			m.overflow = append(m.overflow[:i], m.overflow[i+1:]...)
			break
		}
	}
}

// Spawn launches a projectile from origin along direction. A zero direction
// is replaced by +X so the shot is never lost.
func (m *ProjectileManager) Spawn(ownerID string, origin, direction geom.Vector2, damage float64, now time.Time, predicted bool) *Projectile {
	dir := direction.Normalize()
	if dir.IsZero() {
		dir = geom.Vec2(1, 0)
	}
	p := m.acquire()
	p.OwnerID = ownerID
	p.Position = origin
	p.SpawnPosition = origin
	p.Velocity = dir.Scale(m.cfg.Speed)
	p.SpawnTime = now
	p.Damage = damage
	p.IsPredicted = predicted
	return p
}

// Update advances every live projectile by dt seconds and removes those that
// exceeded their range, struck a barrier or left the arena.
func (m *ProjectileManager) Update(dt float64) []Destroyed {
	var destroyed []Destroyed
	m.forEach(func(p *Projectile) {
		p.Position = p.Position.Add(p.Velocity.Scale(dt))

		reason, dead := m.collide(p)
		if !dead {
			return
		}
		destroyed = append(destroyed, Destroyed{ID: p.ID, OwnerID: p.OwnerID, Position: p.Position, Reason: reason})
		m.release(p)
	})
	return destroyed
}

func (m *ProjectileManager) collide(p *Projectile) (DestroyReason, bool) {
	if p.Traveled() >= m.cfg.MaxRange {
		return DestroyRange, true
	}
	if m.arena == nil {
		return 0, false
	}
	if m.arena.HitsBarrier(p.Position, m.cfg.Radius) {
		return DestroyBarrier, true
	}
	if !m.arena.InBounds(p.Position) {
		return DestroyBounds, true
	}
	return 0, false
}

// Destroy returns a projectile to the pool. Destroying twice is a no-op.
func (m *ProjectileManager) Destroy(p *Projectile) {
	m.release(p)
}

// forEach visits live projectiles in ID order. fn may destroy the visited
// projectile.
func (m *ProjectileManager) forEach(fn func(p *Projectile)) {
	for i := range m.slots {
		if m.slots[i].inUse {
			fn(&m.slots[i])
		}
	}
	overflow := make([]*Projectile, len(m.overflow))
	copy(overflow, m.overflow)
	for _, p := range overflow {
		if p.inUse {
			fn(p)
		}
	}
}

// Active returns the live projectiles in ID order.
func (m *ProjectileManager) Active() []*Projectile {
	var out []*Projectile
	m.forEach(func(p *Projectile) { out = append(out, p) })
	return out
}

// Count returns the number of live projectiles.
func (m *ProjectileManager) Count() int {
	return len(m.slots) - len(m.free) + len(m.overflow)
}

// Fallbacks returns how many projectiles were heap-allocated because the
// pool was full.
func (m *ProjectileManager) Fallbacks() uint64 {
	return m.fallbacks
}

// Capacity returns the pool size.
func (m *ProjectileManager) Capacity() int {
	return len(m.slots)
}

// Clear destroys every live projectile.
func (m *ProjectileManager) Clear() []Destroyed {
	var destroyed []Destroyed
	m.forEach(func(p *Projectile) {
		destroyed = append(destroyed, Destroyed{ID: p.ID, OwnerID: p.OwnerID, Position: p.Position, Reason: DestroyCleared})
		m.release(p)
	})
	return destroyed
}

// ClearOwner destroys every live projectile fired by ownerID.
func (m *ProjectileManager) ClearOwner(ownerID string) {
	m.forEach(func(p *Projectile) {
		if p.OwnerID == ownerID {
			m.release(p)
		}
	})
}
