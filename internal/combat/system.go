package combat

import (
	"errors"
	"log/slog"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/ugaemi/duel-arena-server/internal/anticheat"
	"github.com/ugaemi/duel-arena-server/internal/event"
	"github.com/ugaemi/duel-arena-server/internal/geom"
	"github.com/ugaemi/duel-arena-server/internal/lagcomp"
)

var (
	ErrUnknownPlayer = errors.New("unknown player")
	ErrNotAlive      = errors.New("player is not alive")
	ErrCooldown      = errors.New("weapon on cooldown")
)

// Deps are the collaborators a System shares with the rest of the match.
// Nil fields get private defaults.
type Deps struct {
	Arena       Arena
	SpawnPoints []geom.Vector2
	Bus         *event.Bus
	Validator   *anticheat.Validator
	Lag         *lagcomp.Buffer
	World       *lagcomp.WorldHistory
	Rand        *rand.Rand
	Logger      *slog.Logger
}

// Shot is a fire request.
type Shot struct {
	Origin geom.Vector2
	Aim    geom.Vector2
	// Seed fixes the spread; zero lets the server choose one.
	Seed uint32
	// ClientTime is when the shooter pressed fire. Zero disables the
	// fire-rate audit and lag compensation for this shot.
	ClientTime time.Time
}

// Hit is one projectile striking one player.
type Hit struct {
	ProjectileID   uint32
	ShooterID      string
	TargetID       string
	Damage         DamageResult
	Remaining      float64
	Position       geom.Vector2
	LagCompensated bool
}

// Death is a player reduced to zero health.
type Death struct {
	VictimID      string
	KillerID      string
	DeathPosition geom.Vector2
	SpawnPosition geom.Vector2
	RespawnAt     time.Time
	Teleported    bool
}

// Respawned is a player whose respawn timer completed this update.
type Respawned struct {
	PlayerID string
	Position geom.Vector2
}

// UpdateResult is everything that happened during one Update.
type UpdateResult struct {
	Hits      []Hit
	Deaths    []Death
	Respawns  []Respawned
	Destroyed []Destroyed
}

// System coordinates weapons, projectiles, health, respawn and anti-cheat
// for a single match. It is owned by the tick loop and is not safe for
// concurrent use.
type System struct {
	cfg    Config
	arena  Arena
	bus    *event.Bus
	logger *slog.Logger
	rng    *rand.Rand

	weapons     map[string]*Weapon
	projectiles *ProjectileManager
	health      *HealthManager
	respawn     *RespawnManager
	validator   *anticheat.Validator
	lag         *lagcomp.Buffer
	world       *lagcomp.WorldHistory
}

// NewSystem builds a coordinator. It returns an error for an invalid config.
func NewSystem(cfg Config, deps Deps) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rng := deps.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	validator := deps.Validator
	if validator == nil {
		validator = anticheat.NewValidator(anticheat.DefaultConfig(), deps.Bus, logger)
	}
	lag := deps.Lag
	if lag == nil {
		lag = lagcomp.NewBuffer(lagcomp.DefaultConfig())
	}

	s := &System{
		cfg:         cfg,
		arena:       deps.Arena,
		bus:         deps.Bus,
		logger:      logger,
		rng:         rng,
		weapons:     make(map[string]*Weapon),
		projectiles: NewProjectileManager(cfg.Projectile, deps.Arena, logger),
		health:      NewHealthManager(cfg.Health),
		respawn:     NewRespawnManager(cfg.Respawn, deps.SpawnPoints, rand.New(rand.NewPCG(rng.Uint64(), rng.Uint64()))),
		validator:   validator,
		lag:         lag,
		world:       deps.World,
	}
	return s, nil
}

// SetClock replaces the clock used by health timers and lag compensation.
func (s *System) SetClock(now func() time.Time) {
	s.health.now = now
	s.lag.SetClock(now)
	if s.world != nil {
		s.world.SetClock(now)
	}
}

func (s *System) Config() Config                  { return s.cfg }
func (s *System) Arena() Arena                    { return s.arena }
func (s *System) Health() *HealthManager          { return s.health }
func (s *System) Projectiles() *ProjectileManager { return s.projectiles }
func (s *System) Respawns() *RespawnManager       { return s.respawn }
func (s *System) Validator() *anticheat.Validator { return s.validator }
func (s *System) LagBuffer() *lagcomp.Buffer      { return s.lag }
func (s *System) World() *lagcomp.WorldHistory    { return s.world }

// AddPlayer registers a player at full health with a fresh weapon.
func (s *System) AddPlayer(playerID string) {
	if _, ok := s.weapons[playerID]; ok {
		return
	}
	s.weapons[playerID] = NewWeapon(s.cfg.Weapon, rand.New(rand.NewPCG(s.rng.Uint64(), s.rng.Uint64())))
	s.health.Register(playerID)
}

// RemovePlayer forgets every piece of per-player state.
func (s *System) RemovePlayer(playerID string) {
	delete(s.weapons, playerID)
	s.health.Remove(playerID)
	s.respawn.Cancel(playerID)
	s.projectiles.ClearOwner(playerID)
	s.validator.RemovePlayer(playerID)
	s.lag.Remove(playerID)
}

// HasPlayer reports whether the player is registered.
func (s *System) HasPlayer(playerID string) bool {
	_, ok := s.weapons[playerID]
	return ok
}

// Players returns registered player ids, sorted.
func (s *System) Players() []string {
	ids := make([]string, 0, len(s.weapons))
	for id := range s.weapons {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Weapon returns the player's weapon.
func (s *System) Weapon(playerID string) (*Weapon, bool) {
	w, ok := s.weapons[playerID]
	return w, ok
}

// IsRespawning reports whether the player is dead and waiting to respawn.
func (s *System) IsRespawning(playerID string) bool {
	return s.respawn.IsRespawning(playerID)
}

// Reset returns every player to full health, clears projectiles, timers and
// violations. Used when a new round starts.
func (s *System) Reset() {
	s.projectiles.Clear()
	s.respawn.CancelAll()
	for id, w := range s.weapons {
		w.Reset()
		s.health.Remove(id)
		s.health.Register(id)
		s.validator.ClearViolations(id)
	}
}

// TryFire fires from origin along aim if the weapon is off cooldown.
func (s *System) TryFire(playerID string, origin, aim geom.Vector2, now time.Time) (*Projectile, bool) {
	p, err := s.Fire(playerID, Shot{Origin: origin, Aim: aim}, now)
	return p, err == nil
}

// Fire validates and launches a shot. A shot claimed faster than the fire
// rate allows is rejected with a *anticheat.Violation; one arriving during
// server-side cooldown is dropped with ErrCooldown.
func (s *System) Fire(playerID string, shot Shot, now time.Time) (*Projectile, error) {
	w, ok := s.weapons[playerID]
	if !ok {
		return nil, ErrUnknownPlayer
	}
	if !s.health.IsAlive(playerID) || s.respawn.IsRespawning(playerID) {
		return nil, ErrNotAlive
	}

	if !shot.ClientTime.IsZero() && !w.ValidateFireRate(shot.ClientTime) {
		last, _ := w.LastRecorded()
		interval := shot.ClientTime.Sub(last.reference())
		return nil, s.validator.RecordViolation(playerID, anticheat.FireRate,
			float64(interval.Milliseconds()), float64((s.cfg.Weapon.Cooldown - s.cfg.Weapon.RateTolerance).Milliseconds()),
			"", now)
	}
	if !w.CanFire(now) {
		return nil, ErrCooldown
	}

	var rec FireRecord
	switch {
	case !shot.ClientTime.IsZero():
		rec = w.RecordClientFire(now, shot.ClientTime, shot.Seed)
	case shot.Seed != 0:
		rec = w.RecordFireWithSeed(now, shot.Seed)
	default:
		rec = w.RecordFire(now)
	}
	dir := w.ApplySeededSpread(shot.Aim, rec.SpreadSeed)

	p := s.projectiles.Spawn(playerID, shot.Origin, dir, s.cfg.Projectile.Damage, now, false)
	if !shot.ClientTime.IsZero() {
		if latency := now.Sub(shot.ClientTime); latency > 0 {
			p.Latency = latency
		}
	}

	s.bus.Publish(event.ProjectileFired{
		ProjectileID: p.ID,
		OwnerID:      playerID,
		Origin:       shot.Origin,
		Direction:    p.Velocity.Normalize(),
		Sequence:     rec.Sequence,
		SpreadSeed:   rec.SpreadSeed,
	})
	return p, nil
}

// Update completes due respawns, advances projectiles by dt seconds and
// resolves hits against the given player positions. Players are tested in
// id order; each projectile damages at most one player.
func (s *System) Update(dt float64, positions map[string]geom.Vector2, now time.Time) UpdateResult {
	var res UpdateResult

	s.health.Update()
	for _, id := range s.respawn.Ready(now) {
		pos, ok := s.respawn.CompleteRespawn(id, now)
		if !ok {
			continue
		}
		s.health.Respawn(id)
		s.validator.ClearViolations(id)
		res.Respawns = append(res.Respawns, Respawned{PlayerID: id, Position: pos})

		st, _ := s.health.State(id)
		s.bus.Publish(event.PlayerRespawned{PlayerID: id, Position: pos, InvulnerableUntil: st.InvulnerabilityEnd})
	}

	res.Destroyed = s.projectiles.Update(dt)

	targets := make([]string, 0, len(positions))
	for id := range positions {
		targets = append(targets, id)
	}
	sort.Strings(targets)

	for _, p := range s.projectiles.Active() {
		for _, id := range targets {
			if id == p.OwnerID || !s.hittable(id) {
				continue
			}
			compensated, hit := s.hitTest(p, id, positions[id], now)
			if !hit {
				continue
			}
			s.applyHit(&res, p, id, compensated, positions, now)
			break
		}
	}
	return res
}

func (s *System) hittable(playerID string) bool {
	return s.health.IsAlive(playerID) && !s.health.IsInvulnerable(playerID) && !s.respawn.IsRespawning(playerID)
}

// hitTest checks the live position first and then, for shots carrying
// latency, the target as the shooter saw it. The rewind uses the target's
// capsule in the world snapshot; the per-entity buffer is only consulted when
// the world history has no record of the target.
func (s *System) hitTest(p *Projectile, targetID string, live geom.Vector2, now time.Time) (compensated, hit bool) {
	if p.Position.DistanceTo(live) <= s.cfg.HitRadius {
		return false, true
	}
	if p.Latency <= 0 {
		return false, false
	}
	at := now.Add(-p.Latency)
	if _, ok := s.worldState(targetID, at); ok {
		return true, s.ValidateHitAgainstWorld(p, targetID, at)
	}
	return true, s.ValidateHitWithLagCompensation(p, targetID, at)
}

func (s *System) applyHit(res *UpdateResult, p *Projectile, targetID string, compensated bool, positions map[string]geom.Vector2, now time.Time) {
	dmg := s.health.Damage(targetID, p.Damage)
	st, _ := s.health.State(targetID)

	hit := Hit{
		ProjectileID:   p.ID,
		ShooterID:      p.OwnerID,
		TargetID:       targetID,
		Damage:         dmg,
		Remaining:      st.Current,
		Position:       p.Position,
		LagCompensated: compensated,
	}
	res.Hits = append(res.Hits, hit)
	res.Destroyed = append(res.Destroyed, Destroyed{ID: p.ID, OwnerID: p.OwnerID, Position: p.Position, Reason: DestroyHit})
	s.projectiles.Destroy(p)

	s.bus.Publish(event.HitConfirmed{
		ProjectileID:    hit.ProjectileID,
		ShooterID:       hit.ShooterID,
		TargetID:        hit.TargetID,
		HealthDamage:    dmg.HealthDamage,
		ShieldAbsorbed:  dmg.ShieldAbsorbed,
		RemainingHealth: hit.Remaining,
		Position:        hit.Position,
		LagCompensated:  compensated,
	})

	if s.health.IsAlive(targetID) {
		return
	}
	res.Deaths = append(res.Deaths, s.kill(targetID, p.OwnerID, positions, now))
}

func (s *System) kill(victimID, killerID string, positions map[string]geom.Vector2, now time.Time) Death {
	deathPos := positions[victimID]
	enemy := enemyPosition(victimID, killerID, positions)

	timer := s.respawn.StartRespawn(victimID, deathPos, enemy, now)
	teleported := s.cfg.Respawn.TeleportOnDeath
	if teleported {
		// Ghost until the timer completes.
		s.health.SetInvulnerable(victimID, timer.RespawnTime.Sub(now))
	}

	d := Death{
		VictimID:      victimID,
		KillerID:      killerID,
		DeathPosition: deathPos,
		SpawnPosition: timer.SpawnPosition,
		RespawnAt:     timer.RespawnTime,
		Teleported:    teleported,
	}
	s.logger.Debug("player died", "victim", victimID, "killer", killerID, "respawn_at", timer.RespawnTime)
	s.bus.Publish(event.PlayerDeath{
		VictimID:      d.VictimID,
		KillerID:      d.KillerID,
		DeathPosition: d.DeathPosition,
		SpawnPosition: d.SpawnPosition,
		RespawnAt:     d.RespawnAt,
		Teleported:    d.Teleported,
	})
	return d
}

// enemyPosition prefers the killer's position and falls back to the nearest
// other player.
func enemyPosition(victimID, killerID string, positions map[string]geom.Vector2) *geom.Vector2 {
	if pos, ok := positions[killerID]; ok && killerID != victimID {
		return &pos
	}
	victim := positions[victimID]
	var (
		best  geom.Vector2
		found bool
		bestD float64
	)
	for id, pos := range positions {
		if id == victimID {
			continue
		}
		d := victim.DistanceTo(pos)
		if !found || d < bestD {
			best, bestD, found = pos, d, true
		}
	}
	if !found {
		return nil
	}
	return &best
}

// ValidateHitWithLagCompensation rewinds the target to shooterTime and tests
// the projectile against that historical position.
func (s *System) ValidateHitWithLagCompensation(p *Projectile, targetID string, shooterTime time.Time) bool {
	pos, ok := s.lag.PositionAt(targetID, shooterTime)
	if !ok {
		return false
	}
	return p.Position.DistanceTo(pos) <= s.cfg.HitRadius
}

// ValidateHitAgainstWorld tests the projectile, flying at ShotHeight, against
// the target's collision capsule in the world snapshot closest to shooterTime.
func (s *System) ValidateHitAgainstWorld(p *Projectile, targetID string, shooterTime time.Time) bool {
	st, ok := s.worldState(targetID, shooterTime)
	if !ok || !st.Alive {
		return false
	}
	return st.Capsule.IntersectsSphere(geom.Lift(p.Position, s.cfg.ShotHeight), s.cfg.Projectile.Radius)
}

func (s *System) worldState(targetID string, at time.Time) (lagcomp.PlayerState, bool) {
	if s.world == nil {
		return lagcomp.PlayerState{}, false
	}
	snap, ok := s.world.SnapshotAtTime(at)
	if !ok {
		return lagcomp.PlayerState{}, false
	}
	st, ok := snap.Players[targetID]
	return st, ok
}
