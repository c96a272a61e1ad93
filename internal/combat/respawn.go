package combat

import (
	"math/rand/v2"
	"sort"
	"time"

	"github.com/ugaemi/duel-arena-server/internal/geom"
)

// Spawn scoring penalties.
const (
	enemyProximityPenalty = 1000.0
	deathProximityPenalty = 500.0
	deathDistanceWeight   = 0.5
)

// RespawnTimer tracks a dead player waiting to re-enter play.
type RespawnTimer struct {
	PlayerID      string
	RespawnTime   time.Time
	SpawnPosition geom.Vector2
	DeathPosition geom.Vector2
}

// RespawnManager owns respawn timers and picks spawn points.
type RespawnManager struct {
	cfg    RespawnConfig
	spawns []geom.Vector2
	timers map[string]*RespawnTimer
	rng    *rand.Rand
}

// NewRespawnManager creates a manager over the given spawn points.
func NewRespawnManager(cfg RespawnConfig, spawns []geom.Vector2, rng *rand.Rand) *RespawnManager {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	points := make([]geom.Vector2, len(spawns))
	copy(points, spawns)
	return &RespawnManager{
		cfg:    cfg,
		spawns: points,
		timers: make(map[string]*RespawnTimer),
		rng:    rng,
	}
}

// SpawnPoints returns the configured spawn points.
func (r *RespawnManager) SpawnPoints() []geom.Vector2 {
	out := make([]geom.Vector2, len(r.spawns))
	copy(out, r.spawns)
	return out
}

// SelectSpawnPoint scores every spawn point and returns the best one.
//
// With a known enemy position each point scores its distance from the enemy
// plus half its distance from the death position; points inside
// MinEnemyDistance or DeathExclusionRadius take a heavy penalty. Ties go to
// the first point. Without an enemy position a point is drawn uniformly from
// those outside the death exclusion radius (or from all points if none are).
func (r *RespawnManager) SelectSpawnPoint(enemy *geom.Vector2, death *geom.Vector2) (geom.Vector2, bool) {
	if len(r.spawns) == 0 {
		return geom.Vector2{}, false
	}

	if enemy == nil {
		candidates := r.spawns
		if death != nil {
			var outside []geom.Vector2
			for _, sp := range r.spawns {
				if sp.DistanceTo(*death) >= r.cfg.DeathExclusionRadius {
					outside = append(outside, sp)
				}
			}
			if len(outside) > 0 {
				candidates = outside
			}
		}
		return candidates[r.rng.IntN(len(candidates))], true
	}

	best := r.spawns[0]
	bestScore := r.score(best, *enemy, death)
	for _, sp := range r.spawns[1:] {
		if s := r.score(sp, *enemy, death); s > bestScore {
			best, bestScore = sp, s
		}
	}
	return best, true
}

func (r *RespawnManager) score(sp, enemy geom.Vector2, death *geom.Vector2) float64 {
	dEnemy := sp.DistanceTo(enemy)
	score := dEnemy
	if dEnemy < r.cfg.MinEnemyDistance {
		score -= enemyProximityPenalty
	}
	if death != nil {
		dDeath := sp.DistanceTo(*death)
		score += dDeath * deathDistanceWeight
		if dDeath < r.cfg.DeathExclusionRadius {
			score -= deathProximityPenalty
		}
	}
	return score
}

// StartRespawn creates a timer for a player who died at deathPos. The spawn
// point is chosen immediately so the player can be teleported there at once.
// A player with a running timer keeps it.
func (r *RespawnManager) StartRespawn(playerID string, deathPos geom.Vector2, enemy *geom.Vector2, now time.Time) *RespawnTimer {
	if t, ok := r.timers[playerID]; ok {
		return t
	}
	spawn, ok := r.SelectSpawnPoint(enemy, &deathPos)
	if !ok {
		spawn = deathPos
	}
	t := &RespawnTimer{
		PlayerID:      playerID,
		RespawnTime:   now.Add(r.cfg.Delay),
		SpawnPosition: spawn,
		DeathPosition: deathPos,
	}
	r.timers[playerID] = t
	return t
}

// IsRespawning reports whether the player has a pending timer.
func (r *RespawnManager) IsRespawning(playerID string) bool {
	_, ok := r.timers[playerID]
	return ok
}

// Timer returns a copy of the player's pending timer.
func (r *RespawnManager) Timer(playerID string) (RespawnTimer, bool) {
	t, ok := r.timers[playerID]
	if !ok {
		return RespawnTimer{}, false
	}
	return *t, true
}

// Ready returns the players whose timers have expired at now, sorted by id.
func (r *RespawnManager) Ready(now time.Time) []string {
	var ids []string
	for id, t := range r.timers {
		if !now.Before(t.RespawnTime) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// CompleteRespawn consumes an expired timer and returns its spawn position.
// It returns false when no timer exists or it has not expired yet, so a timer
// is consumed exactly once.
func (r *RespawnManager) CompleteRespawn(playerID string, now time.Time) (geom.Vector2, bool) {
	t, ok := r.timers[playerID]
	if !ok || now.Before(t.RespawnTime) {
		return geom.Vector2{}, false
	}
	delete(r.timers, playerID)
	return t.SpawnPosition, true
}

// Cancel drops a pending timer.
func (r *RespawnManager) Cancel(playerID string) {
	delete(r.timers, playerID)
}

// CancelAll drops every pending timer.
func (r *RespawnManager) CancelAll() {
	r.timers = make(map[string]*RespawnTimer)
}
