package event

import (
	"time"

	"github.com/ugaemi/duel-arena-server/internal/geom"
)

// Type identifies an event kind. Values double as wire message types.
type Type string

// Match lifecycle
const (
	TypeMatchStateChanged Type = "match_state_changed"
	TypeMatchStart        Type = "match_start"
	TypeMatchEnd          Type = "match_end"
)

// Connection
const (
	TypeConnectionEstablished Type = "connection_established"
	TypeConnectionLost        Type = "connection_lost"
)

// Combat
const (
	TypeProjectileFired Type = "projectile_fired"
	TypeHitConfirmed    Type = "hit_confirmed"
	TypePlayerDeath     Type = "player_death"
	TypePlayerRespawned Type = "player_respawned"
)

// Anti-cheat
const (
	TypeViolationDetected Type = "violation_detected"
	TypePlayerKicked      Type = "player_kicked"
)

// Event is implemented by every payload published on a Bus.
type Event interface {
	EventType() Type
}

type MatchStateChanged struct {
	PreviousState string    `json:"previous_state"`
	NewState      string    `json:"new_state"`
	At            time.Time `json:"-"`
}

type MatchStart struct {
	Players []string  `json:"players"`
	At      time.Time `json:"-"`
}

type MatchEnd struct {
	WinnerID string         `json:"winner_id"`
	Reason   string         `json:"reason"`
	Scores   map[string]int `json:"scores"`
	At       time.Time      `json:"-"`
}

type ConnectionEstablished struct {
	PlayerID string `json:"player_id"`
}

type ConnectionLost struct {
	PlayerID string `json:"player_id"`
}

// ProjectileFired carries the spread seed so clients can reproduce the shot.
type ProjectileFired struct {
	ProjectileID uint32       `json:"projectile_id"`
	OwnerID      string       `json:"owner_id"`
	Origin       geom.Vector2 `json:"origin"`
	Direction    geom.Vector2 `json:"direction"`
	Sequence     uint64       `json:"sequence"`
	SpreadSeed   uint32       `json:"spread_seed"`
}

type HitConfirmed struct {
	ProjectileID    uint32       `json:"projectile_id"`
	ShooterID       string       `json:"shooter_id"`
	TargetID        string       `json:"target_id"`
	HealthDamage    float64      `json:"health_damage"`
	ShieldAbsorbed  float64      `json:"shield_absorbed"`
	RemainingHealth float64      `json:"remaining_health"`
	Position        geom.Vector2 `json:"position"`
	LagCompensated  bool         `json:"lag_compensated"`
}

type PlayerDeath struct {
	VictimID      string       `json:"victim_id"`
	KillerID      string       `json:"killer_id"`
	DeathPosition geom.Vector2 `json:"death_position"`
	SpawnPosition geom.Vector2 `json:"spawn_position"`
	RespawnAt     time.Time    `json:"respawn_at"`
	Teleported    bool         `json:"teleported"`
}

type PlayerRespawned struct {
	PlayerID          string       `json:"player_id"`
	Position          geom.Vector2 `json:"position"`
	InvulnerableUntil time.Time    `json:"invulnerable_until"`
}

type ViolationDetected struct {
	PlayerID      string  `json:"player_id"`
	ViolationType string  `json:"violation_type"`
	Detail        string  `json:"detail,omitempty"`
	Count         int     `json:"count"`
	Value         float64 `json:"value"`
	Limit         float64 `json:"limit"`
}

type PlayerKicked struct {
	PlayerID   string `json:"player_id"`
	Violations int    `json:"violations"`
	Reason     string `json:"reason"`
}

func (MatchStateChanged) EventType() Type     { return TypeMatchStateChanged }
func (MatchStart) EventType() Type            { return TypeMatchStart }
func (MatchEnd) EventType() Type              { return TypeMatchEnd }
func (ConnectionEstablished) EventType() Type { return TypeConnectionEstablished }
func (ConnectionLost) EventType() Type        { return TypeConnectionLost }
func (ProjectileFired) EventType() Type       { return TypeProjectileFired }
func (HitConfirmed) EventType() Type          { return TypeHitConfirmed }
func (PlayerDeath) EventType() Type           { return TypePlayerDeath }
func (PlayerRespawned) EventType() Type       { return TypePlayerRespawned }
func (ViolationDetected) EventType() Type     { return TypeViolationDetected }
func (PlayerKicked) EventType() Type          { return TypePlayerKicked }
