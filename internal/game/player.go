package game

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/ugaemi/duel-arena-server/internal/geom"
)

type Player struct {
	ID       string       `json:"id"`
	Nickname string       `json:"nickname"`
	Position geom.Vector2 `json:"position"`
	Velocity geom.Vector2 `json:"velocity"`
	Yaw      float64      `json:"yaw"`

	// LastInputSeq is the newest input applied, echoed in snapshots so the
	// client can drop acknowledged predictions.
	LastInputSeq uint32 `json:"last_input_seq"`

	airborne time.Duration
}

func NewPlayer(nickname string) *Player {
	return &Player{
		ID:       uuid.New().String(),
		Nickname: nickname,
	}
}

// Aim returns the unit facing direction.
func (p *Player) Aim() geom.Vector2 {
	return geom.FromAngle(p.Yaw)
}

// Grounded reports whether the player is on the floor.
func (p *Player) Grounded() bool {
	return p.airborne <= 0
}

// Turn adds a yaw delta in radians, keeping yaw in (-pi, pi].
func (p *Player) Turn(delta float64) {
	if delta == 0 || math.IsNaN(delta) || math.IsInf(delta, 0) {
		return
	}
	p.Yaw = math.Remainder(p.Yaw+delta, 2*math.Pi)
}

func (p *Player) SetPosition(pos geom.Vector2) {
	p.Position = pos
	p.Velocity = geom.Vector2{}
}

// Capsule returns the player's collision capsule.
func (p *Player) Capsule(cfg MovementConfig) geom.Capsule {
	return geom.UprightCapsule(p.Position, cfg.Radius, cfg.Height)
}

// Reset clears per-round motion state.
func (p *Player) Reset() {
	p.Velocity = geom.Vector2{}
	p.airborne = 0
}
