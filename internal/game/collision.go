package game

import (
	"time"

	"github.com/ugaemi/duel-arena-server/internal/arena"
	"github.com/ugaemi/duel-arena-server/internal/geom"
	"github.com/ugaemi/duel-arena-server/internal/input"
)

// MoveVector returns the raw movement axes of an input.
func MoveVector(in input.Input) geom.Vector2 {
	return geom.Vec2(in.MovementX, in.MovementY)
}

// moveSpeed returns the ground speed for an input, dash included.
func moveSpeed(cfg MovementConfig, in input.Input) float64 {
	if in.Buttons.Has(input.ButtonDash) {
		return cfg.Speed * cfg.DashMultiplier
	}
	return cfg.Speed
}

// Intended returns where the input claims the player moves in dt seconds,
// before any clamping. Anti-cheat judges this step.
func Intended(cfg MovementConfig, pos geom.Vector2, in input.Input, dt float64) geom.Vector2 {
	return pos.Add(MoveVector(in).Scale(moveSpeed(cfg, in) * dt))
}

// Step returns the authoritative position after applying an accepted input:
// the movement axes are limited to unit length, then the player circle is
// pushed out of barriers and kept inside the arena.
func Step(cfg MovementConfig, m *arena.Map, pos geom.Vector2, in input.Input, dt float64) geom.Vector2 {
	dir := MoveVector(in).Limit(1)
	next := pos.Add(dir.Scale(moveSpeed(cfg, in) * dt))
	if m == nil {
		return next
	}
	return m.ResolveCircle(next, cfg.Radius)
}

// advanceAir counts down airtime and starts a jump when grounded.
func advanceAir(cfg MovementConfig, p *Player, in input.Input, dt time.Duration) {
	if p.airborne > 0 {
		p.airborne -= dt
		if p.airborne < 0 {
			p.airborne = 0
		}
	}
	if p.airborne == 0 && in.Buttons.Has(input.ButtonJump) {
		p.airborne = cfg.JumpAirtime
	}
}
