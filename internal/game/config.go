package game

import (
	"errors"
	"fmt"
	"time"

	"github.com/ugaemi/duel-arena-server/internal/anticheat"
	"github.com/ugaemi/duel-arena-server/internal/combat"
	"github.com/ugaemi/duel-arena-server/internal/lagcomp"
	"github.com/ugaemi/duel-arena-server/internal/match"
)

// MovementConfig tunes player motion.
type MovementConfig struct {
	Speed          float64 // metres per second
	DashMultiplier float64
	Radius         float64
	Height         float64
	JumpAirtime    time.Duration
}

// Config is everything a Simulation needs.
type Config struct {
	TickRate         int
	SnapshotEvery    int
	MaxInputsPerTick int

	Movement  MovementConfig
	Combat    combat.Config
	AntiCheat anticheat.Config
	LagComp   lagcomp.Config
	Match     match.Config
}

func DefaultConfig() Config {
	ac := anticheat.DefaultConfig()
	ac.MaxSpeed = MoveSpeed

	mc := match.DefaultConfig()
	mc.RequiredPlayers = MaxPlayers

	return Config{
		TickRate:         TickRate,
		SnapshotEvery:    SnapshotEvery,
		MaxInputsPerTick: MaxInputsPerTick,
		Movement: MovementConfig{
			Speed:          MoveSpeed,
			DashMultiplier: DashMultiplier,
			Radius:         PlayerRadius,
			Height:         PlayerHeight,
			JumpAirtime:    JumpAirtime,
		},
		Combat:    combat.DefaultConfig(),
		AntiCheat: ac,
		LagComp:   lagcomp.DefaultConfig(),
		Match:     mc,
	}
}

// TickInterval is the fixed simulation step.
func (c Config) TickInterval() time.Duration {
	if c.TickRate <= 0 {
		return 0
	}
	return time.Second / time.Duration(c.TickRate)
}

// Validate checks the aggregate and every nested config.
func (c Config) Validate() error {
	var errs []error
	if c.TickRate <= 0 || c.TickRate > 240 {
		errs = append(errs, fmt.Errorf("game: tick rate must be in [1, 240], got %d", c.TickRate))
	}
	if c.SnapshotEvery <= 0 {
		errs = append(errs, fmt.Errorf("game: snapshot interval must be positive, got %d", c.SnapshotEvery))
	}
	if c.MaxInputsPerTick <= 0 {
		errs = append(errs, fmt.Errorf("game: max inputs per tick must be positive, got %d", c.MaxInputsPerTick))
	}
	if c.Movement.Speed <= 0 || c.Movement.DashMultiplier < 1 {
		errs = append(errs, errors.New("game: movement speed must be positive and dash multiplier at least 1"))
	}
	if c.Movement.Radius <= 0 || c.Movement.Height < 2*c.Movement.Radius {
		errs = append(errs, errors.New("game: player radius must be positive and height at least its diameter"))
	}
	if c.Movement.JumpAirtime < 0 {
		errs = append(errs, errors.New("game: jump airtime must not be negative"))
	}
	// Honest dashing must stay under the grounded speed limit.
	if limit := c.AntiCheat.MaxSpeed * c.AntiCheat.SpeedTolerance; c.Movement.Speed*c.Movement.DashMultiplier > limit {
		errs = append(errs, fmt.Errorf("game: dash speed %.2f exceeds anti-cheat limit %.2f",
			c.Movement.Speed*c.Movement.DashMultiplier, limit))
	}

	errs = append(errs,
		c.Combat.Validate(),
		c.AntiCheat.Validate(),
		c.LagComp.Validate(),
		c.Match.Validate(),
	)
	return errors.Join(errs...)
}
