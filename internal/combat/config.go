package combat

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// WeaponConfig tunes fire-rate gating and spread.
type WeaponConfig struct {
	Cooldown        time.Duration
	SpreadMax       float64       // radians, shots deviate within [-SpreadMax, +SpreadMax]
	RateTolerance   time.Duration // jitter allowance for ValidateFireRate
	FireHistorySize int
}

// ProjectileConfig tunes projectile motion and lifetime.
type ProjectileConfig struct {
	Speed        float64 // units per second
	MaxRange     float64
	Damage       float64
	Radius       float64 // used for barrier collision
	PoolCapacity int
}

// HealthConfig tunes the damage model.
type HealthConfig struct {
	MaxHealth               float64
	MaxShield               float64
	InvulnerabilityDuration time.Duration
}

// RespawnConfig tunes respawn timing and spawn-point scoring.
type RespawnConfig struct {
	Delay                time.Duration
	MinEnemyDistance     float64 // spawns closer than this to the enemy are penalised
	DeathExclusionRadius float64 // spawns closer than this to the death spot are penalised
	TeleportOnDeath      bool
}

// Config aggregates every combat tunable.
type Config struct {
	Weapon     WeaponConfig
	Projectile ProjectileConfig
	Health     HealthConfig
	Respawn    RespawnConfig

	// HitRadius is the circle-distance threshold between a projectile and a
	// player centre.
	HitRadius float64
	// ShotHeight is the height projectiles fly at, used for capsule tests.
	ShotHeight float64
}

// DefaultConfig returns duel defaults: a 4 shots/s rifle, 100 hp and a 3 s respawn.
func DefaultConfig() Config {
	return Config{
		Weapon: WeaponConfig{
			Cooldown:        250 * time.Millisecond,
			SpreadMax:       2 * math.Pi / 180,
			RateTolerance:   30 * time.Millisecond,
			FireHistorySize: 32,
		},
		Projectile: ProjectileConfig{
			Speed:        40,
			MaxRange:     60,
			Damage:       25,
			Radius:       0.15,
			PoolCapacity: 64,
		},
		Health: HealthConfig{
			MaxHealth:               100,
			MaxShield:               50,
			InvulnerabilityDuration: 2 * time.Second,
		},
		Respawn: RespawnConfig{
			Delay:                3 * time.Second,
			MinEnemyDistance:     15,
			DeathExclusionRadius: 10,
			TeleportOnDeath:      true,
		},
		HitRadius:  0.75,
		ShotHeight: 1.2,
	}
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("combat: "+format, args...))
		}
	}

	check(c.Weapon.Cooldown > 0, "weapon cooldown must be positive, got %s", c.Weapon.Cooldown)
	check(c.Weapon.SpreadMax >= 0 && c.Weapon.SpreadMax < math.Pi, "spread must be in [0, pi), got %v", c.Weapon.SpreadMax)
	check(c.Weapon.RateTolerance >= 0 && c.Weapon.RateTolerance < c.Weapon.Cooldown, "rate tolerance must be in [0, cooldown), got %s", c.Weapon.RateTolerance)
	check(c.Weapon.FireHistorySize > 0, "fire history size must be positive")
	check(c.Projectile.Speed > 0, "projectile speed must be positive")
	check(c.Projectile.MaxRange > 0, "projectile range must be positive")
	check(c.Projectile.Damage > 0, "projectile damage must be positive")
	check(c.Projectile.Radius >= 0, "projectile radius must not be negative")
	check(c.Projectile.PoolCapacity > 0, "projectile pool capacity must be positive")
	check(c.Health.MaxHealth > 0, "max health must be positive")
	check(c.Health.MaxShield >= 0, "max shield must not be negative")
	check(c.Health.InvulnerabilityDuration >= 0, "invulnerability duration must not be negative")
	check(c.Respawn.Delay >= 0, "respawn delay must not be negative")
	check(c.Respawn.MinEnemyDistance >= 0 && c.Respawn.DeathExclusionRadius >= 0, "spawn distances must not be negative")
	check(c.HitRadius > 0, "hit radius must be positive")

	return errors.Join(errs...)
}
