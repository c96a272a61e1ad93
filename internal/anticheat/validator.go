package anticheat

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/ugaemi/duel-arena-server/internal/event"
	"github.com/ugaemi/duel-arena-server/internal/geom"
	"github.com/ugaemi/duel-arena-server/internal/input"
)

// ViolationType classifies rejected input.
type ViolationType string

const (
	SpeedHack         ViolationType = "speed_hack"
	TimestampMismatch ViolationType = "timestamp_mismatch"
	FireRate          ViolationType = "fire_rate"
	InvalidInput      ViolationType = "invalid_input"
)

// Violation is a rejected input. It implements error.
type Violation struct {
	PlayerID string
	Type     ViolationType
	Value    float64
	Limit    float64
	Detail   string
	At       time.Time
}

func (v *Violation) Error() string {
	if v.Detail != "" {
		return fmt.Sprintf("%s by %s: %s", v.Type, v.PlayerID, v.Detail)
	}
	return fmt.Sprintf("%s by %s: %.2f exceeds %.2f", v.Type, v.PlayerID, v.Value, v.Limit)
}

// Config holds anti-cheat thresholds.
type Config struct {
	// MaxSpeed is the fastest legitimate movement speed in units per second.
	MaxSpeed float64
	// SpeedTolerance multiplies MaxSpeed to absorb dashes and float error.
	SpeedTolerance float64
	// AirborneTolerance further multiplies the limit when the player was not
	// grounded at the start of the move.
	AirborneTolerance float64
	// TimestampTolerance is the largest accepted client/server clock skew.
	TimestampTolerance time.Duration
	// KickThreshold is the violation count at which a player is kicked.
	KickThreshold int
}

// DefaultConfig returns conservative defaults.
func DefaultConfig() Config {
	return Config{
		MaxSpeed:           8,
		SpeedTolerance:     1.5,
		AirborneTolerance:  1.25,
		TimestampTolerance: 500 * time.Millisecond,
		KickThreshold:      10,
	}
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	var errs []error
	if c.MaxSpeed <= 0 {
		errs = append(errs, errors.New("anticheat: MaxSpeed must be positive"))
	}
	if c.SpeedTolerance < 1 || c.AirborneTolerance < 1 {
		errs = append(errs, errors.New("anticheat: tolerances must be >= 1"))
	}
	if c.TimestampTolerance <= 0 {
		errs = append(errs, errors.New("anticheat: TimestampTolerance must be positive"))
	}
	if c.KickThreshold <= 0 {
		errs = append(errs, fmt.Errorf("anticheat: KickThreshold must be positive, got %d", c.KickThreshold))
	}
	return errors.Join(errs...)
}

type record struct {
	count  int
	last   Violation
	kicked bool
}

// Validator checks per-input movement speed and clock skew, counts violations
// per player and decides kicks.
type Validator struct {
	cfg     Config
	records map[string]*record
	bus     *event.Bus
	logger  *slog.Logger
}

// NewValidator creates a validator publishing to bus (which may be nil).
func NewValidator(cfg Config, bus *event.Bus, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		cfg:     cfg,
		records: make(map[string]*record),
		bus:     bus,
		logger:  logger,
	}
}

// ValidateInput checks one movement step. It returns nil when the input is
// acceptable, otherwise the recorded violations joined into one error; use
// errors.As with *Violation to inspect them.
func (v *Validator) ValidateInput(playerID string, in input.Input, prev, next geom.Vector2, wasGrounded bool, serverTime time.Time, dt float64) error {
	var errs []error

	if !prev.IsFinite() || !next.IsFinite() {
		errs = append(errs, v.RecordViolation(playerID, InvalidInput, 0, 0, "non-finite position", serverTime))
	} else if dt > 0 {
		speed := next.Sub(prev).Len() / dt
		limit := v.speedLimit(wasGrounded)
		if speed > limit {
			errs = append(errs, v.RecordViolation(playerID, SpeedHack, speed, limit, "", serverTime))
		}
	}

	skew := serverTime.Sub(in.ClientTime())
	if skew < 0 {
		skew = -skew
	}
	if skew > v.cfg.TimestampTolerance {
		errs = append(errs, v.RecordViolation(playerID, TimestampMismatch,
			float64(skew.Milliseconds()), float64(v.cfg.TimestampTolerance.Milliseconds()), "", serverTime))
	}

	return errors.Join(errs...)
}

func (v *Validator) speedLimit(wasGrounded bool) float64 {
	limit := v.cfg.MaxSpeed * v.cfg.SpeedTolerance
	if !wasGrounded {
		limit *= v.cfg.AirborneTolerance
	}
	return limit
}

// RecordViolation counts a violation, publishes violation_detected and, the
// first time the count reaches the kick threshold, player_kicked.
func (v *Validator) RecordViolation(playerID string, kind ViolationType, value, limit float64, detail string, at time.Time) *Violation {
	r, ok := v.records[playerID]
	if !ok {
		r = &record{}
		v.records[playerID] = r
	}

	viol := &Violation{
		PlayerID: playerID,
		Type:     kind,
		Value:    sanitize(value),
		Limit:    sanitize(limit),
		Detail:   detail,
		At:       at,
	}
	r.count++
	r.last = *viol

	v.logger.Warn("violation detected", "player", playerID, "type", string(kind), "count", r.count, "value", viol.Value, "limit", viol.Limit)
	v.bus.Publish(event.ViolationDetected{
		PlayerID:      playerID,
		ViolationType: string(kind),
		Detail:        detail,
		Count:         r.count,
		Value:         viol.Value,
		Limit:         viol.Limit,
	})

	if !r.kicked && r.count >= v.cfg.KickThreshold {
		r.kicked = true
		v.logger.Info("player kicked", "player", playerID, "violations", r.count, "last", string(kind))
		v.bus.Publish(event.PlayerKicked{
			PlayerID:   playerID,
			Violations: r.count,
			Reason:     string(kind),
		})
	}
	return viol
}

// ShouldKick reports whether the player's violations reached the threshold.
func (v *Validator) ShouldKick(playerID string) bool {
	r, ok := v.records[playerID]
	return ok && r.count >= v.cfg.KickThreshold
}

// ViolationCount returns the player's current violation count.
func (v *Validator) ViolationCount(playerID string) int {
	if r, ok := v.records[playerID]; ok {
		return r.count
	}
	return 0
}

// LastViolation returns the most recent violation of a player.
func (v *Validator) LastViolation(playerID string) (Violation, bool) {
	r, ok := v.records[playerID]
	if !ok || r.count == 0 {
		return Violation{}, false
	}
	return r.last, true
}

// ClearViolations resets a player's count, re-arming the kick.
func (v *Validator) ClearViolations(playerID string) {
	delete(v.records, playerID)
}

// RemovePlayer forgets a player entirely.
func (v *Validator) RemovePlayer(playerID string) {
	delete(v.records, playerID)
}

func sanitize(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
