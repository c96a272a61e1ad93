package anticheat

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ugaemi/duel-arena-server/internal/event"
	"github.com/ugaemi/duel-arena-server/internal/geom"
	"github.com/ugaemi/duel-arena-server/internal/input"
)

const tickDt = 1.0 / 60

func newTestValidator() (*Validator, *event.Recorder) {
	bus := event.NewBus()
	rec := &event.Recorder{}
	rec.Record(bus)
	return NewValidator(DefaultConfig(), bus, nil), rec
}

func inputAt(server time.Time, skew time.Duration) input.Input {
	return input.Input{ClientTimestamp: server.Add(skew).UnixMilli()}
}

func TestValidateInput_Accepts(t *testing.T) {
	v, rec := newTestValidator()
	now := time.UnixMilli(10_000)

	step := DefaultConfig().MaxSpeed * tickDt
	err := v.ValidateInput("p1", inputAt(now, 100*time.Millisecond), geom.Vec2(0, 0), geom.Vec2(step, 0), true, now, tickDt)

	assert.NoError(t, err)
	assert.Equal(t, 0, v.ViolationCount("p1"))
	assert.Empty(t, rec.Events())
}

func TestValidateInput_SpeedHack(t *testing.T) {
	v, rec := newTestValidator()
	now := time.UnixMilli(10_000)

	err := v.ValidateInput("p1", inputAt(now, 0), geom.Vec2(0, 0), geom.Vec2(5, 0), true, now, tickDt)
	require.Error(t, err)

	var viol *Violation
	require.True(t, errors.As(err, &viol))
	assert.Equal(t, SpeedHack, viol.Type)
	assert.InDelta(t, 300, viol.Value, 0.001)
	assert.Equal(t, 1, v.ViolationCount("p1"))

	events := rec.OfType(event.TypeViolationDetected)
	require.Len(t, events, 1)
	assert.Equal(t, "speed_hack", events[0].(event.ViolationDetected).ViolationType)
	assert.Equal(t, "p1", events[0].(event.ViolationDetected).PlayerID)
}

func TestValidateInput_SpeedTolerance(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		name     string
		speed    float64
		grounded bool
		wantErr  bool
	}{
		{"within tolerance", cfg.MaxSpeed * 1.4, true, false},
		{"above tolerance", cfg.MaxSpeed * 1.6, true, true},
		{"airborne allowance", cfg.MaxSpeed * 1.8, false, false},
		{"beyond airborne allowance", cfg.MaxSpeed * 2.0, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, _ := newTestValidator()
			now := time.UnixMilli(0)
			next := geom.Vec2(tt.speed*tickDt, 0)
			err := v.ValidateInput("p1", inputAt(now, 0), geom.Vec2(0, 0), next, tt.grounded, now, tickDt)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateInput_ZeroDeltaSkipsSpeed(t *testing.T) {
	v, _ := newTestValidator()
	now := time.UnixMilli(0)
	err := v.ValidateInput("p1", inputAt(now, 0), geom.Vec2(0, 0), geom.Vec2(100, 0), true, now, 0)
	assert.NoError(t, err)
}

func TestValidateInput_TimestampMismatch(t *testing.T) {
	tests := []struct {
		name    string
		skew    time.Duration
		wantErr bool
	}{
		{"in sync", 0, false},
		{"client behind within tolerance", -400 * time.Millisecond, false},
		{"client ahead at tolerance", 500 * time.Millisecond, false},
		{"client far behind", -800 * time.Millisecond, true},
		{"client far ahead", 2 * time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, _ := newTestValidator()
			now := time.UnixMilli(50_000)
			err := v.ValidateInput("p1", inputAt(now, tt.skew), geom.Vec2(0, 0), geom.Vec2(0, 0), true, now, tickDt)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var viol *Violation
			require.True(t, errors.As(err, &viol))
			assert.Equal(t, TimestampMismatch, viol.Type)
		})
	}
}

func TestValidateInput_BothViolations(t *testing.T) {
	v, rec := newTestValidator()
	now := time.UnixMilli(50_000)

	err := v.ValidateInput("p1", inputAt(now, 5*time.Second), geom.Vec2(0, 0), geom.Vec2(10, 0), true, now, tickDt)
	require.Error(t, err)
	assert.Equal(t, 2, v.ViolationCount("p1"))
	assert.Len(t, rec.OfType(event.TypeViolationDetected), 2)
}

func TestValidateInput_NonFinitePosition(t *testing.T) {
	v, _ := newTestValidator()
	now := time.UnixMilli(0)
	err := v.ValidateInput("p1", inputAt(now, 0), geom.Vec2(0, 0), geom.Vec2(math.NaN(), 0), true, now, tickDt)

	var viol *Violation
	require.True(t, errors.As(err, &viol))
	assert.Equal(t, InvalidInput, viol.Type)
}

func TestShouldKick_ExactlyOneKickEvent(t *testing.T) {
	v, rec := newTestValidator()
	now := time.UnixMilli(0)

	for i := 0; i < 10; i++ {
		err := v.ValidateInput("p1", inputAt(now, 0), geom.Vec2(0, 0), geom.Vec2(50, 0), true, now, tickDt)
		require.Error(t, err)
	}
	assert.True(t, v.ShouldKick("p1"))
	assert.Len(t, rec.OfType(event.TypePlayerKicked), 1)

	// Further violations keep the kick state but do not re-kick.
	for i := 0; i < 5; i++ {
		v.ValidateInput("p1", inputAt(now, 0), geom.Vec2(0, 0), geom.Vec2(50, 0), true, now, tickDt)
	}
	assert.True(t, v.ShouldKick("p1"))
	assert.Len(t, rec.OfType(event.TypePlayerKicked), 1)

	kick := rec.OfType(event.TypePlayerKicked)[0].(event.PlayerKicked)
	assert.Equal(t, "p1", kick.PlayerID)
	assert.Equal(t, 10, kick.Violations)
}

func TestShouldKick_BelowThreshold(t *testing.T) {
	v, _ := newTestValidator()
	for i := 0; i < 9; i++ {
		v.RecordViolation("p1", SpeedHack, 20, 12, "", time.UnixMilli(0))
	}
	assert.False(t, v.ShouldKick("p1"))
	assert.False(t, v.ShouldKick("unknown"))
}

func TestClearViolations_RearmsKick(t *testing.T) {
	v, rec := newTestValidator()
	for i := 0; i < 10; i++ {
		v.RecordViolation("p1", SpeedHack, 20, 12, "", time.UnixMilli(0))
	}
	require.True(t, v.ShouldKick("p1"))

	v.ClearViolations("p1")
	assert.False(t, v.ShouldKick("p1"))
	assert.Equal(t, 0, v.ViolationCount("p1"))
	_, ok := v.LastViolation("p1")
	assert.False(t, ok)

	for i := 0; i < 10; i++ {
		v.RecordViolation("p1", FireRate, 100, 220, "", time.UnixMilli(0))
	}
	assert.Len(t, rec.OfType(event.TypePlayerKicked), 2)
}

func TestRemovePlayer(t *testing.T) {
	v, _ := newTestValidator()
	v.RecordViolation("p1", SpeedHack, 20, 12, "", time.UnixMilli(0))
	last, ok := v.LastViolation("p1")
	require.True(t, ok)
	assert.Equal(t, SpeedHack, last.Type)

	v.RemovePlayer("p1")
	assert.Equal(t, 0, v.ViolationCount("p1"))
}

func TestViolation_Error(t *testing.T) {
	v := &Violation{PlayerID: "p1", Type: SpeedHack, Value: 20, Limit: 12}
	assert.Equal(t, "speed_hack by p1: 20.00 exceeds 12.00", v.Error())

	v.Detail = "non-finite position"
	assert.Equal(t, "speed_hack by p1: non-finite position", v.Error())
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.KickThreshold = 0
	bad.SpeedTolerance = 0.5
	assert.Error(t, bad.Validate())
}
