package game

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ugaemi/duel-arena-server/internal/arena"
	"github.com/ugaemi/duel-arena-server/internal/geom"
	"github.com/ugaemi/duel-arena-server/internal/input"
)

func TestIntended(t *testing.T) {
	cfg := DefaultConfig().Movement

	tests := []struct {
		name string
		in   input.Input
		want geom.Vector2
	}{
		{"idle", input.Input{}, geom.Vec2(0, 0)},
		{"right", input.Input{MovementX: 1}, geom.Vec2(4, 0)},
		{"dash", input.Input{MovementY: -1, Buttons: input.ButtonDash}, geom.Vec2(0, -5.6)},
		{"oversized axes are not clamped", input.Input{MovementX: 3}, geom.Vec2(12, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Intended(cfg, geom.Vec2(0, 0), tt.in, 0.5)
			assert.InDelta(t, tt.want.X, got.X, 1e-9)
			assert.InDelta(t, tt.want.Y, got.Y, 1e-9)
		})
	}
}

func TestStep(t *testing.T) {
	cfg := DefaultConfig().Movement

	t.Run("diagonal is limited to unit length", func(t *testing.T) {
		got := Step(cfg, nil, geom.Vec2(0, 0), input.Input{MovementX: 1, MovementY: 1}, 1)
		assert.InDelta(t, cfg.Speed, got.Len(), 1e-9)
	})

	t.Run("oversized axes are clamped", func(t *testing.T) {
		got := Step(cfg, nil, geom.Vec2(0, 0), input.Input{MovementX: 3}, 1)
		assert.InDelta(t, cfg.Speed, got.X, 1e-9)
	})

	t.Run("kept inside arena", func(t *testing.T) {
		m := arena.Default()
		got := Step(cfg, m, geom.Vec2(1, 20), input.Input{MovementX: -1}, 1)
		assert.Equal(t, geom.Vec2(cfg.Radius, 20), got)
	})

	t.Run("pushed out of barrier", func(t *testing.T) {
		m := arena.Default()
		// Centre pillar spans x 30..34.
		got := Step(cfg, m, geom.Vec2(28, 20), input.Input{MovementX: 1}, 0.25)
		assert.False(t, m.HitsBarrier(got, cfg.Radius*0.99))
		assert.InDelta(t, 29.5, got.X, 1e-9)
	})
}

func TestAdvanceAir(t *testing.T) {
	cfg := DefaultConfig().Movement
	p := NewPlayer("a")
	tick := 100 * time.Millisecond

	advanceAir(cfg, p, input.Input{Buttons: input.ButtonJump}, tick)
	assert.False(t, p.Grounded())

	// No double jump while airborne.
	advanceAir(cfg, p, input.Input{Buttons: input.ButtonJump}, tick)
	assert.Equal(t, cfg.JumpAirtime-tick, p.airborne)

	for i := 0; i < 4; i++ {
		advanceAir(cfg, p, input.Input{}, tick)
	}
	assert.True(t, p.Grounded())
}

func TestPlayer_Turn(t *testing.T) {
	p := NewPlayer("a")
	require.NotEmpty(t, p.ID)

	p.Turn(math.Pi / 2)
	assert.InDelta(t, math.Pi/2, p.Yaw, 1e-9)
	assert.InDelta(t, 1, p.Aim().Y, 1e-9)

	p.Turn(math.Pi)
	assert.InDelta(t, -math.Pi/2, p.Yaw, 1e-9)

	p.Turn(math.NaN())
	assert.InDelta(t, -math.Pi/2, p.Yaw, 1e-9)
}
