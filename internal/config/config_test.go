package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ugaemi/duel-arena-server/internal/game"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.AllowedOrigins)
	assert.Equal(t, ArenaDefault, cfg.Arena)
	assert.Equal(t, game.DefaultConfig(), cfg.Game)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/duel")
	t.Setenv("ALLOWED_ORIGINS", "https://duel.test, https://*.duel.test,")
	t.Setenv("INPUT_RATE_PER_SEC", "90.5")
	t.Setenv("ARENA", ArenaRandom)
	t.Setenv("TICK_RATE", "30")
	t.Setenv("KILL_LIMIT", "5")
	t.Setenv("COUNTDOWN_MS", "1500")
	t.Setenv("RESULTS_MS", "2s")
	t.Setenv("KICK_THRESHOLD", "4")
	t.Setenv("FIRE_COOLDOWN_MS", "300")
	t.Setenv("MAX_REWIND_MS", "200")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "postgres://localhost:5432/duel", cfg.DatabaseURL)
	assert.Equal(t, []string{"https://duel.test", "https://*.duel.test"}, cfg.AllowedOrigins)
	assert.Equal(t, 90.5, cfg.InputRate)
	assert.Equal(t, ArenaRandom, cfg.Arena)
	assert.Equal(t, 30, cfg.Game.TickRate)
	assert.Equal(t, 5, cfg.Game.Match.KillLimit)
	assert.Equal(t, 1500*time.Millisecond, cfg.Game.Match.CountdownDuration)
	assert.Equal(t, 2*time.Second, cfg.Game.Match.ResultsDuration)
	assert.Equal(t, 4, cfg.Game.AntiCheat.KickThreshold)
	assert.Equal(t, 300*time.Millisecond, cfg.Game.Combat.Weapon.Cooldown)
	assert.Equal(t, 200*time.Millisecond, cfg.Game.LagComp.MaxRewind)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port", "PORT", "70000"},
		{"arena", "ARENA", "maze"},
		{"tick rate", "TICK_RATE", "0"},
		{"kill limit", "KILL_LIMIT", "-1"},
		{"negative input rate", "INPUT_RATE_PER_SEC", "-5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"unset", "", time.Second},
		{"millis", "250", 250 * time.Millisecond},
		{"duration", "1m", time.Minute},
		{"garbage", "soon", time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.value)
			assert.Equal(t, tt.want, getEnvDuration("TEST_DURATION", time.Second))
		})
	}
}
