package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ugaemi/duel-arena-server/internal/game"
)

// Arena layouts.
const (
	ArenaDefault = "default"
	ArenaRandom  = "random"
)

type Config struct {
	Port      int
	LogLevel  string
	LogFormat string
	// DatabaseURL enables the anti-cheat audit store. Empty disables it.
	DatabaseURL string
	// MetricsAddr serves /metrics on a separate listener. Empty serves it on
	// the main router.
	MetricsAddr    string
	AllowedOrigins []string
	InputRate      float64
	InputBurst     int
	Arena          string
	Game           game.Config
}

// Load reads configuration from the environment, after loading .env if one
// exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnvInt("PORT", 8080),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		MetricsAddr:    getEnv("METRICS_ADDR", ""),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS"),
		InputRate:      getEnvFloat("INPUT_RATE_PER_SEC", 120),
		InputBurst:     getEnvInt("INPUT_BURST", 30),
		Arena:          getEnv("ARENA", ArenaDefault),
		Game:           loadGame(),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadGame applies gameplay overrides on top of game.DefaultConfig.
func loadGame() game.Config {
	g := game.DefaultConfig()
	g.TickRate = getEnvInt("TICK_RATE", g.TickRate)
	g.Match.KillLimit = getEnvInt("KILL_LIMIT", g.Match.KillLimit)
	g.Match.CountdownDuration = getEnvDuration("COUNTDOWN_MS", g.Match.CountdownDuration)
	g.Match.ResultsDuration = getEnvDuration("RESULTS_MS", g.Match.ResultsDuration)
	g.AntiCheat.MaxSpeed = getEnvFloat("MAX_MOVE_SPEED", g.AntiCheat.MaxSpeed)
	g.AntiCheat.SpeedTolerance = getEnvFloat("SPEED_TOLERANCE", g.AntiCheat.SpeedTolerance)
	g.AntiCheat.TimestampTolerance = getEnvDuration("TIMESTAMP_TOLERANCE_MS", g.AntiCheat.TimestampTolerance)
	g.AntiCheat.KickThreshold = getEnvInt("KICK_THRESHOLD", g.AntiCheat.KickThreshold)
	g.Combat.Weapon.Cooldown = getEnvDuration("FIRE_COOLDOWN_MS", g.Combat.Weapon.Cooldown)
	g.LagComp.MaxRewind = getEnvDuration("MAX_REWIND_MS", g.LagComp.MaxRewind)
	return g
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("config: PORT must be in [1, 65535], got %d", c.Port))
	}
	if c.InputRate < 0 {
		errs = append(errs, fmt.Errorf("config: INPUT_RATE_PER_SEC must not be negative, got %v", c.InputRate))
	}
	if c.InputRate > 0 && c.InputBurst <= 0 {
		errs = append(errs, fmt.Errorf("config: INPUT_BURST must be positive, got %d", c.InputBurst))
	}
	if c.Arena != ArenaDefault && c.Arena != ArenaRandom {
		errs = append(errs, fmt.Errorf("config: ARENA must be %q or %q, got %q", ArenaDefault, ArenaRandom, c.Arena))
	}
	if err := c.Game.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvDuration accepts a Go duration ("250ms") or a bare number of
// milliseconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

func getEnvList(key string) []string {
	var out []string
	for _, s := range strings.Split(os.Getenv(key), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
