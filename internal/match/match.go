package match

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ugaemi/duel-arena-server/internal/event"
)

type State int

const (
	StateWaiting State = iota
	StateCountdown
	StatePlaying
	StateEnded
	StateCleanup
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateCountdown:
		return "countdown"
	case StatePlaying:
		return "playing"
	case StateEnded:
		return "ended"
	case StateCleanup:
		return "cleanup"
	default:
		return "unknown"
	}
}

// End reasons reported in match_end.
const (
	ReasonKillLimit  = "kill_limit"
	ReasonDisconnect = "disconnect"
)

var (
	ErrMatchFull       = errors.New("match is full")
	ErrMatchInProgress = errors.New("match already in progress")
)

type Config struct {
	RequiredPlayers   int
	CountdownDuration time.Duration
	ResultsDuration   time.Duration
	KillLimit         int
}

func DefaultConfig() Config {
	return Config{
		RequiredPlayers:   2,
		CountdownDuration: 3 * time.Second,
		ResultsDuration:   5 * time.Second,
		KillLimit:         10,
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.RequiredPlayers < 2 {
		errs = append(errs, fmt.Errorf("match: RequiredPlayers must be at least 2, got %d", c.RequiredPlayers))
	}
	if c.CountdownDuration < 0 || c.ResultsDuration < 0 {
		errs = append(errs, errors.New("match: durations must not be negative"))
	}
	if c.KillLimit <= 0 {
		errs = append(errs, fmt.Errorf("match: KillLimit must be positive, got %d", c.KillLimit))
	}
	return errors.Join(errs...)
}

// Match is the lifecycle of one duel. Duration-based transitions happen only
// in Update, so time is whatever the caller says it is. A Match is owned by
// its room's loop and is not safe for concurrent use.
type Match struct {
	id     string
	cfg    Config
	bus    *event.Bus
	logger *slog.Logger

	state      State
	stateSince time.Time // zero until the next Update stamps it
	lastNow    time.Time

	players   []string // connection order
	scores    map[string]int
	winner    string
	endReason string
	startedAt time.Time
}

// New creates a match in the waiting state.
func New(cfg Config, bus *event.Bus, logger *slog.Logger) *Match {
	if logger == nil {
		logger = slog.Default()
	}
	return &Match{
		id:     uuid.NewString(),
		cfg:    cfg,
		bus:    bus,
		logger: logger,
		state:  StateWaiting,
		scores: make(map[string]int),
	}
}

func (m *Match) ID() string        { return m.id }
func (m *Match) State() State      { return m.state }
func (m *Match) Winner() string    { return m.winner }
func (m *Match) EndReason() string { return m.endReason }
func (m *Match) Config() Config    { return m.cfg }

// StartedAt returns when play began, zero before that.
func (m *Match) StartedAt() time.Time { return m.startedAt }

// Players returns connected players in connection order.
func (m *Match) Players() []string {
	out := make([]string, len(m.players))
	copy(out, m.players)
	return out
}

// HasPlayer reports whether the player is connected.
func (m *Match) HasPlayer(playerID string) bool {
	return m.indexOf(playerID) >= 0
}

// Score returns a player's kill count.
func (m *Match) Score(playerID string) int {
	return m.scores[playerID]
}

// Scores returns a copy of every kill count.
func (m *Match) Scores() map[string]int {
	out := make(map[string]int, len(m.scores))
	for id, s := range m.scores {
		out[id] = s
	}
	return out
}

// IsActive reports whether combat is live.
func (m *Match) IsActive() bool {
	return m.state == StatePlaying
}

// CountdownRemaining returns the time left before play starts, or zero
// outside the countdown.
func (m *Match) CountdownRemaining(now time.Time) time.Duration {
	if m.state != StateCountdown {
		return 0
	}
	if m.stateSince.IsZero() {
		return m.cfg.CountdownDuration
	}
	left := m.cfg.CountdownDuration - now.Sub(m.stateSince)
	if left < 0 {
		return 0
	}
	return left
}

// PlayerConnected admits a player. The countdown starts when the last
// required player arrives. Reconnecting a connected player is a no-op.
func (m *Match) PlayerConnected(playerID string) error {
	if m.HasPlayer(playerID) {
		return nil
	}
	if len(m.players) >= m.cfg.RequiredPlayers {
		return ErrMatchFull
	}
	if m.state != StateWaiting {
		return ErrMatchInProgress
	}

	m.players = append(m.players, playerID)
	m.scores[playerID] = 0
	m.bus.Publish(event.ConnectionEstablished{PlayerID: playerID})
	m.logger.Info("player connected", "match", m.id, "player", playerID, "players", len(m.players))

	if len(m.players) == m.cfg.RequiredPlayers {
		m.transition(StateCountdown, time.Time{})
	}
	return nil
}

// PlayerDisconnected removes a player. During the countdown the match falls
// back to waiting; during play the remaining player wins.
func (m *Match) PlayerDisconnected(playerID string) {
	i := m.indexOf(playerID)
	if i < 0 {
		return
	}
	m.players = append(m.players[:i], m.players[i+1:]...)
	m.bus.Publish(event.ConnectionLost{PlayerID: playerID})
	m.logger.Info("player disconnected", "match", m.id, "player", playerID, "state", m.state.String())

	switch m.state {
	case StateWaiting:
		delete(m.scores, playerID)
	case StateCountdown:
		delete(m.scores, playerID)
		m.transition(StateWaiting, time.Time{})
	case StatePlaying:
		winner := ""
		if len(m.players) > 0 {
			winner = m.players[0]
		}
		m.end(winner, ReasonDisconnect)
	}
}

// RecordKill credits killerID and ends the match once the kill limit is
// reached. Kills outside play, self-kills and kills by unknown players are
// ignored; the return value reports whether the kill counted.
func (m *Match) RecordKill(killerID, victimID string) bool {
	if m.state != StatePlaying || killerID == victimID || !m.HasPlayer(killerID) {
		return false
	}
	m.scores[killerID]++

	if m.scores[killerID] >= m.cfg.KillLimit {
		m.end(m.leader(), ReasonKillLimit)
	}
	return true
}

// Update drives the countdown and results timers.
func (m *Match) Update(now time.Time) {
	m.lastNow = now
	if m.stateSince.IsZero() {
		m.stateSince = now
	}

	switch m.state {
	case StateCountdown:
		if now.Sub(m.stateSince) >= m.cfg.CountdownDuration {
			m.transition(StatePlaying, now)
			m.startedAt = now
			m.bus.Publish(event.MatchStart{Players: m.Players(), At: now})
		}
	case StateEnded:
		if now.Sub(m.stateSince) >= m.cfg.ResultsDuration {
			m.transition(StateCleanup, now)
		}
	}
}

func (m *Match) end(winner, reason string) {
	m.winner = winner
	m.endReason = reason
	m.transition(StateEnded, time.Time{})
	m.bus.Publish(event.MatchEnd{WinnerID: winner, Reason: reason, Scores: m.Scores(), At: m.lastNow})
	m.logger.Info("match ended", "match", m.id, "winner", winner, "reason", reason)
}

// leader returns the highest scorer, earliest connection first on ties.
func (m *Match) leader() string {
	best, bestScore := "", -1
	for _, id := range m.players {
		if s := m.scores[id]; s > bestScore {
			best, bestScore = id, s
		}
	}
	return best
}

// transition switches state. A zero since leaves the new state unstamped
// until the next Update, so timers never start from a stale tick.
func (m *Match) transition(next State, since time.Time) {
	prev := m.state
	m.state = next
	m.stateSince = since
	m.bus.Publish(event.MatchStateChanged{PreviousState: prev.String(), NewState: next.String(), At: m.lastNow})
	m.logger.Debug("match state changed", "match", m.id, "from", prev.String(), "to", next.String())
}

func (m *Match) indexOf(playerID string) int {
	for i, id := range m.players {
		if id == playerID {
			return i
		}
	}
	return -1
}
