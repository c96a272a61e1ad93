package game

import (
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ugaemi/duel-arena-server/internal/anticheat"
	"github.com/ugaemi/duel-arena-server/internal/arena"
	"github.com/ugaemi/duel-arena-server/internal/combat"
	"github.com/ugaemi/duel-arena-server/internal/event"
	"github.com/ugaemi/duel-arena-server/internal/geom"
	"github.com/ugaemi/duel-arena-server/internal/input"
	"github.com/ugaemi/duel-arena-server/internal/match"
)

var start = time.UnixMilli(1_700_000_000_000)

type testSim struct {
	*Simulation
	rec *event.Recorder
	now time.Time
	seq uint32
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Combat.Weapon.SpreadMax = 0
	cfg.Match.CountdownDuration = time.Second
	cfg.Match.KillLimit = 2
	return cfg
}

// openArena has no barriers and two spawn points facing each other.
func openArena(t *testing.T) *arena.Map {
	t.Helper()
	m, err := arena.New("open", geom.Rect(0, 0, 40, 20), nil,
		[]geom.Vector2{geom.Vec2(5, 10), geom.Vec2(35, 10)})
	require.NoError(t, err)
	return m
}

func newTestSim(t *testing.T, cfg Config) *testSim {
	t.Helper()
	bus := event.NewBus()
	rec := &event.Recorder{}
	rec.Record(bus)

	s, err := NewSimulation(cfg, openArena(t), bus, nil, rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return &testSim{Simulation: s, rec: rec, now: start}
}

// tick advances by one tick interval.
func (ts *testSim) tick() TickResult {
	ts.now = ts.now.Add(ts.cfg.TickInterval())
	return ts.Tick(ts.now)
}

// send queues an input stamped with the time of the next tick.
func (ts *testSim) send(playerID string, in input.Input) {
	ts.seq++
	in.SequenceNumber = ts.seq
	if in.ClientTimestamp == 0 {
		in.ClientTimestamp = ts.now.Add(ts.cfg.TickInterval()).UnixMilli()
	}
	ts.Enqueue(playerID, in)
}

// startMatch joins two players and runs the countdown.
func startMatch(t *testing.T, cfg Config) (ts *testSim, a, b *Player) {
	t.Helper()
	ts = newTestSim(t, cfg)

	a, err := ts.AddPlayer("alice")
	require.NoError(t, err)
	b, err = ts.AddPlayer("bob")
	require.NoError(t, err)
	require.Equal(t, match.StateCountdown, ts.Match().State())

	ts.Tick(ts.now)
	ts.now = ts.now.Add(cfg.Match.CountdownDuration)
	res := ts.Tick(ts.now)
	require.Equal(t, match.StatePlaying, res.State)
	return ts, a, b
}

func TestNewSimulation_Errors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickRate = 0
	_, err := NewSimulation(cfg, arena.Default(), nil, nil, nil)
	assert.Error(t, err)

	_, err = NewSimulation(DefaultConfig(), nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestSimulation_AddPlayer(t *testing.T) {
	ts := newTestSim(t, testConfig())

	a, err := ts.AddPlayer("alice")
	require.NoError(t, err)
	assert.Equal(t, geom.Vec2(5, 10), a.Position)
	assert.True(t, ts.Combat().HasPlayer(a.ID))

	_, err = ts.AddPlayer("bob")
	require.NoError(t, err)
	_, err = ts.AddPlayer("carol")
	assert.ErrorIs(t, err, match.ErrMatchFull)
	assert.Len(t, ts.Players(), 2)
	assert.Len(t, ts.rec.OfType(event.TypeConnectionEstablished), 2)
}

func TestSimulation_RoundStart(t *testing.T) {
	ts, a, b := startMatch(t, testConfig())

	assert.ElementsMatch(t, []geom.Vector2{geom.Vec2(5, 10), geom.Vec2(35, 10)}, []geom.Vector2{a.Position, b.Position})
	// Both face the arena centre.
	center := geom.Vec2(20, 10)
	for _, p := range []*Player{a, b} {
		want := center.Sub(p.Position).Normalize()
		assert.InDelta(t, want.X, p.Aim().X, 1e-9)
	}
	require.Len(t, ts.rec.OfType(event.TypeMatchStart), 1)
}

func TestSimulation_NoMovementBeforePlay(t *testing.T) {
	ts := newTestSim(t, testConfig())
	a, err := ts.AddPlayer("alice")
	require.NoError(t, err)
	before := a.Position

	ts.send(a.ID, input.Input{MovementX: 1, LookDeltaX: 0.5})
	res := ts.tick()

	assert.Equal(t, match.StateWaiting, res.State)
	assert.Equal(t, before, a.Position)
	assert.InDelta(t, 0.5, a.Yaw, 1e-9, "look input is still applied")
	assert.Equal(t, ts.seq, a.LastInputSeq)
	assert.Empty(t, res.Rejected)
}

func TestSimulation_Movement(t *testing.T) {
	ts, a, _ := startMatch(t, testConfig())
	before := a.Position

	ts.send(a.ID, input.Input{MovementY: 1})
	res := ts.tick()

	require.Empty(t, res.Rejected)
	step := ts.cfg.Movement.Speed * ts.cfg.TickInterval().Seconds()
	assert.InDelta(t, before.Y+step, a.Position.Y, 1e-9)
	assert.InDelta(t, ts.cfg.Movement.Speed, a.Velocity.Len(), 1e-6)

	sample, ok := ts.Combat().LagBuffer().Latest(a.ID)
	require.True(t, ok)
	assert.Equal(t, a.Position, sample.Position)
}

func TestSimulation_InputBurstSharesTick(t *testing.T) {
	ts, a, _ := startMatch(t, testConfig())
	before := a.Position

	for i := 0; i < ts.cfg.MaxInputsPerTick; i++ {
		ts.send(a.ID, input.Input{MovementY: 1})
	}
	res := ts.tick()

	require.Empty(t, res.Rejected)
	assert.Zero(t, ts.Validator().ViolationCount(a.ID))
	assert.Equal(t, ts.seq, a.LastInputSeq)
	step := ts.cfg.Movement.Speed * ts.cfg.TickInterval().Seconds()
	assert.InDelta(t, before.Y+step, a.Position.Y, 1e-6)
	assert.InDelta(t, before.X, a.Position.X, 1e-9)
}

func TestSimulation_HeldTrigger(t *testing.T) {
	ts, a, _ := startMatch(t, testConfig())

	// About 40 ticks at the default rate, long enough for several cooldowns.
	for i := 0; i < 40; i++ {
		ts.send(a.ID, input.Input{Buttons: input.ButtonFire})
		res := ts.tick()
		require.Empty(t, res.Rejected)
		require.Empty(t, res.Kicked)
	}

	assert.Zero(t, ts.Validator().ViolationCount(a.ID))
	fired := ts.rec.OfType(event.TypeProjectileFired)
	assert.GreaterOrEqual(t, len(fired), 2)
	assert.LessOrEqual(t, len(fired), 3)
}

func TestSimulation_SeededRapidFireAudited(t *testing.T) {
	ts, a, _ := startMatch(t, testConfig())

	ts.send(a.ID, input.Input{Buttons: input.ButtonFire, FireSeed: 11})
	res := ts.tick()
	require.Empty(t, res.Rejected)

	ts.send(a.ID, input.Input{Buttons: input.ButtonFire, FireSeed: 12})
	res = ts.tick()
	require.Len(t, res.Rejected, 1)
	var v *anticheat.Violation
	require.True(t, errors.As(res.Rejected[0].Err, &v))
	assert.Equal(t, anticheat.FireRate, v.Type)
	assert.Len(t, ts.rec.OfType(event.TypeProjectileFired), 1)
}

func TestSimulation_RejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		in   func(ts *testSim) input.Input
		kind anticheat.ViolationType
	}{
		{"speed hack", func(*testSim) input.Input { return input.Input{MovementX: 5} }, anticheat.SpeedHack},
		{"clock skew", func(ts *testSim) input.Input {
			return input.Input{MovementX: 1, ClientTimestamp: ts.now.Add(-time.Second).UnixMilli()}
		}, anticheat.TimestampMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, a, _ := startMatch(t, testConfig())
			before := a.Position

			ts.send(a.ID, tt.in(ts))
			res := ts.tick()

			require.Len(t, res.Rejected, 1)
			assert.Equal(t, a.ID, res.Rejected[0].PlayerID)
			var v *anticheat.Violation
			require.True(t, errors.As(res.Rejected[0].Err, &v))
			assert.Equal(t, tt.kind, v.Type)
			assert.Equal(t, before, a.Position)
			assert.Equal(t, 1, ts.Validator().ViolationCount(a.ID))
		})
	}
}

func TestSimulation_KickReportedOnce(t *testing.T) {
	ts, a, _ := startMatch(t, testConfig())

	var kicked []string
	for i := 0; i < 10; i++ {
		ts.send(a.ID, input.Input{MovementX: 5})
	}
	// Eight inputs per tick: the tenth violation lands in the second tick.
	res := ts.tick()
	assert.Empty(t, res.Kicked)
	res = ts.tick()
	kicked = append(kicked, res.Kicked...)

	ts.send(a.ID, input.Input{MovementX: 5})
	res = ts.tick()
	kicked = append(kicked, res.Kicked...)

	assert.Equal(t, []string{a.ID}, kicked)
	assert.Len(t, ts.rec.OfType(event.TypePlayerKicked), 1)
	assert.Equal(t, 11, ts.Validator().ViolationCount(a.ID))
}

// shooter fires every 16 ticks (about 267 ms) until shots are spent, then
// the loop keeps ticking for the remaining duration.
func duel(ts *testSim, shooter *Player, shots int, ticks int) []TickResult {
	var out []TickResult
	for i := 0; i < ticks; i++ {
		if i%16 == 0 && shots > 0 {
			ts.send(shooter.ID, input.Input{Buttons: input.ButtonFire})
			shots--
		}
		out = append(out, ts.tick())
	}
	return out
}

func TestSimulation_ShootAndKill(t *testing.T) {
	ts, a, b := startMatch(t, testConfig())

	results := duel(ts, a, 4, 120)

	var hits []combat.Hit
	var deaths []combat.Death
	for _, r := range results {
		require.Empty(t, r.Rejected)
		hits = append(hits, r.Combat.Hits...)
		deaths = append(deaths, r.Combat.Deaths...)
	}
	require.Len(t, hits, 4)
	for i, h := range hits {
		assert.Equal(t, a.ID, h.ShooterID)
		assert.Equal(t, b.ID, h.TargetID)
		assert.InDelta(t, 75-25*float64(i), h.Remaining, 1e-9)
	}
	require.Len(t, deaths, 1)
	assert.Equal(t, b.ID, deaths[0].VictimID)
	assert.True(t, deaths[0].Teleported)

	assert.Equal(t, 1, ts.Match().Score(a.ID))
	assert.Equal(t, match.StatePlaying, ts.Match().State())
	assert.Equal(t, deaths[0].SpawnPosition, b.Position)
	assert.True(t, ts.Combat().IsRespawning(b.ID))

	snap := ts.Snapshot()
	for _, ps := range snap.Players {
		if ps.ID == b.ID {
			assert.False(t, ps.Alive)
			assert.True(t, ps.Invulnerable)
		}
	}

	// Inputs from the dead player are ignored.
	before := b.Position
	ts.send(b.ID, input.Input{MovementX: 1})
	ts.tick()
	assert.Equal(t, before, b.Position)

	// Respawn delay is 3s.
	var respawned []combat.Respawned
	for i := 0; i < 200 && len(respawned) == 0; i++ {
		respawned = append(respawned, ts.tick().Combat.Respawns...)
	}
	require.Len(t, respawned, 1)
	assert.Equal(t, b.ID, respawned[0].PlayerID)
	assert.False(t, ts.Combat().IsRespawning(b.ID))
	assert.True(t, ts.Combat().Health().IsInvulnerable(b.ID))
}

func TestSimulation_KillLimitEndsMatch(t *testing.T) {
	cfg := testConfig()
	cfg.Combat.Projectile.Damage = 100
	cfg.Match.KillLimit = 1
	ts, a, _ := startMatch(t, cfg)

	results := duel(ts, a, 1, 90)

	assert.Equal(t, match.StateEnded, results[len(results)-1].State)
	assert.Equal(t, a.ID, ts.Match().Winner())
	ends := ts.rec.OfType(event.TypeMatchEnd)
	require.Len(t, ends, 1)
	assert.Equal(t, match.ReasonKillLimit, ends[0].(event.MatchEnd).Reason)

	// Combat stops once the match has ended.
	ts.send(a.ID, input.Input{Buttons: input.ButtonFire})
	res := ts.tick()
	assert.Empty(t, res.Combat.Hits)
	assert.Zero(t, ts.Combat().Projectiles().Count())
}

func TestSimulation_DisconnectDuringPlay(t *testing.T) {
	ts, a, b := startMatch(t, testConfig())

	ts.RemovePlayer(b.ID)

	assert.Equal(t, match.StateEnded, ts.Match().State())
	assert.Equal(t, a.ID, ts.Match().Winner())
	assert.False(t, ts.Combat().HasPlayer(b.ID))
	_, ok := ts.Player(b.ID)
	assert.False(t, ok)

	// Unknown ids are ignored.
	ts.RemovePlayer("nobody")
	ts.Enqueue(b.ID, input.Input{SequenceNumber: 1})
	assert.NotPanics(t, func() { ts.tick() })
}

func TestSimulation_WorldHistory(t *testing.T) {
	ts, a, b := startMatch(t, testConfig())
	for i := 0; i < 5; i++ {
		ts.tick()
	}

	snap, ok := ts.World().Latest()
	require.True(t, ok)
	assert.Equal(t, ts.TickNumber(), snap.Tick)
	assert.True(t, snap.Timestamp.Equal(ts.now))
	require.Len(t, snap.Players, 2)
	assert.True(t, snap.Players[a.ID].Alive)
	assert.Equal(t, b.Position, snap.Players[b.ID].Capsule.Footprint())
}

func TestSimulation_SnapshotDue(t *testing.T) {
	ts := newTestSim(t, testConfig())
	var due []uint64
	for i := 0; i < 9; i++ {
		if res := ts.tick(); res.SnapshotDue {
			due = append(due, res.Tick)
		}
	}
	assert.Equal(t, []uint64{3, 6, 9}, due)
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	assert.Equal(t, time.Second/60, DefaultConfig().TickInterval())

	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"tick rate", func(c *Config) { c.TickRate = 0 }},
		{"snapshot interval", func(c *Config) { c.SnapshotEvery = 0 }},
		{"inputs per tick", func(c *Config) { c.MaxInputsPerTick = 0 }},
		{"dash above speed limit", func(c *Config) { c.Movement.DashMultiplier = 2 }},
		{"player shape", func(c *Config) { c.Movement.Height = 0.5 }},
		{"nested combat", func(c *Config) { c.Combat.HitRadius = 0 }},
		{"nested match", func(c *Config) { c.Match.KillLimit = 0 }},
		{"nested lag comp", func(c *Config) { c.LagComp.MaxSamples = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
