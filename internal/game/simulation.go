package game

import (
	"errors"
	"log/slog"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/ugaemi/duel-arena-server/internal/anticheat"
	"github.com/ugaemi/duel-arena-server/internal/arena"
	"github.com/ugaemi/duel-arena-server/internal/combat"
	"github.com/ugaemi/duel-arena-server/internal/event"
	"github.com/ugaemi/duel-arena-server/internal/geom"
	"github.com/ugaemi/duel-arena-server/internal/input"
	"github.com/ugaemi/duel-arena-server/internal/lagcomp"
	"github.com/ugaemi/duel-arena-server/internal/match"
)

// Rejection is an input that failed validation and was not applied.
type Rejection struct {
	PlayerID string
	Sequence uint32
	Err      error
}

// TickResult summarises one tick for the room loop.
type TickResult struct {
	Tick     uint64
	Now      time.Time
	State    match.State
	Combat   combat.UpdateResult
	Rejected []Rejection
	// Kicked lists players who crossed the kick threshold this tick. Each
	// player appears at most once per match.
	Kicked      []string
	SnapshotDue bool
}

// Simulation is the authoritative state of one duel: players, match
// lifecycle and the combat core. Only Enqueue may be called from other
// goroutines; everything else belongs to the room loop.
type Simulation struct {
	cfg    Config
	arena  *arena.Map
	bus    *event.Bus
	logger *slog.Logger
	rng    *rand.Rand

	match     *match.Match
	combat    *combat.System
	validator *anticheat.Validator
	lag       *lagcomp.Buffer
	world     *lagcomp.WorldHistory
	inputs    *input.Queue

	players map[string]*Player
	tick    uint64
	now     time.Time
	kicks   []string
	unsub   func()
}

// NewSimulation wires a match on the given arena. A nil bus or logger gets a
// default; a nil rng is seeded randomly.
func NewSimulation(cfg Config, m *arena.Map, bus *event.Bus, logger *slog.Logger, rng *rand.Rand) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errors.New("game: arena is required")
	}
	if bus == nil {
		bus = event.NewBus()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	s := &Simulation{
		cfg:     cfg,
		arena:   m,
		bus:     bus,
		logger:  logger,
		rng:     rng,
		lag:     lagcomp.NewBuffer(cfg.LagComp),
		world:   lagcomp.NewWorldHistory(cfg.LagComp),
		inputs:  input.NewQueue(cfg.MaxInputsPerTick),
		players: make(map[string]*Player),
	}
	s.validator = anticheat.NewValidator(cfg.AntiCheat, bus, logger)
	s.match = match.New(cfg.Match, bus, logger)

	sys, err := combat.NewSystem(cfg.Combat, combat.Deps{
		Arena:       m,
		SpawnPoints: m.Spawns(),
		Bus:         bus,
		Validator:   s.validator,
		Lag:         s.lag,
		World:       s.world,
		Rand:        rand.New(rand.NewPCG(rng.Uint64(), rng.Uint64())),
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	s.combat = sys
	s.combat.SetClock(func() time.Time { return s.now })

	s.unsub = event.On(bus, func(e event.PlayerKicked) {
		s.kicks = append(s.kicks, e.PlayerID)
	})
	return s, nil
}

func (s *Simulation) Config() Config                  { return s.cfg }
func (s *Simulation) Arena() *arena.Map               { return s.arena }
func (s *Simulation) Bus() *event.Bus                 { return s.bus }
func (s *Simulation) Match() *match.Match             { return s.match }
func (s *Simulation) Combat() *combat.System          { return s.combat }
func (s *Simulation) Validator() *anticheat.Validator { return s.validator }
func (s *Simulation) World() *lagcomp.WorldHistory    { return s.world }
func (s *Simulation) TickNumber() uint64              { return s.tick }

// Now returns the timestamp of the last tick.
func (s *Simulation) Now() time.Time { return s.now }

// AddPlayer admits a new player and parks them on a spawn point until the
// round starts.
func (s *Simulation) AddPlayer(nickname string) (*Player, error) {
	p := NewPlayer(nickname)
	if err := s.match.PlayerConnected(p.ID); err != nil {
		return nil, err
	}
	p.SetPosition(s.parkingSpot(len(s.players)))
	s.players[p.ID] = p
	s.combat.AddPlayer(p.ID)
	return p, nil
}

func (s *Simulation) parkingSpot(i int) geom.Vector2 {
	spawns := s.arena.Spawns()
	if len(spawns) == 0 {
		return s.arena.Bounds.Center()
	}
	return spawns[i%len(spawns)]
}

// RemovePlayer handles a disconnect or kick. Unknown players are ignored.
func (s *Simulation) RemovePlayer(playerID string) {
	if _, ok := s.players[playerID]; !ok {
		return
	}
	s.match.PlayerDisconnected(playerID)
	s.combat.RemovePlayer(playerID)
	s.inputs.Remove(playerID)
	delete(s.players, playerID)
}

// Enqueue buffers an input for the next tick. Safe for concurrent use.
func (s *Simulation) Enqueue(playerID string, in input.Input) bool {
	return s.inputs.Push(playerID, in)
}

// Inputs exposes the input queue.
func (s *Simulation) Inputs() *input.Queue { return s.inputs }

// Player returns a player by id.
func (s *Simulation) Player(playerID string) (*Player, bool) {
	p, ok := s.players[playerID]
	return p, ok
}

// Players returns every player ordered by id.
func (s *Simulation) Players() []*Player {
	out := make([]*Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Tick advances the simulation to now. Inputs are validated before they move
// anyone, and the world is recorded for lag compensation only after combat
// has settled.
func (s *Simulation) Tick(now time.Time) TickResult {
	s.now = now
	s.tick++
	dt := s.cfg.TickInterval()
	res := TickResult{Tick: s.tick, Now: now}

	prev := s.match.State()
	s.match.Update(now)
	if prev == match.StateCountdown && s.match.State() == match.StatePlaying {
		s.startRound()
	}
	playing := s.match.IsActive()

	batches := s.inputs.Drain()
	ids := make([]string, 0, len(batches))
	for id := range batches {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		p, ok := s.players[id]
		if !ok {
			continue
		}
		batch := batches[id]
		if len(batch) == 0 {
			continue
		}
		// Inputs share the tick so a burst cannot outrun one tick of movement.
		step := dt / time.Duration(len(batch))
		for _, in := range batch {
			if err := s.apply(p, in, step, playing); err != nil {
				res.Rejected = append(res.Rejected, Rejection{PlayerID: id, Sequence: in.SequenceNumber, Err: err})
			}
		}
	}

	if playing {
		res.Combat = s.combat.Update(dt.Seconds(), s.positions(), now)
		s.settle(res.Combat)
	}

	s.record(now)

	res.State = s.match.State()
	res.Kicked, s.kicks = s.kicks, nil
	res.SnapshotDue = s.tick%uint64(s.cfg.SnapshotEvery) == 0
	return res
}

// apply runs one input. Look input is always taken; movement and fire only
// while playing and alive.
func (s *Simulation) apply(p *Player, in input.Input, dt time.Duration, playing bool) error {
	p.LastInputSeq = in.SequenceNumber
	p.Turn(in.LookDeltaX)

	if !playing || !s.canAct(p.ID) {
		p.Velocity = geom.Vector2{}
		return nil
	}

	secs := dt.Seconds()
	claimed := Intended(s.cfg.Movement, p.Position, in, secs)
	if err := s.validator.ValidateInput(p.ID, in, p.Position, claimed, p.Grounded(), s.now, secs); err != nil {
		return err
	}

	next := Step(s.cfg.Movement, s.arena, p.Position, in, secs)
	p.Velocity = next.Sub(p.Position).Scale(1 / secs)
	p.Position = next
	advanceAir(s.cfg.Movement, p, in, dt)

	if in.Buttons.Has(input.ButtonFire) {
		return s.fire(p, in)
	}
	return nil
}

func (s *Simulation) fire(p *Player, in input.Input) error {
	aim := p.Aim()
	shot := combat.Shot{
		Origin: p.Position.Add(aim.Scale(s.cfg.Movement.Radius + MuzzleGap)),
		Aim:    aim,
		Seed:   in.FireSeed,
	}
	// Held fire carries no seed and is paced by the cooldown only.
	if in.FireSeed != 0 && in.ClientTimestamp != 0 {
		shot.ClientTime = in.ClientTime()
	}

	_, err := s.combat.Fire(p.ID, shot, s.now)
	var v *anticheat.Violation
	if errors.As(err, &v) {
		return err
	}
	if err != nil {
		s.logger.Debug("shot dropped", "player", p.ID, "seq", in.SequenceNumber, "error", err)
	}
	return nil
}

func (s *Simulation) canAct(playerID string) bool {
	return s.combat.Health().IsAlive(playerID) && !s.combat.IsRespawning(playerID)
}

func (s *Simulation) positions() map[string]geom.Vector2 {
	out := make(map[string]geom.Vector2, len(s.players))
	for id, p := range s.players {
		out[id] = p.Position
	}
	return out
}

// settle applies combat outcomes to players and the scoreboard.
func (s *Simulation) settle(res combat.UpdateResult) {
	for _, r := range res.Respawns {
		if p, ok := s.players[r.PlayerID]; ok {
			s.relocate(p, r.Position)
		}
	}
	for _, d := range res.Deaths {
		s.match.RecordKill(d.KillerID, d.VictimID)
		p, ok := s.players[d.VictimID]
		if !ok {
			continue
		}
		if d.Teleported {
			s.relocate(p, d.SpawnPosition)
		} else {
			p.Velocity = geom.Vector2{}
		}
	}
}

// relocate moves a player without travel. Their lag history is dropped so
// rewinds never interpolate across the jump.
func (s *Simulation) relocate(p *Player, pos geom.Vector2) {
	p.SetPosition(pos)
	p.Reset()
	s.lag.Remove(p.ID)
}

func (s *Simulation) record(now time.Time) {
	states := make(map[string]lagcomp.PlayerState, len(s.players))
	for id, p := range s.players {
		s.lag.RecordPositionWithVelocity(id, p.Position, p.Velocity)
		states[id] = lagcomp.PlayerState{
			Position: p.Position,
			Velocity: p.Velocity,
			Capsule:  p.Capsule(s.cfg.Movement),
			Alive:    s.canAct(id),
		}
	}
	s.world.Record(s.tick, now, states)
	s.world.Prune(now)
}

// startRound resets combat and puts every player on a fresh spawn point,
// facing the arena centre.
func (s *Simulation) startRound() {
	s.combat.Reset()
	s.lag.Clear()

	ids := s.match.Players()
	spots := SpawnPositions(s.arena, len(ids), s.rng)
	center := s.arena.Bounds.Center()
	for i, id := range ids {
		p, ok := s.players[id]
		if !ok {
			continue
		}
		p.SetPosition(spots[i])
		p.Reset()
		if d := center.Sub(spots[i]); !d.IsZero() {
			p.Yaw = d.Angle()
		}
	}
	s.logger.Info("round started", "match", s.match.ID(), "tick", s.tick, "players", len(ids))
}

// Close drops subscriptions and per-match buffers.
func (s *Simulation) Close() {
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
	s.combat.Reset()
	s.lag.Clear()
}
