package room

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ugaemi/duel-arena-server/internal/event"
	"github.com/ugaemi/duel-arena-server/internal/game"
	"github.com/ugaemi/duel-arena-server/internal/input"
	"github.com/ugaemi/duel-arena-server/internal/match"
	"github.com/ugaemi/duel-arena-server/internal/metrics"
	"github.com/ugaemi/duel-arena-server/internal/store"
	"github.com/ugaemi/duel-arena-server/internal/ws"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room is full")
	ErrRoomClosed   = errors.New("room is closed")
)

// Auditor receives anti-cheat audit records. Submit must not block.
type Auditor interface {
	Submit(rec store.AuditRecord) bool
}

// PlayerInfo is the lobby view of one player.
type PlayerInfo struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	Score    int    `json:"score"`
}

// Info is a point-in-time summary of a room, safe to read from any goroutine.
type Info struct {
	Code    string       `json:"code"`
	MatchID string       `json:"match_id"`
	State   string       `json:"state"`
	Tick    uint64       `json:"tick"`
	Players []PlayerInfo `json:"players"`
}

type roomClosedMessage struct {
	Reason string `json:"reason"`
}

// Room hosts one match. The simulation is owned by the loop goroutine;
// other goroutines reach it through commands (Join, Leave) or the input
// queue (Enqueue).
type Room struct {
	Code string

	sim    *game.Simulation
	audit  Auditor
	logger *slog.Logger

	// Client mapping: player ID -> ws client
	clients map[string]*ws.Client
	info    Info
	mu      sync.RWMutex

	cmds      chan func()
	stopCh    chan struct{}
	stopOnce  sync.Once
	done      chan struct{}
	finished  bool
	onDispose func(r *Room)

	fallbacks uint64
	unsub     func()
}

func newRoom(code string, sim *game.Simulation, audit Auditor, logger *slog.Logger) *Room {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Room{
		Code:    code,
		sim:     sim,
		audit:   audit,
		logger:  logger.With("room", code),
		clients: make(map[string]*ws.Client),
		cmds:    make(chan func()),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	r.unsub = sim.Bus().SubscribeAll(r.onEvent)
	r.refreshInfo()
	return r
}

// Start runs the room loop on its own goroutine.
func (r *Room) Start() {
	go r.run()
}

// Stop ends the loop and waits for the room to dispose. Only valid after
// Start.
func (r *Room) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	<-r.done
}

// Done is closed once the room has disposed.
func (r *Room) Done() <-chan struct{} {
	return r.done
}

func (r *Room) run() {
	defer close(r.done)

	ticker := time.NewTicker(r.sim.Config().TickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.dispose("shutdown")
			return
		case cmd := <-r.cmds:
			cmd()
		case now := <-ticker.C:
			r.step(now)
		}
		if r.finished {
			r.dispose("finished")
			return
		}
	}
}

// do runs fn on the loop goroutine and waits for it.
func (r *Room) do(fn func()) error {
	ran := make(chan struct{})
	cmd := func() {
		fn()
		close(ran)
	}
	select {
	case r.cmds <- cmd:
	case <-r.done:
		return ErrRoomClosed
	}
	<-ran
	return nil
}

// Join adds a player to the match and maps them to client. It returns the
// new player's id.
func (r *Room) Join(nickname string, client *ws.Client) (string, error) {
	var id string
	var joinErr error
	if err := r.do(func() { id, joinErr = r.join(nickname, client) }); err != nil {
		return "", err
	}
	return id, joinErr
}

func (r *Room) join(nickname string, client *ws.Client) (string, error) {
	p, err := r.sim.AddPlayer(nickname)
	if errors.Is(err, match.ErrMatchFull) {
		return "", ErrRoomFull
	}
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.clients[p.ID] = client
	r.mu.Unlock()
	r.refreshInfo()

	r.broadcastInfo()

	r.logger.Info("player joined room", "player", p.ID, "nickname", p.Nickname)
	return p.ID, nil
}

// Leave removes a player. Unknown players are ignored.
func (r *Room) Leave(playerID string) error {
	return r.do(func() { r.leave(playerID) })
}

func (r *Room) leave(playerID string) {
	if r.detach(playerID) == nil {
		return
	}
	r.sim.RemovePlayer(playerID)
	r.refreshInfo()
	r.broadcastInfo()
	r.logger.Info("player left room", "player", playerID)
}

// detach drops the client mapping and marks the room finished once nobody
// is left.
func (r *Room) detach(playerID string) *ws.Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[playerID]
	if !ok {
		return nil
	}
	delete(r.clients, playerID)
	if len(r.clients) == 0 {
		r.finished = true
	}
	return c
}

// Enqueue buffers an input for the player's next tick.
func (r *Room) Enqueue(playerID string, in input.Input) bool {
	if !r.HasPlayer(playerID) {
		return false
	}
	return r.sim.Enqueue(playerID, in)
}

// HasPlayer reports whether a player belongs to this room.
func (r *Room) HasPlayer(playerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.clients[playerID]
	return ok
}

// PlayerCount returns the number of players.
func (r *Room) PlayerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Info returns the latest room summary.
func (r *Room) Info() Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info := r.info
	info.Players = append([]PlayerInfo(nil), r.info.Players...)
	return info
}

// step runs one tick and fans out its results.
func (r *Room) step(now time.Time) game.TickResult {
	start := time.Now()
	res := r.sim.Tick(now)

	for _, rej := range res.Rejected {
		r.logger.Debug("input rejected", "player", rej.PlayerID, "seq", rej.Sequence, "error", rej.Err)
	}
	for _, id := range res.Kicked {
		r.kick(id)
	}
	if res.SnapshotDue {
		r.broadcastSnapshot()
	}

	fb := r.sim.Combat().Projectiles().Fallbacks()
	if fb > r.fallbacks {
		metrics.RecordPoolFallbacks(fb - r.fallbacks)
	}
	r.fallbacks = fb
	metrics.RecordTick(time.Since(start))

	r.refreshInfo()
	if res.State == match.StateCleanup {
		r.finished = true
	}
	return res
}

func (r *Room) kick(playerID string) {
	client := r.detach(playerID)
	r.sim.RemovePlayer(playerID)
	if client != nil {
		client.Close()
	}
	r.logger.Info("player kicked", "player", playerID)
}

func (r *Room) broadcastSnapshot() {
	if r.PlayerCount() == 0 {
		return
	}
	data, err := game.EncodeSnapshot(r.sim.Snapshot())
	if err != nil {
		r.logger.Error("failed to encode snapshot", "error", err)
		return
	}
	metrics.ObserveSnapshot(len(data))

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.clients {
		c.SendBinary(data)
	}
}

// onEvent forwards every simulation event to the room's clients. It runs on
// the loop goroutine.
func (r *Room) onEvent(e event.Event) {
	switch ev := e.(type) {
	case event.ViolationDetected:
		metrics.RecordViolation(ev.ViolationType)
		r.submitAudit(store.AuditRecord{
			PlayerID:      ev.PlayerID,
			Kind:          store.KindViolation,
			ViolationType: ev.ViolationType,
			Count:         ev.Count,
			Value:         ev.Value,
			Limit:         ev.Limit,
			Detail:        ev.Detail,
		})
	case event.PlayerKicked:
		metrics.RecordKick()
		r.submitAudit(store.AuditRecord{
			PlayerID: ev.PlayerID,
			Kind:     store.KindKick,
			Count:    ev.Violations,
			Detail:   ev.Reason,
		})
	case event.HitConfirmed:
		metrics.RecordHit(ev.LagCompensated)
	case event.PlayerDeath:
		metrics.RecordDeath()
	}

	msg, err := ws.NewMessage(string(e.EventType()), e)
	if err != nil {
		r.logger.Error("failed to encode event", "type", e.EventType(), "error", err)
		return
	}
	r.broadcast(msg)
}

func (r *Room) submitAudit(rec store.AuditRecord) {
	if r.audit == nil {
		return
	}
	rec.MatchID = r.sim.Match().ID()
	rec.RoomCode = r.Code
	if !r.audit.Submit(rec) {
		metrics.RecordAuditDropped()
	}
}

func (r *Room) broadcast(msg ws.Message) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.clients {
		c.SendMessage(msg)
	}
}

func (r *Room) broadcastInfo() {
	msg, err := ws.NewMessage(ws.TypeRoomInfo, r.Info())
	if err != nil {
		return
	}
	r.broadcast(msg)
}

func (r *Room) refreshInfo() {
	m := r.sim.Match()
	info := Info{
		Code:    r.Code,
		MatchID: m.ID(),
		State:   m.State().String(),
		Tick:    r.sim.TickNumber(),
	}
	for _, id := range m.Players() {
		p, ok := r.sim.Player(id)
		if !ok {
			continue
		}
		info.Players = append(info.Players, PlayerInfo{ID: id, Nickname: p.Nickname, Score: m.Score(id)})
	}

	r.mu.Lock()
	r.info = info
	r.mu.Unlock()
}

// dispose tells the remaining clients the room is gone and releases the
// simulation.
func (r *Room) dispose(reason string) {
	if msg, err := ws.NewMessage(ws.TypeRoomClosed, roomClosedMessage{Reason: reason}); err == nil {
		r.broadcast(msg)
	}

	r.mu.Lock()
	r.clients = make(map[string]*ws.Client)
	r.mu.Unlock()

	if r.unsub != nil {
		r.unsub()
		r.unsub = nil
	}
	r.sim.Close()
	r.logger.Info("room closed", "reason", reason, "ticks", r.sim.TickNumber())

	if r.onDispose != nil {
		r.onDispose(r)
	}
}
