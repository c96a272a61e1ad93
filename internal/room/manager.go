package room

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/ugaemi/duel-arena-server/internal/arena"
	"github.com/ugaemi/duel-arena-server/internal/event"
	"github.com/ugaemi/duel-arena-server/internal/game"
	"github.com/ugaemi/duel-arena-server/internal/metrics"
)

// Options configure every room a Manager creates.
type Options struct {
	Game game.Config
	// Arena builds the map for a new room. Nil uses arena.Default.
	Arena  func() (*arena.Map, error)
	Audit  Auditor
	Logger *slog.Logger
}

// Manager manages all active rooms.
type Manager struct {
	opts  Options
	rooms map[string]*Room // code -> room
	mu    sync.RWMutex
}

// NewManager creates a new room manager. A zero Game config uses
// game.DefaultConfig.
func NewManager(opts Options) *Manager {
	if opts.Game.TickRate == 0 {
		opts.Game = game.DefaultConfig()
	}
	if opts.Arena == nil {
		opts.Arena = func() (*arena.Map, error) { return arena.Default(), nil }
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Manager{
		opts:  opts,
		rooms: make(map[string]*Room),
	}
}

// CreateRoom creates a new room, starts its loop and returns it.
func (m *Manager) CreateRoom() (*Room, error) {
	r, err := m.newRoom()
	if err != nil {
		return nil, err
	}
	r.Start()
	return r, nil
}

// newRoom registers a room without starting its loop.
func (m *Manager) newRoom() (*Room, error) {
	am, err := m.opts.Arena()
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing := make(map[string]bool, len(m.rooms))
	for code := range m.rooms {
		existing[code] = true
	}
	code, err := GenerateCode(existing)
	if err != nil {
		return nil, err
	}

	logger := m.opts.Logger
	sim, err := game.NewSimulation(m.opts.Game, am, event.NewBus(), logger.With("room", code), nil)
	if err != nil {
		return nil, err
	}

	r := newRoom(code, sim, m.opts.Audit, logger)
	r.onDispose = func(r *Room) { m.RemoveRoom(r.Code) }
	m.rooms[code] = r
	metrics.SetActiveRooms(len(m.rooms))

	logger.Info("room created", "code", code, "arena", am.Name, "match", sim.Match().ID())
	return r, nil
}

// GetRoom returns a room by its code.
func (m *Manager) GetRoom(code string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[code]
	return r, ok
}

// RemoveRoom removes a room by its code.
func (m *Manager) RemoveRoom(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[code]; !ok {
		return
	}
	delete(m.rooms, code)
	metrics.SetActiveRooms(len(m.rooms))
	m.opts.Logger.Info("room removed", "code", code)
}

// RoomCount returns the number of active rooms.
func (m *Manager) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// FindRoomByPlayerID finds the room containing a player.
func (m *Manager) FindRoomByPlayerID(playerID string) (*Room, bool) {
	if playerID == "" {
		return nil, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rooms {
		if r.HasPlayer(playerID) {
			return r, true
		}
	}
	return nil, false
}

// List returns a summary of every room ordered by code.
func (m *Manager) List() []Info {
	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.RUnlock()

	out := make([]Info, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Shutdown stops every room and waits for them to close.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.RUnlock()

	for _, r := range rooms {
		r.Stop()
	}
}
