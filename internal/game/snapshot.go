package game

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// PlayerSnapshot is one player as broadcast to clients.
type PlayerSnapshot struct {
	ID           string  `msgpack:"id" json:"id"`
	Nickname     string  `msgpack:"n" json:"nickname"`
	X            float64 `msgpack:"x" json:"x"`
	Y            float64 `msgpack:"y" json:"y"`
	VX           float64 `msgpack:"vx" json:"vx"`
	VY           float64 `msgpack:"vy" json:"vy"`
	Yaw          float64 `msgpack:"yaw" json:"yaw"`
	Health       float64 `msgpack:"hp" json:"health"`
	Shield       float64 `msgpack:"sh" json:"shield"`
	Alive        bool    `msgpack:"a" json:"alive"`
	Invulnerable bool    `msgpack:"inv" json:"invulnerable"`
	Grounded     bool    `msgpack:"g" json:"grounded"`
	Score        int     `msgpack:"k" json:"score"`
	LastInputSeq uint32  `msgpack:"seq" json:"last_input_seq"`
}

// ProjectileSnapshot is one live projectile.
type ProjectileSnapshot struct {
	ID      uint32  `msgpack:"id" json:"id"`
	OwnerID string  `msgpack:"o" json:"owner_id"`
	X       float64 `msgpack:"x" json:"x"`
	Y       float64 `msgpack:"y" json:"y"`
	VX      float64 `msgpack:"vx" json:"vx"`
	VY      float64 `msgpack:"vy" json:"vy"`
}

// Snapshot is the periodic state broadcast. Tick increases monotonically, so
// clients discard anything older than what they already applied.
type Snapshot struct {
	Tick        uint64               `msgpack:"t" json:"tick"`
	ServerTime  int64                `msgpack:"ts" json:"server_time"` // unix milliseconds
	State       string               `msgpack:"s" json:"state"`
	Players     []PlayerSnapshot     `msgpack:"p" json:"players"`
	Projectiles []ProjectileSnapshot `msgpack:"pr" json:"projectiles"`
}

// Snapshot captures the current state, players ordered by id.
func (s *Simulation) Snapshot() Snapshot {
	snap := Snapshot{
		Tick:        s.tick,
		ServerTime:  s.now.UnixMilli(),
		State:       s.match.State().String(),
		Players:     make([]PlayerSnapshot, 0, len(s.players)),
		Projectiles: []ProjectileSnapshot{},
	}

	health := s.combat.Health()
	for _, p := range s.Players() {
		ps := PlayerSnapshot{
			ID:           p.ID,
			Nickname:     p.Nickname,
			X:            p.Position.X,
			Y:            p.Position.Y,
			VX:           p.Velocity.X,
			VY:           p.Velocity.Y,
			Yaw:          p.Yaw,
			Alive:        s.canAct(p.ID),
			Invulnerable: health.IsInvulnerable(p.ID),
			Grounded:     p.Grounded(),
			Score:        s.match.Score(p.ID),
			LastInputSeq: p.LastInputSeq,
		}
		if st, ok := health.State(p.ID); ok {
			ps.Health = st.Current
			ps.Shield = st.Shield
		}
		snap.Players = append(snap.Players, ps)
	}

	for _, pr := range s.combat.Projectiles().Active() {
		snap.Projectiles = append(snap.Projectiles, ProjectileSnapshot{
			ID:      pr.ID,
			OwnerID: pr.OwnerID,
			X:       pr.Position.X,
			Y:       pr.Position.Y,
			VX:      pr.Velocity.X,
			VY:      pr.Velocity.Y,
		})
	}
	return snap
}

// EncodeSnapshot serialises a snapshot for a binary websocket frame.
func EncodeSnapshot(snap Snapshot) ([]byte, error) {
	data, err := msgpack.Marshal(&snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

func DecodeSnapshot(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}
