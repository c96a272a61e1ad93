package game

import (
	"math/rand/v2"

	"github.com/ugaemi/duel-arena-server/internal/arena"
	"github.com/ugaemi/duel-arena-server/internal/geom"
)

// SpawnPositions picks starting positions for count players. The first is a
// random spawn point; every following one is the spawn point farthest from
// those already taken. Spawn points are reused once exhausted, and an arena
// without spawn points places everyone at its centre.
func SpawnPositions(m *arena.Map, count int, rng *rand.Rand) []geom.Vector2 {
	out := make([]geom.Vector2, 0, count)
	if count <= 0 {
		return out
	}

	spawns := m.Spawns()
	if len(spawns) == 0 {
		for i := 0; i < count; i++ {
			out = append(out, m.Bounds.Center())
		}
		return out
	}

	used := make([]bool, len(spawns))
	first := rng.IntN(len(spawns))
	used[first] = true
	out = append(out, spawns[first])

	for len(out) < count {
		best := farthestFrom(spawns, used, out)
		if best < 0 {
			// Every point taken: start over.
			clear(used)
			best = farthestFrom(spawns, used, out)
		}
		used[best] = true
		out = append(out, spawns[best])
	}
	return out
}

// farthestFrom returns the unused spawn whose nearest placed position is
// farthest away, lowest index on ties, or -1 if all are used.
func farthestFrom(spawns []geom.Vector2, used []bool, placed []geom.Vector2) int {
	best, bestDist := -1, -1.0
	for i, sp := range spawns {
		if used[i] {
			continue
		}
		d := minDistance(sp, placed)
		if d > bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func minDistance(p geom.Vector2, others []geom.Vector2) float64 {
	nearest := -1.0
	for _, o := range others {
		if d := p.DistanceTo(o); nearest < 0 || d < nearest {
			nearest = d
		}
	}
	return nearest
}
