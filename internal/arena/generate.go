package arena

import (
	"math/rand/v2"

	"github.com/ugaemi/duel-arena-server/internal/geom"
)

// Default duel arena dimensions (metres).
const (
	DefaultWidth  = 64.0
	DefaultHeight = 40.0
)

// Default returns the fixed duel layout: a central pillar, four cover blocks
// and six spawn points along the short walls.
func Default() *Map {
	bounds := geom.Rect(0, 0, DefaultWidth, DefaultHeight)
	barriers := []geom.AABB{
		geom.RectAround(geom.Vec2(32, 20), 4, 4),
		geom.RectAround(geom.Vec2(18, 10), 6, 2),
		geom.RectAround(geom.Vec2(46, 10), 6, 2),
		geom.RectAround(geom.Vec2(18, 30), 6, 2),
		geom.RectAround(geom.Vec2(46, 30), 6, 2),
	}
	spawns := []geom.Vector2{
		geom.Vec2(4, 6), geom.Vec2(4, 20), geom.Vec2(4, 34),
		geom.Vec2(60, 6), geom.Vec2(60, 20), geom.Vec2(60, 34),
	}
	m, err := New("duel", bounds, barriers, spawns)
	if err != nil {
		panic(err)
	}
	return m
}

// GenerateConfig tunes random layouts.
type GenerateConfig struct {
	Width, Height   float64
	BarrierCount    int
	BarrierMinSize  float64
	BarrierMaxSize  float64
	BarrierSpacing  float64 // minimum centre distance between barriers
	CenterExclusion float64 // no barrier centre within this radius of the middle
	SpawnCount      int
	SpawnSpacing    float64 // minimum distance between spawn points
	SpawnClearance  float64 // spawn points keep this far from barriers
}

func DefaultGenerateConfig() GenerateConfig {
	return GenerateConfig{
		Width:           DefaultWidth,
		Height:          DefaultHeight,
		BarrierCount:    8,
		BarrierMinSize:  1.5,
		BarrierMaxSize:  5,
		BarrierSpacing:  8,
		CenterExclusion: 4,
		SpawnCount:      6,
		SpawnSpacing:    12,
		SpawnClearance:  1.5,
	}
}

const maxPlacementAttempts = 100

// Generate builds a random layout. Placement retries a bounded number of
// times per object and then places it anyway, so the barrier count is always
// met; spawn points that cannot be placed clear of barriers are skipped.
func Generate(rng *rand.Rand, cfg GenerateConfig) (*Map, error) {
	bounds := geom.Rect(0, 0, cfg.Width, cfg.Height)
	center := bounds.Center()

	var barriers []geom.AABB
	var centers []geom.Vector2
	for i := 0; i < cfg.BarrierCount; i++ {
		w := cfg.BarrierMinSize + rng.Float64()*(cfg.BarrierMaxSize-cfg.BarrierMinSize)
		h := cfg.BarrierMinSize + rng.Float64()*(cfg.BarrierMaxSize-cfg.BarrierMinSize)
		c := placeBarrier(rng, cfg, w, h, center, centers)
		barriers = append(barriers, geom.RectAround(c, w, h))
		centers = append(centers, c)
	}

	var spawns []geom.Vector2
	for i := 0; i < cfg.SpawnCount; i++ {
		if sp, ok := placeSpawn(rng, cfg, barriers, spawns); ok {
			spawns = append(spawns, sp)
		}
	}

	return New("generated", bounds, barriers, spawns)
}

func placeBarrier(rng *rand.Rand, cfg GenerateConfig, w, h float64, center geom.Vector2, placed []geom.Vector2) geom.Vector2 {
	random := func() geom.Vector2 {
		return geom.Vec2(
			w/2+rng.Float64()*(cfg.Width-w),
			h/2+rng.Float64()*(cfg.Height-h),
		)
	}

	for i := 0; i < maxPlacementAttempts; i++ {
		c := random()
		if c.DistanceTo(center) < cfg.CenterExclusion+w/2 {
			continue
		}
		if !farFromAll(c, placed, cfg.BarrierSpacing) {
			continue
		}
		return c
	}
	return random()
}

func placeSpawn(rng *rand.Rand, cfg GenerateConfig, barriers []geom.AABB, placed []geom.Vector2) (geom.Vector2, bool) {
	margin := cfg.SpawnClearance
	for i := 0; i < maxPlacementAttempts; i++ {
		c := geom.Vec2(
			margin+rng.Float64()*(cfg.Width-2*margin),
			margin+rng.Float64()*(cfg.Height-2*margin),
		)
		if !farFromAll(c, placed, cfg.SpawnSpacing) {
			continue
		}
		blocked := false
		for _, b := range barriers {
			if b.IntersectsCircle(c, cfg.SpawnClearance) {
				blocked = true
				break
			}
		}
		if !blocked {
			return c, true
		}
	}
	return geom.Vector2{}, false
}

func farFromAll(p geom.Vector2, others []geom.Vector2, minDist float64) bool {
	for _, o := range others {
		if p.DistanceTo(o) < minDist {
			return false
		}
	}
	return true
}
