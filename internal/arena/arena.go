package arena

import (
	"errors"
	"fmt"

	"github.com/dhconnelly/rtreego"

	"github.com/ugaemi/duel-arena-server/internal/geom"
)

// Tree fan-out for the barrier index. Maps hold tens of barriers at most.
const (
	treeMinChildren = 2
	treeMaxChildren = 8
)

// queryPad keeps zero-radius queries valid; rtreego rejects empty rects.
const queryPad = 0.005

// Barrier is a static axis-aligned obstacle.
type Barrier struct {
	ID  int       `json:"id"`
	Box geom.AABB `json:"box"`

	rect rtreego.Rect
}

// Bounds implements rtreego.Spatial.
func (b *Barrier) Bounds() rtreego.Rect {
	return b.rect
}

// Map is the static arena: play bounds, barriers and spawn points. It is
// read-only once built and may be shared between goroutines.
type Map struct {
	Name        string         `json:"name"`
	Bounds      geom.AABB      `json:"bounds"`
	Barriers    []*Barrier     `json:"barriers"`
	SpawnPoints []geom.Vector2 `json:"spawn_points"`

	tree *rtreego.Rtree
}

// New validates the layout and indexes the barriers.
func New(name string, bounds geom.AABB, barriers []geom.AABB, spawns []geom.Vector2) (*Map, error) {
	if !(bounds.Width() > 0 && bounds.Height() > 0) {
		return nil, fmt.Errorf("arena %q: bounds must have positive size", name)
	}

	m := &Map{
		Name:        name,
		Bounds:      bounds,
		SpawnPoints: append([]geom.Vector2(nil), spawns...),
	}

	var errs []error
	spatials := make([]rtreego.Spatial, 0, len(barriers))
	for i, box := range barriers {
		rect, err := toRect(box)
		if err != nil {
			errs = append(errs, fmt.Errorf("barrier %d: %w", i, err))
			continue
		}
		if !bounds.Intersects(box) {
			errs = append(errs, fmt.Errorf("barrier %d lies outside the arena", i))
			continue
		}
		b := &Barrier{ID: i, Box: box, rect: rect}
		m.Barriers = append(m.Barriers, b)
		spatials = append(spatials, b)
	}
	for i, sp := range spawns {
		if !bounds.Contains(sp) {
			errs = append(errs, fmt.Errorf("spawn point %d is outside the arena", i))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("arena %q: %w", name, err)
	}

	m.tree = rtreego.NewTree(2, treeMinChildren, treeMaxChildren, spatials...)

	for i, sp := range m.SpawnPoints {
		if m.HitsBarrier(sp, 0) {
			return nil, fmt.Errorf("arena %q: spawn point %d is inside a barrier", name, i)
		}
	}
	return m, nil
}

func toRect(box geom.AABB) (rtreego.Rect, error) {
	return rtreego.NewRect(rtreego.Point{box.Min.X, box.Min.Y}, []float64{box.Width(), box.Height()})
}

func circleRect(center geom.Vector2, radius float64) rtreego.Rect {
	r := radius + queryPad
	// Lengths are always positive, so NewRect cannot fail.
	rect, _ := rtreego.NewRect(rtreego.Point{center.X - r, center.Y - r}, []float64{2 * r, 2 * r})
	return rect
}

// InBounds reports whether p lies inside the arena, edges included.
func (m *Map) InBounds(p geom.Vector2) bool {
	return m.Bounds.Contains(p)
}

// BarriersNear returns barriers overlapping a circle.
func (m *Map) BarriersNear(center geom.Vector2, radius float64) []*Barrier {
	var out []*Barrier
	for _, s := range m.tree.SearchIntersect(circleRect(center, radius)) {
		b := s.(*Barrier)
		if b.Box.IntersectsCircle(center, radius) {
			out = append(out, b)
		}
	}
	return out
}

// HitsBarrier reports whether a circle overlaps any barrier.
func (m *Map) HitsBarrier(center geom.Vector2, radius float64) bool {
	found := false
	m.tree.SearchIntersect(circleRect(center, radius), func(_ []rtreego.Spatial, s rtreego.Spatial) (refuse, abort bool) {
		if s.(*Barrier).Box.IntersectsCircle(center, radius) {
			found = true
			return false, true
		}
		return true, false
	})
	return found
}

// ResolveCircle moves a circle the minimum distance needed to leave every
// barrier it overlaps and keeps it inside the bounds.
func (m *Map) ResolveCircle(center geom.Vector2, radius float64) geom.Vector2 {
	p := m.Bounds.ClampPoint(center, radius)
	// Corners between adjacent barriers can need more than one push.
	for pass := 0; pass < 4; pass++ {
		hits := m.BarriersNear(p, radius)
		if len(hits) == 0 {
			break
		}
		for _, b := range hits {
			p = p.Add(b.Box.PushOutCircle(p, radius))
		}
		p = m.Bounds.ClampPoint(p, radius)
	}
	return p
}

// Spawns returns a copy of the spawn points.
func (m *Map) Spawns() []geom.Vector2 {
	return append([]geom.Vector2(nil), m.SpawnPoints...)
}
