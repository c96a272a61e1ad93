package geom

import "math"

// Capsule is a swept sphere between two segment end points. Players are
// modelled as upright capsules standing on the ground plane.
type Capsule struct {
	A      Vector3 `json:"a" msgpack:"a"`
	B      Vector3 `json:"b" msgpack:"b"`
	Radius float64 `json:"radius" msgpack:"r"`
}

// UprightCapsule builds a vertical capsule whose footprint is centred on pos.
// Height is the total height including both hemispherical caps.
func UprightCapsule(pos Vector2, radius, height float64) Capsule {
	segment := height - 2*radius
	if segment < 0 {
		segment = 0
	}
	base := Lift(pos, radius)
	return Capsule{
		A:      base,
		B:      base.Add(Vector3{Y: segment}),
		Radius: radius,
	}
}

// ClosestPoint returns the point on the capsule's core segment closest to p.
func (c Capsule) ClosestPoint(p Vector3) Vector3 {
	ab := c.B.Sub(c.A)
	lenSq := ab.LenSq()
	if lenSq == 0 {
		return c.A
	}
	t := p.Sub(c.A).Dot(ab) / lenSq
	t = clamp(t, 0, 1)
	return c.A.Add(ab.Scale(t))
}

// DistanceToPoint returns the distance from p to the capsule surface.
// Negative values mean p is inside.
func (c Capsule) DistanceToPoint(p Vector3) float64 {
	return p.DistanceTo(c.ClosestPoint(p)) - c.Radius
}

// IntersectsSphere reports whether a sphere overlaps the capsule.
func (c Capsule) IntersectsSphere(center Vector3, radius float64) bool {
	return c.DistanceToPoint(center) <= radius
}

// Translate moves the capsule by d on the ground plane.
func (c Capsule) Translate(d Vector2) Capsule {
	off := Lift(d, 0)
	return Capsule{A: c.A.Add(off), B: c.B.Add(off), Radius: c.Radius}
}

// Footprint returns the capsule's centre on the ground plane.
func (c Capsule) Footprint() Vector2 {
	return c.A.Ground()
}

// AABB is an axis-aligned rectangle on the ground plane.
type AABB struct {
	Min Vector2 `json:"min" msgpack:"min"`
	Max Vector2 `json:"max" msgpack:"max"`
}

// Rect builds an AABB from its top-left corner and size.
func Rect(x, y, w, h float64) AABB {
	return AABB{Min: Vector2{X: x, Y: y}, Max: Vector2{X: x + w, Y: y + h}}
}

// RectAround builds an AABB centred on c.
func RectAround(c Vector2, w, h float64) AABB {
	return Rect(c.X-w/2, c.Y-h/2, w, h)
}

func (b AABB) Width() float64  { return b.Max.X - b.Min.X }
func (b AABB) Height() float64 { return b.Max.Y - b.Min.Y }

func (b AABB) Center() Vector2 {
	return Vector2{X: (b.Min.X + b.Max.X) / 2, Y: (b.Min.Y + b.Max.Y) / 2}
}

// Contains reports whether p lies inside or on the edge of b.
func (b AABB) Contains(p Vector2) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X && p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

// Intersects reports whether two rectangles overlap.
func (b AABB) Intersects(o AABB) bool {
	return b.Min.X <= o.Max.X && b.Max.X >= o.Min.X &&
		b.Min.Y <= o.Max.Y && b.Max.Y >= o.Min.Y
}

// ClosestPoint returns the point of b nearest to p.
func (b AABB) ClosestPoint(p Vector2) Vector2 {
	return Vector2{
		X: clamp(p.X, b.Min.X, b.Max.X),
		Y: clamp(p.Y, b.Min.Y, b.Max.Y),
	}
}

// IntersectsCircle reports whether a circle overlaps b.
func (b AABB) IntersectsCircle(center Vector2, radius float64) bool {
	return b.ClosestPoint(center).Sub(center).LenSq() <= radius*radius
}

// Expand grows the rectangle by m on every side.
func (b AABB) Expand(m float64) AABB {
	return AABB{
		Min: Vector2{X: b.Min.X - m, Y: b.Min.Y - m},
		Max: Vector2{X: b.Max.X + m, Y: b.Max.Y + m},
	}
}

// ClampPoint keeps p inside b shrunk by margin on every side.
func (b AABB) ClampPoint(p Vector2, margin float64) Vector2 {
	return Vector2{
		X: clamp(p.X, b.Min.X+margin, b.Max.X-margin),
		Y: clamp(p.Y, b.Min.Y+margin, b.Max.Y-margin),
	}
}

// PushOutCircle returns the minimal translation that moves a circle out of b.
// The zero vector is returned when they do not overlap.
func (b AABB) PushOutCircle(center Vector2, radius float64) Vector2 {
	closest := b.ClosestPoint(center)
	d := center.Sub(closest)
	distSq := d.LenSq()
	if distSq > radius*radius {
		return Vector2{}
	}
	if distSq > 0 {
		dist := math.Sqrt(distSq)
		return d.Scale((radius - dist) / dist)
	}

	// Centre is inside the rectangle: leave through the nearest edge.
	left := center.X - b.Min.X
	right := b.Max.X - center.X
	top := center.Y - b.Min.Y
	bottom := b.Max.Y - center.Y
	nearest := math.Min(math.Min(left, right), math.Min(top, bottom))
	switch nearest {
	case left:
		return Vector2{X: -(left + radius)}
	case right:
		return Vector2{X: right + radius}
	case top:
		return Vector2{Y: -(top + radius)}
	default:
		return Vector2{Y: bottom + radius}
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
