package geom

import "math"

// Vector2 is a 2D point or direction. Values are never mutated in place.
type Vector2 struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// Vec2 is shorthand for Vector2{X: x, Y: y}.
func Vec2(x, y float64) Vector2 {
	return Vector2{X: x, Y: y}
}

// FromAngle returns the unit vector pointing at the given angle (radians).
func FromAngle(radians float64) Vector2 {
	return Vector2{X: math.Cos(radians), Y: math.Sin(radians)}
}

func (v Vector2) Add(o Vector2) Vector2 {
	return Vector2{X: v.X + o.X, Y: v.Y + o.Y}
}

func (v Vector2) Sub(o Vector2) Vector2 {
	return Vector2{X: v.X - o.X, Y: v.Y - o.Y}
}

func (v Vector2) Scale(f float64) Vector2 {
	return Vector2{X: v.X * f, Y: v.Y * f}
}

func (v Vector2) Dot(o Vector2) float64 {
	return v.X*o.X + v.Y*o.Y
}

// LenSq returns the squared magnitude.
func (v Vector2) LenSq() float64 {
	return v.X*v.X + v.Y*v.Y
}

// Len returns the magnitude.
func (v Vector2) Len() float64 {
	return math.Sqrt(v.LenSq())
}

// Normalize returns the unit vector in the same direction.
// The zero vector is returned unchanged.
func (v Vector2) Normalize() Vector2 {
	l := v.Len()
	if l == 0 {
		return v
	}
	return Vector2{X: v.X / l, Y: v.Y / l}
}

// Limit caps the magnitude at limit.
func (v Vector2) Limit(limit float64) Vector2 {
	if v.LenSq() > limit*limit {
		return v.Normalize().Scale(limit)
	}
	return v
}

// Rotate rotates the vector counter-clockwise by radians.
func (v Vector2) Rotate(radians float64) Vector2 {
	sin, cos := math.Sincos(radians)
	return Vector2{
		X: v.X*cos - v.Y*sin,
		Y: v.X*sin + v.Y*cos,
	}
}

// Angle returns the direction of the vector in radians, in (-Pi, Pi].
func (v Vector2) Angle() float64 {
	return math.Atan2(v.Y, v.X)
}

// DistanceTo returns the Euclidean distance between two points.
func (v Vector2) DistanceTo(o Vector2) float64 {
	return v.Sub(o).Len()
}

// Lerp interpolates linearly from v to o; t=0 yields v and t=1 yields o.
func (v Vector2) Lerp(o Vector2, t float64) Vector2 {
	return Vector2{
		X: v.X + (o.X-v.X)*t,
		Y: v.Y + (o.Y-v.Y)*t,
	}
}

func (v Vector2) IsZero() bool {
	return v.X == 0 && v.Y == 0
}

// IsFinite reports whether both components are finite numbers.
func (v Vector2) IsFinite() bool {
	return isFinite(v.X) && isFinite(v.Y)
}

// Distance calculates the Euclidean distance between two points.
func Distance(a, b Vector2) float64 {
	return a.DistanceTo(b)
}

// Vector3 is a 3D point or direction with Y pointing up.
type Vector3 struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
	Z float64 `json:"z" msgpack:"z"`
}

func Vec3(x, y, z float64) Vector3 {
	return Vector3{X: x, Y: y, Z: z}
}

// Lift places a ground-plane point at the given height. The 2D Y axis maps to Z.
func Lift(p Vector2, height float64) Vector3 {
	return Vector3{X: p.X, Y: height, Z: p.Y}
}

// Ground projects the vector onto the ground plane.
func (v Vector3) Ground() Vector2 {
	return Vector2{X: v.X, Y: v.Z}
}

func (v Vector3) Add(o Vector3) Vector3 {
	return Vector3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

func (v Vector3) Sub(o Vector3) Vector3 {
	return Vector3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

func (v Vector3) Scale(f float64) Vector3 {
	return Vector3{X: v.X * f, Y: v.Y * f, Z: v.Z * f}
}

func (v Vector3) Dot(o Vector3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

func (v Vector3) LenSq() float64 {
	return v.Dot(v)
}

func (v Vector3) Len() float64 {
	return math.Sqrt(v.LenSq())
}

// Normalize returns the unit vector in the same direction.
// The zero vector is returned unchanged.
func (v Vector3) Normalize() Vector3 {
	l := v.Len()
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}

func (v Vector3) DistanceTo(o Vector3) float64 {
	return v.Sub(o).Len()
}

func (v Vector3) Lerp(o Vector3, t float64) Vector3 {
	return Vector3{
		X: v.X + (o.X-v.X)*t,
		Y: v.Y + (o.Y-v.Y)*t,
		Z: v.Z + (o.Z-v.Z)*t,
	}
}

func (v Vector3) IsFinite() bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
