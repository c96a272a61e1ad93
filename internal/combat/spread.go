package combat

import "github.com/ugaemi/duel-arena-server/internal/geom"

// Mulberry32 is a 32-bit PRNG whose output is fully determined by its seed.
// Clients implement the same generator so a shot predicted locally lands on
// the exact same trajectory the server computes.
type Mulberry32 struct {
	state uint32
}

// NewMulberry32 seeds a generator.
func NewMulberry32(seed uint32) *Mulberry32 {
	return &Mulberry32{state: seed}
}

// Next returns a float in [0, 1).
func (m *Mulberry32) Next() float64 {
	m.state += 0x6D2B79F5
	t := m.state
	t = (t ^ (t >> 15)) * (t | 1)
	t ^= t + (t^(t>>7))*(t|61)
	return float64(t^(t>>14)) / 4294967296.0
}

// SpreadAngle maps the first output of a seeded generator to an angle in
// [-spreadMax, +spreadMax].
func SpreadAngle(seed uint32, spreadMax float64) float64 {
	return (NewMulberry32(seed).Next()*2 - 1) * spreadMax
}

// SeededSpread rotates a unit aim direction by the angle derived from seed.
func SeededSpread(direction geom.Vector2, seed uint32, spreadMax float64) geom.Vector2 {
	dir := direction.Normalize()
	if spreadMax == 0 || dir.IsZero() {
		return dir
	}
	return dir.Rotate(SpreadAngle(seed, spreadMax))
}
