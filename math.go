package phys2d

import (
	"math"

	"github.com/setanarut/vec"
)

// Rot is a 2D rotation stored as sine/cosine of the angle.
type Rot struct {
	S, C float64
}

func MakeRot(angle float64) Rot {
	return Rot{S: math.Sin(angle), C: math.Cos(angle)}
}

func (q Rot) Angle() float64 {
	return math.Atan2(q.S, q.C)
}

// Apply rotates v.
func (q Rot) Apply(v vec.Vec2) vec.Vec2 {
	return vec.Vec2{X: q.C*v.X - q.S*v.Y, Y: q.S*v.X + q.C*v.Y}
}

// ApplyT applies the inverse rotation to v.
func (q Rot) ApplyT(v vec.Vec2) vec.Vec2 {
	return vec.Vec2{X: q.C*v.X + q.S*v.Y, Y: -q.S*v.X + q.C*v.Y}
}

// Transform carries a translation and a rotation. It is used to represent
// the position and orientation of rigid frames.
type Transform struct {
	P vec.Vec2
	Q Rot
}

func MakeTransform(position vec.Vec2, angle float64) Transform {
	return Transform{P: position, Q: MakeRot(angle)}
}

// Apply maps a point from the local frame to the world frame.
func (t Transform) Apply(v vec.Vec2) vec.Vec2 {
	return t.Q.Apply(v).Add(t.P)
}

// ApplyT maps a point from the world frame to the local frame.
func (t Transform) ApplyT(v vec.Vec2) vec.Vec2 {
	return t.Q.ApplyT(v.Sub(t.P))
}

// Sweep describes the motion of a body origin and orientation over the step,
// for continuous collision. The position advances from c0/a0 at alpha0 to
// c/a at the step end.
type Sweep struct {
	LocalCenter vec.Vec2
	C0, C       vec.Vec2
	A0, A       float64
	Alpha0      float64
}

// GetTransform computes the interpolated transform at beta in [0,1].
func (s *Sweep) GetTransform(xf *Transform, beta float64) {
	xf.P = s.C0.Scale(1.0 - beta).Add(s.C.Scale(beta))
	xf.Q = MakeRot((1.0-beta)*s.A0 + beta*s.A)
	xf.P = xf.P.Sub(xf.Q.Apply(s.LocalCenter))
}

// Advance forwards the sweep start to alpha, where alpha0 <= alpha < 1.
func (s *Sweep) Advance(alpha float64) {
	assert(s.Alpha0 < 1.0)
	beta := (alpha - s.Alpha0) / (1.0 - s.Alpha0)
	s.C0 = s.C0.Lerp(s.C, beta)
	s.A0 += beta * (s.A - s.A0)
	s.Alpha0 = alpha
}

// Normalize trims the sweep angles to [-2pi, 2pi].
func (s *Sweep) Normalize() {
	twoPi := 2.0 * math.Pi
	d := twoPi * math.Floor(s.A0/twoPi)
	s.A0 -= d
	s.A -= d
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(x, hi))
}

// crossSV computes s x v, the cross product of a scalar and a vector.
func crossSV(s float64, v vec.Vec2) vec.Vec2 {
	return vec.Vec2{X: -s * v.Y, Y: s * v.X}
}

func minVec(a, b vec.Vec2) vec.Vec2 {
	return vec.Vec2{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y)}
}

func maxVec(a, b vec.Vec2) vec.Vec2 {
	return vec.Vec2{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y)}
}

func absVec(a vec.Vec2) vec.Vec2 {
	return vec.Vec2{X: math.Abs(a.X), Y: math.Abs(a.Y)}
}
