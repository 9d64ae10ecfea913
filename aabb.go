package phys2d

import "github.com/setanarut/vec"

// AABB is an axis-aligned bounding box.
type AABB struct {
	Lower, Upper vec.Vec2
}

func MakeAABB(lower, upper vec.Vec2) AABB {
	return AABB{Lower: lower, Upper: upper}
}

func (a AABB) Center() vec.Vec2 {
	return a.Lower.Add(a.Upper).Scale(0.5)
}

func (a AABB) Extents() vec.Vec2 {
	return a.Upper.Sub(a.Lower).Scale(0.5)
}

func (a AABB) Perimeter() float64 {
	wx := a.Upper.X - a.Lower.X
	wy := a.Upper.Y - a.Lower.Y
	return 2.0 * (wx + wy)
}

// Combine returns the union of a and b.
func (a AABB) Combine(b AABB) AABB {
	return AABB{
		Lower: minVec(a.Lower, b.Lower),
		Upper: maxVec(a.Upper, b.Upper),
	}
}

// Contains reports whether a fully contains b.
func (a AABB) Contains(b AABB) bool {
	return a.Lower.X <= b.Lower.X &&
		a.Lower.Y <= b.Lower.Y &&
		b.Upper.X <= a.Upper.X &&
		b.Upper.Y <= a.Upper.Y
}

// TestOverlap reports whether two AABBs intersect.
func TestOverlap(a, b AABB) bool {
	if b.Lower.X-a.Upper.X > 0.0 || b.Lower.Y-a.Upper.Y > 0.0 {
		return false
	}
	if a.Lower.X-b.Upper.X > 0.0 || a.Lower.Y-b.Upper.Y > 0.0 {
		return false
	}
	return true
}

// RayCastInput describes a ray cast from P1 towards P2, clipped at
// MaxFraction of the segment.
type RayCastInput struct {
	P1, P2      vec.Vec2
	MaxFraction float64
}

// RayCastOutput reports the hit normal and the fraction along the segment.
type RayCastOutput struct {
	Normal   vec.Vec2
	Fraction float64
}
