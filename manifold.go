package phys2d

import "github.com/setanarut/vec"

const (
	featureVertex uint8 = 0
	featureFace   uint8 = 1
)

// ContactFeature identifies the shape features that intersect to form a
// contact point. It must stay small; it is stored across steps.
type ContactFeature struct {
	IndexA uint8 // feature index on shape A
	IndexB uint8 // feature index on shape B
	TypeA  uint8
	TypeB  uint8
}

// ContactID is a packed ContactFeature used to match contact points across
// steps for warm starting.
type ContactID ContactFeature

func (id ContactID) Key() uint32 {
	return uint32(id.IndexA) |
		uint32(id.IndexB)<<8 |
		uint32(id.TypeA)<<16 |
		uint32(id.TypeB)<<24
}

func (id *ContactID) SetKey(key uint32) {
	id.IndexA = uint8(key & 0xFF)
	id.IndexB = uint8(key >> 8 & 0xFF)
	id.TypeA = uint8(key >> 16 & 0xFF)
	id.TypeB = uint8(key >> 24 & 0xFF)
}

// ManifoldPoint is one contact point of a manifold. The local point usage
// depends on the manifold type. The impulses cache the solver results for
// warm starting.
type ManifoldPoint struct {
	LocalPoint     vec.Vec2
	NormalImpulse  float64
	TangentImpulse float64
	ID             ContactID
}

type ManifoldType uint8

const (
	ManifoldCircles ManifoldType = iota
	ManifoldFaceA
	ManifoldFaceB
)

// Manifold describes the touching region of two shapes. For ManifoldCircles
// LocalPoint is the local center of shape A and LocalNormal is unused; for
// the face types LocalPoint and LocalNormal live in the face owner's frame.
// Contacts are stored this way so position correction can account for
// movement.
type Manifold struct {
	Points      [maxManifoldPoints]ManifoldPoint
	LocalNormal vec.Vec2
	LocalPoint  vec.Vec2
	Type        ManifoldType
	PointCount  int
}

// WorldManifold is a manifold evaluated in world coordinates.
type WorldManifold struct {
	Normal      vec.Vec2 // points from A to B
	Points      [maxManifoldPoints]vec.Vec2
	Separations [maxManifoldPoints]float64 // negative means overlap
}

// Initialize computes the world manifold from a local manifold and the two
// shape transforms and radii.
func (wm *WorldManifold) Initialize(manifold *Manifold, xfA Transform, radiusA float64, xfB Transform, radiusB float64) {
	if manifold.PointCount == 0 {
		return
	}

	switch manifold.Type {
	case ManifoldCircles:
		wm.Normal = vec.Vec2{X: 1.0, Y: 0.0}
		pointA := xfA.Apply(manifold.LocalPoint)
		pointB := xfB.Apply(manifold.Points[0].LocalPoint)
		if pointB.Sub(pointA).LengthSq() > 1e-24 {
			wm.Normal = pointB.Sub(pointA).Unit()
		}

		cA := pointA.Add(wm.Normal.Scale(radiusA))
		cB := pointB.Sub(wm.Normal.Scale(radiusB))
		wm.Points[0] = cA.Add(cB).Scale(0.5)
		wm.Separations[0] = cB.Sub(cA).Dot(wm.Normal)

	case ManifoldFaceA:
		wm.Normal = xfA.Q.Apply(manifold.LocalNormal)
		planePoint := xfA.Apply(manifold.LocalPoint)

		for i := 0; i < manifold.PointCount; i++ {
			clipPoint := xfB.Apply(manifold.Points[i].LocalPoint)
			cA := clipPoint.Add(wm.Normal.Scale(radiusA - clipPoint.Sub(planePoint).Dot(wm.Normal)))
			cB := clipPoint.Sub(wm.Normal.Scale(radiusB))
			wm.Points[i] = cA.Add(cB).Scale(0.5)
			wm.Separations[i] = cB.Sub(cA).Dot(wm.Normal)
		}

	case ManifoldFaceB:
		wm.Normal = xfB.Q.Apply(manifold.LocalNormal)
		planePoint := xfB.Apply(manifold.LocalPoint)

		for i := 0; i < manifold.PointCount; i++ {
			clipPoint := xfA.Apply(manifold.Points[i].LocalPoint)
			cB := clipPoint.Add(wm.Normal.Scale(radiusB - clipPoint.Sub(planePoint).Dot(wm.Normal)))
			cA := clipPoint.Sub(wm.Normal.Scale(radiusA))
			wm.Points[i] = cA.Add(cB).Scale(0.5)
			wm.Separations[i] = cA.Sub(cB).Dot(wm.Normal)
		}

		// Ensure the normal points from A to B.
		wm.Normal = wm.Normal.Neg()
	}
}

// ContactImpulse reports the solver's resolved impulses for one contact,
// delivered through the post-solve hooks.
type ContactImpulse struct {
	NormalImpulses  [maxManifoldPoints]float64
	TangentImpulses [maxManifoldPoints]float64
	Count           int
}
