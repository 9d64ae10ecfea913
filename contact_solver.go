package phys2d

import (
	"math"

	"github.com/setanarut/vec"
)

// Sequential-impulse contact solver. Iterates normal and friction
// impulses point by point with warm starting, and corrects position
// error with a Baumgarte-style pseudo step.

type velocityConstraintPoint struct {
	rA, rB         vec.Vec2
	normalImpulse  float64
	tangentImpulse float64
	normalMass     float64
	tangentMass    float64
	velocityBias   float64
}

type contactVelocityConstraint struct {
	points       [maxManifoldPoints]velocityConstraintPoint
	normal       vec.Vec2
	pointCount   int
	contactIndex int

	indexA, indexB     int
	invMassA, invMassB float64
	invIA, invIB       float64
	friction           float64
	restitution        float64
	tangentSpeed       float64
}

type contactPositionConstraint struct {
	localPoints                [maxManifoldPoints]vec.Vec2
	localNormal                vec.Vec2
	localPoint                 vec.Vec2
	indexA, indexB             int
	invMassA, invMassB         float64
	invIA, invIB               float64
	localCenterA, localCenterB vec.Vec2
	manifoldType               ManifoldType
	radiusA, radiusB           float64
	pointCount                 int
}

type contactSolverDef struct {
	step       TimeStep
	contacts   []*Contact
	indices    map[*Body]int
	positions  []Position
	velocities []Velocity
}

type contactSolver struct {
	step       TimeStep
	positions  []Position
	velocities []Velocity

	positionConstraints []contactPositionConstraint
	velocityConstraints []contactVelocityConstraint
	contacts            []*Contact
}

func newContactSolver(def contactSolverDef) *contactSolver {
	s := &contactSolver{
		step:       def.step,
		positions:  def.positions,
		velocities: def.velocities,
		contacts:   def.contacts,

		positionConstraints: make([]contactPositionConstraint, len(def.contacts)),
		velocityConstraints: make([]contactVelocityConstraint, len(def.contacts)),
	}

	for i, c := range s.contacts {
		fixtureA := c.fixtureA
		fixtureB := c.fixtureB
		bodyA := fixtureA.body
		bodyB := fixtureB.body
		manifold := &c.manifold

		assert(manifold.PointCount > 0)

		vc := &s.velocityConstraints[i]
		vc.friction = c.friction
		vc.restitution = c.restitution
		vc.tangentSpeed = c.tangentSpeed
		vc.indexA = def.indices[bodyA]
		vc.indexB = def.indices[bodyB]
		vc.invMassA = bodyA.invMass
		vc.invMassB = bodyB.invMass
		vc.invIA = bodyA.invI
		vc.invIB = bodyB.invI
		vc.contactIndex = i
		vc.pointCount = manifold.PointCount

		pc := &s.positionConstraints[i]
		pc.indexA = vc.indexA
		pc.indexB = vc.indexB
		pc.invMassA = bodyA.invMass
		pc.invMassB = bodyB.invMass
		pc.localCenterA = bodyA.sweep.LocalCenter
		pc.localCenterB = bodyB.sweep.LocalCenter
		pc.invIA = bodyA.invI
		pc.invIB = bodyB.invI
		pc.localNormal = manifold.LocalNormal
		pc.localPoint = manifold.LocalPoint
		pc.pointCount = manifold.PointCount
		pc.radiusA = fixtureA.shape.Radius()
		pc.radiusB = fixtureB.shape.Radius()
		pc.manifoldType = manifold.Type

		for j := 0; j < manifold.PointCount; j++ {
			cp := &manifold.Points[j]
			vcp := &vc.points[j]

			if s.step.WarmStarting {
				vcp.normalImpulse = s.step.DtRatio * cp.NormalImpulse
				vcp.tangentImpulse = s.step.DtRatio * cp.TangentImpulse
			}

			pc.localPoints[j] = cp.LocalPoint
		}
	}

	return s
}

func (s *contactSolver) initializeVelocityConstraints() {
	for i := range s.velocityConstraints {
		vc := &s.velocityConstraints[i]
		pc := &s.positionConstraints[i]

		manifold := &s.contacts[vc.contactIndex].manifold

		cA := s.positions[vc.indexA].C
		aA := s.positions[vc.indexA].A
		vA := s.velocities[vc.indexA].V
		wA := s.velocities[vc.indexA].W

		cB := s.positions[vc.indexB].C
		aB := s.positions[vc.indexB].A
		vB := s.velocities[vc.indexB].V
		wB := s.velocities[vc.indexB].W

		var xfA, xfB Transform
		xfA.Q = MakeRot(aA)
		xfB.Q = MakeRot(aB)
		xfA.P = cA.Sub(xfA.Q.Apply(pc.localCenterA))
		xfB.P = cB.Sub(xfB.Q.Apply(pc.localCenterB))

		var wm WorldManifold
		wm.Initialize(manifold, xfA, pc.radiusA, xfB, pc.radiusB)

		vc.normal = wm.Normal
		tangent := vec.Vec2{X: vc.normal.Y, Y: -vc.normal.X}

		for j := 0; j < vc.pointCount; j++ {
			vcp := &vc.points[j]

			vcp.rA = wm.Points[j].Sub(cA)
			vcp.rB = wm.Points[j].Sub(cB)

			rnA := vcp.rA.Cross(vc.normal)
			rnB := vcp.rB.Cross(vc.normal)
			kNormal := vc.invMassA + vc.invMassB + vc.invIA*rnA*rnA + vc.invIB*rnB*rnB
			if kNormal > 0.0 {
				vcp.normalMass = 1.0 / kNormal
			}

			rtA := vcp.rA.Cross(tangent)
			rtB := vcp.rB.Cross(tangent)
			kTangent := vc.invMassA + vc.invMassB + vc.invIA*rtA*rtA + vc.invIB*rtB*rtB
			if kTangent > 0.0 {
				vcp.tangentMass = 1.0 / kTangent
			}

			// Restitution bias from the approach velocity.
			vcp.velocityBias = 0.0
			dv := vB.Add(crossSV(wB, vcp.rB)).Sub(vA).Sub(crossSV(wA, vcp.rA))
			vRel := vc.normal.Dot(dv)
			if vRel < -velocityThreshold {
				vcp.velocityBias = -vc.restitution * vRel
			}
		}
	}
}

func (s *contactSolver) warmStart() {
	for i := range s.velocityConstraints {
		vc := &s.velocityConstraints[i]

		vA := s.velocities[vc.indexA].V
		wA := s.velocities[vc.indexA].W
		vB := s.velocities[vc.indexB].V
		wB := s.velocities[vc.indexB].W

		normal := vc.normal
		tangent := vec.Vec2{X: normal.Y, Y: -normal.X}

		for j := 0; j < vc.pointCount; j++ {
			vcp := &vc.points[j]
			p := normal.Scale(vcp.normalImpulse).Add(tangent.Scale(vcp.tangentImpulse))
			wA -= vc.invIA * vcp.rA.Cross(p)
			vA = vA.Sub(p.Scale(vc.invMassA))
			wB += vc.invIB * vcp.rB.Cross(p)
			vB = vB.Add(p.Scale(vc.invMassB))
		}

		s.velocities[vc.indexA].V = vA
		s.velocities[vc.indexA].W = wA
		s.velocities[vc.indexB].V = vB
		s.velocities[vc.indexB].W = wB
	}
}

func (s *contactSolver) solveVelocityConstraints() {
	for i := range s.velocityConstraints {
		vc := &s.velocityConstraints[i]

		vA := s.velocities[vc.indexA].V
		wA := s.velocities[vc.indexA].W
		vB := s.velocities[vc.indexB].V
		wB := s.velocities[vc.indexB].W

		normal := vc.normal
		tangent := vec.Vec2{X: normal.Y, Y: -normal.X}

		// Friction first, using the previous normal impulse as the limit.
		for j := 0; j < vc.pointCount; j++ {
			vcp := &vc.points[j]

			dv := vB.Add(crossSV(wB, vcp.rB)).Sub(vA).Sub(crossSV(wA, vcp.rA))
			vt := dv.Dot(tangent) - vc.tangentSpeed
			lambda := vcp.tangentMass * -vt

			maxFriction := vc.friction * vcp.normalImpulse
			newImpulse := clamp(vcp.tangentImpulse+lambda, -maxFriction, maxFriction)
			lambda = newImpulse - vcp.tangentImpulse
			vcp.tangentImpulse = newImpulse

			p := tangent.Scale(lambda)
			vA = vA.Sub(p.Scale(vc.invMassA))
			wA -= vc.invIA * vcp.rA.Cross(p)
			vB = vB.Add(p.Scale(vc.invMassB))
			wB += vc.invIB * vcp.rB.Cross(p)
		}

		for j := 0; j < vc.pointCount; j++ {
			vcp := &vc.points[j]

			dv := vB.Add(crossSV(wB, vcp.rB)).Sub(vA).Sub(crossSV(wA, vcp.rA))
			vn := dv.Dot(normal)
			lambda := -vcp.normalMass * (vn - vcp.velocityBias)

			newImpulse := math.Max(vcp.normalImpulse+lambda, 0.0)
			lambda = newImpulse - vcp.normalImpulse
			vcp.normalImpulse = newImpulse

			p := normal.Scale(lambda)
			vA = vA.Sub(p.Scale(vc.invMassA))
			wA -= vc.invIA * vcp.rA.Cross(p)
			vB = vB.Add(p.Scale(vc.invMassB))
			wB += vc.invIB * vcp.rB.Cross(p)
		}

		s.velocities[vc.indexA].V = vA
		s.velocities[vc.indexA].W = wA
		s.velocities[vc.indexB].V = vB
		s.velocities[vc.indexB].W = wB
	}
}

func (s *contactSolver) storeImpulses() {
	for i := range s.velocityConstraints {
		vc := &s.velocityConstraints[i]
		manifold := &s.contacts[vc.contactIndex].manifold

		for j := 0; j < vc.pointCount; j++ {
			manifold.Points[j].NormalImpulse = vc.points[j].normalImpulse
			manifold.Points[j].TangentImpulse = vc.points[j].tangentImpulse
		}
	}
}

// positionSolverManifold extracts a world point, normal and separation
// for one constraint point from the stored local manifold.
type positionSolverManifold struct {
	normal     vec.Vec2
	point      vec.Vec2
	separation float64
}

func (psm *positionSolverManifold) initialize(pc *contactPositionConstraint, xfA, xfB Transform, index int) {
	assert(pc.pointCount > 0)

	switch pc.manifoldType {
	case ManifoldCircles:
		pointA := xfA.Apply(pc.localPoint)
		pointB := xfB.Apply(pc.localPoints[0])
		psm.normal = pointB.Sub(pointA).Unit()
		psm.point = pointA.Add(pointB).Scale(0.5)
		psm.separation = pointB.Sub(pointA).Dot(psm.normal) - pc.radiusA - pc.radiusB

	case ManifoldFaceA:
		psm.normal = xfA.Q.Apply(pc.localNormal)
		planePoint := xfA.Apply(pc.localPoint)
		clipPoint := xfB.Apply(pc.localPoints[index])
		psm.separation = clipPoint.Sub(planePoint).Dot(psm.normal) - pc.radiusA - pc.radiusB
		psm.point = clipPoint

	case ManifoldFaceB:
		psm.normal = xfB.Q.Apply(pc.localNormal)
		planePoint := xfB.Apply(pc.localPoint)
		clipPoint := xfA.Apply(pc.localPoints[index])
		psm.separation = clipPoint.Sub(planePoint).Dot(psm.normal) - pc.radiusA - pc.radiusB
		psm.point = clipPoint

		// Keep the normal pointing from A to B.
		psm.normal = psm.normal.Neg()
	}
}

// solvePositionConstraints pushes overlapping bodies apart. Returns true
// when the worst separation is within tolerance.
func (s *contactSolver) solvePositionConstraints() bool {
	return s.solvePositionConstraintsImpl(false, 0, 0)
}

// solveTOIPositionConstraints treats every body except the two TOI bodies
// as having infinite mass.
func (s *contactSolver) solveTOIPositionConstraints(toiIndexA, toiIndexB int) bool {
	return s.solvePositionConstraintsImpl(true, toiIndexA, toiIndexB)
}

func (s *contactSolver) solvePositionConstraintsImpl(toi bool, toiIndexA, toiIndexB int) bool {
	minSeparation := 0.0

	for i := range s.positionConstraints {
		pc := &s.positionConstraints[i]

		mA := pc.invMassA
		iA := pc.invIA
		mB := pc.invMassB
		iB := pc.invIB
		if toi && pc.indexA != toiIndexA && pc.indexA != toiIndexB {
			mA = 0.0
			iA = 0.0
		}
		if toi && pc.indexB != toiIndexA && pc.indexB != toiIndexB {
			mB = 0.0
			iB = 0.0
		}

		cA := s.positions[pc.indexA].C
		aA := s.positions[pc.indexA].A
		cB := s.positions[pc.indexB].C
		aB := s.positions[pc.indexB].A

		for j := 0; j < pc.pointCount; j++ {
			var xfA, xfB Transform
			xfA.Q = MakeRot(aA)
			xfB.Q = MakeRot(aB)
			xfA.P = cA.Sub(xfA.Q.Apply(pc.localCenterA))
			xfB.P = cB.Sub(xfB.Q.Apply(pc.localCenterB))

			var psm positionSolverManifold
			psm.initialize(pc, xfA, xfB, j)

			normal := psm.normal
			point := psm.point
			separation := psm.separation

			rA := point.Sub(cA)
			rB := point.Sub(cB)

			minSeparation = math.Min(minSeparation, separation)

			c := clamp(baumgarte*(separation+linearSlop), -maxLinearCorrection, 0.0)

			rnA := rA.Cross(normal)
			rnB := rB.Cross(normal)
			k := mA + mB + iA*rnA*rnA + iB*rnB*rnB

			impulse := 0.0
			if k > 0.0 {
				impulse = -c / k
			}

			p := normal.Scale(impulse)

			cA = cA.Sub(p.Scale(mA))
			aA -= iA * rA.Cross(p)
			cB = cB.Add(p.Scale(mB))
			aB += iB * rB.Cross(p)
		}

		s.positions[pc.indexA].C = cA
		s.positions[pc.indexA].A = aA
		s.positions[pc.indexB].C = cB
		s.positions[pc.indexB].A = aB
	}

	// Push factor stops short of full overlap resolution, so tolerate
	// triple the slop.
	return minSeparation >= -3.0*linearSlop
}
