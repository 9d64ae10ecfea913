package phys2d

// Joint constrains two bodies. Concrete joints live outside the core;
// the solver only needs the velocity/position iteration hooks and the
// collision veto for connected bodies.
type Joint interface {
	BodyA() *Body
	BodyB() *Body

	// CollideConnected reports whether the attached bodies may still
	// collide with each other.
	CollideConnected() bool

	InitVelocityConstraints(data SolverData)
	SolveVelocityConstraints(data SolverData)

	// SolvePositionConstraints returns true when the position error is
	// within tolerance.
	SolvePositionConstraints(data SolverData) bool
}

// JointEdge connects bodies in the joint graph, one edge per body per
// joint.
type JointEdge struct {
	Other *Body
	Joint Joint
}
