package phys2d

import (
	"time"

	"github.com/setanarut/vec"
)

// Profile holds per-step timings in milliseconds.
type Profile struct {
	Step                   float64
	Collide                float64
	Solve                  float64
	SolveInit              float64
	SolveVelocity          float64
	SolvePosition          float64
	SolveTOI               float64
	Broadphase             float64
	BroadphaseFindContacts float64
	BroadphaseSyncFixtures float64
}

// AddProfile accumulates src into dest with a scale factor, for averaging
// timings across sub-steps.
func AddProfile(dest *Profile, src *Profile, scale float64) {
	dest.Step += scale * src.Step
	dest.Collide += scale * src.Collide
	dest.Solve += scale * src.Solve
	dest.SolveInit += scale * src.SolveInit
	dest.SolveVelocity += scale * src.SolveVelocity
	dest.SolvePosition += scale * src.SolvePosition
	dest.SolveTOI += scale * src.SolveTOI
	dest.Broadphase += scale * src.Broadphase
	dest.BroadphaseFindContacts += scale * src.BroadphaseFindContacts
	dest.BroadphaseSyncFixtures += scale * src.BroadphaseSyncFixtures
}

// TimeStep carries the step parameters handed to solve calls.
type TimeStep struct {
	Dt      float64 // time step
	InvDt   float64 // inverse time step (0 if dt == 0)
	DtRatio float64 // dt * inv_dt0

	VelocityIterations int
	PositionIterations int
	WarmStarting       bool
}

// Position is a body position entry in island scratch space.
type Position struct {
	C vec.Vec2
	A float64
}

// Velocity is a body velocity entry in island scratch space.
type Velocity struct {
	V vec.Vec2
	W float64
}

// SolverData bundles the scratch views passed to joint solving. Indices
// maps each island body to its slot in Positions/Velocities.
type SolverData struct {
	Step       TimeStep
	Positions  []Position
	Velocities []Velocity
	Indices    map[*Body]int
	ThreadID   uint32
}

type profileTimer struct {
	start time.Time
}

func makeProfileTimer() profileTimer {
	return profileTimer{start: time.Now()}
}

func (t *profileTimer) reset() {
	t.start = time.Now()
}

func (t *profileTimer) milliseconds() float64 {
	return float64(time.Since(t.start)) / float64(time.Millisecond)
}
