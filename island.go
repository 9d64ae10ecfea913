package phys2d

import (
	"math"

	"github.com/setanarut/vec"
)

// ReportMode selects how an island delivers post-solve impulses.
type ReportMode uint8

const (
	// ReportBuffered records one post-solve record per reportable contact
	// into the caller-supplied, worker-owned buffer. The manager's
	// FinishSolve delivers them later in deterministic order. Required
	// when islands are solved in parallel.
	ReportBuffered ReportMode = iota

	// ReportDirect calls the ordered listener hook inline. Only valid
	// when islands are solved one at a time on a single thread.
	ReportDirect
)

// Island is a transient group of bodies, contacts and joints solved
// together for one step. Position/velocity scratch comes from a
// step-scoped stack allocator and is released wholesale.
type Island struct {
	bodies   []*Body
	contacts []*Contact
	joints   []Joint

	// Static bodies may belong to several islands solved concurrently, so
	// the body-to-scratch-index mapping is island-owned rather than a
	// field on the body.
	indices map[*Body]int

	positions  []Position
	velocities []Velocity

	reportMode ReportMode
}

func MakeIsland(mode ReportMode) Island {
	return Island{
		indices:    make(map[*Body]int),
		reportMode: mode,
	}
}

func (isl *Island) Clear() {
	isl.bodies = isl.bodies[:0]
	isl.contacts = isl.contacts[:0]
	isl.joints = isl.joints[:0]
	for b := range isl.indices {
		delete(isl.indices, b)
	}
}

func (isl *Island) AddBody(b *Body) {
	isl.indices[b] = len(isl.bodies)
	isl.bodies = append(isl.bodies, b)
}

func (isl *Island) AddContact(c *Contact) {
	isl.contacts = append(isl.contacts, c)
}

func (isl *Island) AddJoint(j Joint) {
	isl.joints = append(isl.joints, j)
}

func (isl *Island) BodyCount() int { return len(isl.bodies) }

func (isl *Island) ContactCount() int { return len(isl.contacts) }

// Solve integrates the island's bodies for one step, runs the contact
// and joint constraints, reports exactly one post-solve record per
// touching, enabled, non-sensor contact with at least one manifold point,
// and decides sleep. The listener is never called directly in buffered
// mode; records go into postSolves, and bodies ready to sleep go into
// sleeps, both of which must be owned by this worker. Sleep is applied in
// FinishSolve: SetAwake touches contact flags shared with neighboring
// islands, so it cannot run during the parallel phase.
func (isl *Island) Solve(profile *Profile, step TimeStep, gravity vec.Vec2, allocator *StackAllocator,
	listener ContactListener, threadID uint32, allowSleep bool,
	postSolves *[]deferredPostSolve, sleeps *[]*Body) {

	timer := makeProfileTimer()

	h := step.Dt

	isl.positions = allocator.AllocPositions(len(isl.bodies))
	isl.velocities = allocator.AllocVelocities(len(isl.bodies))

	// Integrate velocities and copy state into the scratch arrays.
	for i, b := range isl.bodies {
		c := b.sweep.C
		a := b.sweep.A
		v := b.linearVelocity
		w := b.angularVelocity

		// Store positions for continuous collision. A static body may be
		// shared with islands solving concurrently; its sweep never
		// changes, so writing it back would only race.
		if b.bodyType != StaticBody {
			b.sweep.C0 = b.sweep.C
			b.sweep.A0 = b.sweep.A
		}

		if b.bodyType == DynamicBody {
			v = v.Add(gravity.Scale(b.gravityScale).Add(b.force.Scale(b.invMass)).Scale(h))
			w += h * b.invI * b.torque

			// Solution from ODE: exact when damping is constant over the
			// step.
			v = v.Scale(1.0 / (1.0 + h*b.linearDamping))
			w *= 1.0 / (1.0 + h*b.angularDamping)
		}

		isl.positions[i] = Position{C: c, A: a}
		isl.velocities[i] = Velocity{V: v, W: w}
	}

	solverData := SolverData{
		Step:       step,
		Positions:  isl.positions,
		Velocities: isl.velocities,
		Indices:    isl.indices,
		ThreadID:   threadID,
	}

	solver := newContactSolver(contactSolverDef{
		step:       step,
		contacts:   isl.contacts,
		indices:    isl.indices,
		positions:  isl.positions,
		velocities: isl.velocities,
	})
	solver.initializeVelocityConstraints()

	if step.WarmStarting {
		solver.warmStart()
	}

	for _, j := range isl.joints {
		j.InitVelocityConstraints(solverData)
	}

	profile.SolveInit += timer.milliseconds()
	timer.reset()

	for iter := 0; iter < step.VelocityIterations; iter++ {
		for _, j := range isl.joints {
			j.SolveVelocityConstraints(solverData)
		}
		solver.solveVelocityConstraints()
	}

	solver.storeImpulses()
	profile.SolveVelocity += timer.milliseconds()
	timer.reset()

	// Integrate positions with translation and rotation clamps.
	for i := range isl.positions {
		c := isl.positions[i].C
		a := isl.positions[i].A
		v := isl.velocities[i].V
		w := isl.velocities[i].W

		translation := v.Scale(h)
		if translation.Dot(translation) > maxTranslationSquared {
			ratio := maxTranslation / translation.Mag()
			v = v.Scale(ratio)
		}

		rotation := h * w
		if rotation*rotation > maxRotationSquared {
			ratio := maxRotation / math.Abs(rotation)
			w *= ratio
		}

		isl.positions[i].C = c.Add(v.Scale(h))
		isl.positions[i].A = a + h*w
		isl.velocities[i].V = v
		isl.velocities[i].W = w
	}

	positionSolved := false
	for iter := 0; iter < step.PositionIterations; iter++ {
		contactsOkay := solver.solvePositionConstraints()

		jointsOkay := true
		for _, j := range isl.joints {
			if !j.SolvePositionConstraints(solverData) {
				jointsOkay = false
			}
		}

		if contactsOkay && jointsOkay {
			// Exit early if the position errors are small.
			positionSolved = true
			break
		}
	}

	// Copy state back. Static bodies are shared between islands that may
	// be solving concurrently; their state never changes, so skip them
	// rather than racing on the write.
	for i, b := range isl.bodies {
		if b.bodyType == StaticBody {
			continue
		}
		b.sweep.C = isl.positions[i].C
		b.sweep.A = isl.positions[i].A
		b.linearVelocity = isl.velocities[i].V
		b.angularVelocity = isl.velocities[i].W
		b.synchronizeTransform()
	}

	profile.SolvePosition += timer.milliseconds()

	isl.report(listener, threadID, postSolves)

	if allowSleep {
		minSleepTime := maxFloat

		for _, b := range isl.bodies {
			if b.bodyType == StaticBody {
				continue
			}

			if !b.IsSleepingAllowed() ||
				b.angularVelocity*b.angularVelocity > angularSleepToleranceSquared ||
				b.linearVelocity.Dot(b.linearVelocity) > linearSleepToleranceSquared {
				b.sleepTime = 0.0
				minSleepTime = 0.0
			} else {
				b.sleepTime += h
				minSleepTime = math.Min(minSleepTime, b.sleepTime)
			}
		}

		if minSleepTime >= timeToSleep && positionSolved {
			for _, b := range isl.bodies {
				// Statics are shared with other islands; their awake state
				// is irrelevant to contact activity anyway.
				if b.bodyType == StaticBody {
					continue
				}
				*sleeps = append(*sleeps, b)
			}
		}
	}

	allocator.FreeVelocities(isl.velocities)
	allocator.FreePositions(isl.positions)
	isl.velocities = nil
	isl.positions = nil
}

// SolveTOI advances a mini island to resolve the initial overlap of the
// two implicated bodies, then runs a velocity-only sub-step. Impulses are
// applied but not stored, so warm starting is unaffected.
func (isl *Island) SolveTOI(subStep TimeStep, toiIndexA, toiIndexB int, allocator *StackAllocator,
	listener ContactListener, threadID uint32, postSolves *[]deferredPostSolve) {

	assert(toiIndexA < len(isl.bodies))
	assert(toiIndexB < len(isl.bodies))

	isl.positions = allocator.AllocPositions(len(isl.bodies))
	isl.velocities = allocator.AllocVelocities(len(isl.bodies))

	for i, b := range isl.bodies {
		isl.positions[i] = Position{C: b.sweep.C, A: b.sweep.A}
		isl.velocities[i] = Velocity{V: b.linearVelocity, W: b.angularVelocity}
	}

	solver := newContactSolver(contactSolverDef{
		step:       subStep,
		contacts:   isl.contacts,
		indices:    isl.indices,
		positions:  isl.positions,
		velocities: isl.velocities,
	})

	// Resolve the initial overlap; every body except the TOI pair is
	// treated as infinitely heavy.
	for iter := 0; iter < subStep.PositionIterations; iter++ {
		if solver.solveTOIPositionConstraints(toiIndexA, toiIndexB) {
			break
		}
	}

	// Leap of faith to the new safe state.
	isl.bodies[toiIndexA].sweep.C0 = isl.positions[toiIndexA].C
	isl.bodies[toiIndexA].sweep.A0 = isl.positions[toiIndexA].A
	isl.bodies[toiIndexB].sweep.C0 = isl.positions[toiIndexB].C
	isl.bodies[toiIndexB].sweep.A0 = isl.positions[toiIndexB].A

	// The constraint points are up to date after the position solve.
	solver.initializeVelocityConstraints()

	for iter := 0; iter < subStep.VelocityIterations; iter++ {
		solver.solveVelocityConstraints()
	}

	h := subStep.Dt

	for i := range isl.positions {
		c := isl.positions[i].C
		a := isl.positions[i].A
		v := isl.velocities[i].V
		w := isl.velocities[i].W

		translation := v.Scale(h)
		if translation.Dot(translation) > maxTranslationSquared {
			v = v.Scale(maxTranslation / translation.Mag())
		}

		rotation := h * w
		if rotation*rotation > maxRotationSquared {
			w *= maxRotation / math.Abs(rotation)
		}

		isl.positions[i].C = c.Add(v.Scale(h))
		isl.positions[i].A = a + h*w
		isl.velocities[i].V = v
		isl.velocities[i].W = w
	}

	for i, b := range isl.bodies {
		if b.bodyType == StaticBody {
			continue
		}
		b.sweep.C = isl.positions[i].C
		b.sweep.A = isl.positions[i].A
		b.linearVelocity = isl.velocities[i].V
		b.angularVelocity = isl.velocities[i].W
		b.synchronizeTransform()
	}

	isl.report(listener, threadID, postSolves)

	allocator.FreeVelocities(isl.velocities)
	allocator.FreePositions(isl.positions)
	isl.velocities = nil
	isl.positions = nil
}

// report emits one impulse record per touching, enabled, non-sensor
// contact with at least one manifold point.
func (isl *Island) report(listener ContactListener, threadID uint32, postSolves *[]deferredPostSolve) {
	if listener == nil {
		return
	}

	for _, c := range isl.contacts {
		if !c.IsTouching() || !c.IsEnabled() {
			continue
		}
		if c.fixtureA.isSensor || c.fixtureB.isSensor {
			continue
		}
		if c.manifold.PointCount == 0 {
			continue
		}

		var impulse ContactImpulse
		impulse.Count = c.manifold.PointCount
		for i := 0; i < c.manifold.PointCount; i++ {
			impulse.NormalImpulses[i] = c.manifold.Points[i].NormalImpulse
			impulse.TangentImpulses[i] = c.manifold.Points[i].TangentImpulse
		}

		if !listener.PostSolveImmediate(c, &impulse, threadID) {
			continue
		}

		switch isl.reportMode {
		case ReportBuffered:
			*postSolves = append(*postSolves, deferredPostSolve{contact: c, impulse: impulse})
		case ReportDirect:
			listener.PostSolve(c, &impulse)
		}
	}
}
