package phys2d

// StackAllocator hands out island scratch slices with stack discipline:
// frees must come in reverse allocation order, and Reset releases the whole
// region at the end of a step. Each worker owns one allocator; it is not
// safe for concurrent use.
type StackAllocator struct {
	positions  []Position
	posTop     int
	velocities []Velocity
	velTop     int
}

func (a *StackAllocator) AllocPositions(n int) []Position {
	if a.posTop+n > len(a.positions) {
		grown := make([]Position, maxInt(2*len(a.positions), a.posTop+n))
		copy(grown, a.positions[:a.posTop])
		a.positions = grown
	}
	s := a.positions[a.posTop : a.posTop+n : a.posTop+n]
	a.posTop += n
	return s
}

func (a *StackAllocator) FreePositions(s []Position) {
	assert(a.posTop >= len(s))
	a.posTop -= len(s)
}

func (a *StackAllocator) AllocVelocities(n int) []Velocity {
	if a.velTop+n > len(a.velocities) {
		grown := make([]Velocity, maxInt(2*len(a.velocities), a.velTop+n))
		copy(grown, a.velocities[:a.velTop])
		a.velocities = grown
	}
	s := a.velocities[a.velTop : a.velTop+n : a.velTop+n]
	a.velTop += n
	return s
}

func (a *StackAllocator) FreeVelocities(s []Velocity) {
	assert(a.velTop >= len(s))
	a.velTop -= len(s)
}

// Reset releases everything at once. Call only between steps.
func (a *StackAllocator) Reset() {
	a.posTop = 0
	a.velTop = 0
}
