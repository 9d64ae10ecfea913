package phys2d

import "math"

const (
	// Fattening applied to proxy AABBs in the spatial index. This allows
	// a proxy to move by small amounts without triggering an index update.
	aabbExtension = 0.1

	// Multiplier applied to a moving proxy's displacement to predict its
	// AABB over the next steps, further reducing index updates.
	aabbMultiplier = 2.0

	// A manifold holds at most this many contact points.
	maxManifoldPoints = 2

	// Collision/constraint tolerances.
	linearSlop          = 0.005
	maxLinearCorrection = 0.2
	velocityThreshold   = 1.0
	baumgarte           = 0.2

	// Clamps on per-step body motion to keep the solver stable.
	maxTranslation        = 2.0
	maxTranslationSquared = maxTranslation * maxTranslation
	maxRotation           = 0.5 * math.Pi
	maxRotationSquared    = maxRotation * maxRotation

	// Sleep thresholds.
	timeToSleep           = 0.5
	linearSleepTolerance  = 0.01
	angularSleepTolerance = 2.0 / 180.0 * math.Pi

	linearSleepToleranceSquared  = linearSleepTolerance * linearSleepTolerance
	angularSleepToleranceSquared = angularSleepTolerance * angularSleepTolerance

	maxFloat = math.MaxFloat64
)

// assert flags programmer errors. Invalid proxy or contact handles are not
// recoverable conditions; there is no error channel for them.
func assert(cond bool) {
	if !cond {
		panic("phys2d: assertion failed")
	}
}
