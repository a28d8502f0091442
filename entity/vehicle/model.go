package vehicle

import (
	"math"

	"git.fiblab.net/general/common/v2/mathutil"
	"github.com/samber/lo"
)

// follow is the intelligent driver model.
// Params:
//   - selfV: own speed
//   - targetV: desired speed
//   - aheadV: speed of the leader
//   - distance: gap to the leader
//   - minGap: gap kept at standstill
//   - headway: desired time headway
//
// Returns: acceleration (m/s²) clamped to [maxBrakingA, maxA]
// Algorithm:
// 1. a non-positive gap is a collision, brake as hard as possible
// 2. desired gap s* = minGap + max(0, v*headway + v*(v-vAhead)/(2*sqrt(a*b)))
// 3. a = maxA * (1 - (v/targetV)^4 - (s*/distance)^2)
func (v *Vehicle) follow(selfV, targetV, aheadV, distance, minGap, headway float64) float64 {
	if targetV <= 0 {
		return lo.Clamp(-selfV/v.dt(), v.maxBrakingA, 0)
	}
	var acc float64
	if distance <= 0 {
		acc = -mathutil.INF
	} else {
		// https://en.wikipedia.org/wiki/Intelligent_driver_model
		sStar := minGap + math.Max(
			0,
			selfV*headway+selfV*(selfV-aheadV)/2/math.Sqrt(-v.usualBrakingA*v.maxA),
		)
		acc = v.maxA * (1 - math.Pow(selfV/targetV, idmTheta) - math.Pow(sStar/distance, 2))
	}
	return lo.Clamp(acc, v.maxBrakingA, v.maxA)
}

// freeFlow accelerates towards targetV with nothing ahead.
func (v *Vehicle) freeFlow(targetV float64) float64 {
	return v.follow(v.v, targetV, targetV, mathutil.INF, v.minGap, v.headway)
}

// stop brakes to rest within distance. The headway is one frame since the
// target does not move.
func (v *Vehicle) stop(distance, targetV float64) float64 {
	return v.follow(v.v, targetV, 0, distance, stopGap, v.dt())
}
