package intersection

import (
	"math"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
)

const (
	feet = 0.3048

	gravity         = 9.81
	brakingFriction = 0.6

	clearedDistance   = 5 * feet  // a vehicle this close to its corridor end has cleared the junction
	proximityDistance = 20 * feet // a vehicle this close to a merge point keeps it
	holdTolerance     = 5 * feet  // a stop sign is served by coming to rest this close to the hold line

	stationarySpeed = 0.1    // m/s
	stationaryETA   = 1000.0 // s

	defaultMargin       = 1.0 // s
	leftTurnMargin      = 4.0 // s
	leftTurnMarginSpeed = 2.0 // m/s
	leftTurnPenalty     = 3.0 // s, added to the ETA of left turners when both sides yield
)

// stoppingDistance is the braking distance from speed v on a dry road.
func stoppingDistance(v float64) float64 {
	return v * v / (2 * brakingFriction * gravity)
}

// eta is the time to cover distance at speed. A stationary vehicle gets stationaryETA.
func eta(distance, speed float64) float64 {
	if speed < stationarySpeed {
		return stationaryETA
	}
	return math.Max(distance, 0) / speed
}

// margin is how much later than v another vehicle may arrive and still keep the merge point.
// Left turners at speed get a wider margin because the turn slows them down.
func margin(turn mapv2.LaneTurn, speed float64) float64 {
	if turn == mapv2.LaneTurn_LANE_TURN_LEFT && speed > leftTurnMarginSpeed {
		return leftTurnMargin
	}
	return defaultMargin
}
