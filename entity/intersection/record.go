package intersection

import (
	"fmt"

	"github.com/tsinghua-fib-lab/traffic-hcsm/entity"
	"github.com/tsinghua-fib-lab/traffic-hcsm/utils/container"
)

// TravelState is the decision signaled to a vehicle.
type TravelState int

const (
	Go TravelState = iota
	Stop
)

func (s TravelState) String() string {
	switch s {
	case Go:
		return "go"
	case Stop:
		return "stop"
	default:
		return fmt.Sprintf("travel(%d)", int(s))
	}
}

// vehicleInfo is what the manager remembers about a registered vehicle between ticks.
type vehicleInfo struct {
	state             TravelState
	stoppedFor        entity.ID // vehicle it last yielded to, NilID if none
	stoppedFrames     int       // consecutive frames at rest
	stopForLight      bool      // light hysteresis
	mandatoryStopDone bool      // stop sign served
}

// activeRecord is the bookkeeping of a contested junction, allocated from a bounded pool.
type activeRecord struct {
	junction       int32
	registered     *container.OrderedSet[entity.ID]
	info           map[entity.ID]*vehicleInfo
	pendingRemoval *container.OrderedSet[entity.ID]
}

func (r *activeRecord) init(junction int32) {
	r.junction = junction
	if r.registered == nil {
		r.registered = container.NewOrderedSet[entity.ID]()
		r.pendingRemoval = container.NewOrderedSet[entity.ID]()
		r.info = make(map[entity.ID]*vehicleInfo)
	}
}

func resetRecord(r *activeRecord) {
	r.junction = 0
	if r.registered != nil {
		r.registered.Clear()
		r.pendingRemoval.Clear()
		clear(r.info)
	}
}

// register is idempotent.
func (r *activeRecord) register(vehicle entity.ID) {
	if r.registered.Add(vehicle) {
		r.info[vehicle] = &vehicleInfo{}
	}
}

func (r *activeRecord) remove(vehicle entity.ID) {
	r.registered.Remove(vehicle)
	r.pendingRemoval.Remove(vehicle)
	delete(r.info, vehicle)
}

// intersectionRecord is the permanent state of a junction.
type intersectionRecord struct {
	junction    entity.IJunction
	disabled    bool
	active      bool
	recordIndex int // index in the active record pool, -1 when inactive
}

// node is the per-tick ranking view of one vehicle.
type node struct {
	vehicle    *snapshot
	holdOffset float64 // where the vehicle must stop along its corridor
	conflicts  []conflictEntry

	stopDueToLight              bool
	stopDueToSign               bool
	stopDueToCollisionAvoidance bool
	isOnRamp                    bool

	state TravelState
}

type conflictEntry struct {
	other            *snapshot
	selfS            float64 // merge point along the vehicle's corridor
	otherS           float64 // merge point along the other corridor
	otherHasPriority bool
}

// yielding reports whether the vehicle stops only because of other vehicles.
func (n *node) yielding() bool {
	if n.stopDueToLight || n.stopDueToSign || n.stopDueToCollisionAvoidance {
		return false
	}
	for _, c := range n.conflicts {
		if c.otherHasPriority {
			return true
		}
	}
	return false
}
