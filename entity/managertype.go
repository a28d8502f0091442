package entity

import (
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/tsinghua-fib-lab/traffic-hcsm/utils/config"
)

// ILaneManager inverts the dependency on entity/lane.
type ILaneManager interface {
	Init(pbs []*mapv2.Lane) error

	// panics if the lane does not exist
	Get(id int32) ILane
	GetOrError(id int32) (ILane, error)
	Lanes() []ILane
}

// IRoadManager inverts the dependency on entity/road.
type IRoadManager interface {
	Init(pbs []*mapv2.Road, laneManager ILaneManager) error

	// panics if the road does not exist
	Get(id int32) IRoad
	GetOrError(id int32) (IRoad, error)
}

// IJunctionManager inverts the dependency on entity/junction.
type IJunctionManager interface {
	Init(pbs []*mapv2.Junction, laneManager ILaneManager, stopSigns []int32) error

	// panics if the junction does not exist
	Get(id int32) IJunction
	GetOrError(id int32) (IJunction, error)
	Junctions() []IJunction
	// Find returns the junctions with the given ids, all of them if ids is empty.
	Find(ids []int32) ([]IJunction, error)

	Prepare() // writes the current light states onto the corridors
}

// IKernel is the scheduler surface exposed to entities.
type IKernel interface {
	// Create constructs a root entity that becomes Active at the next tick boundary.
	Create(spec config.EntitySpec) (ID, error)
	// CreateChild constructs an entity executed by its parent and reclaimed with its root.
	CreateChild(parent ID, spec config.EntitySpec) (ID, error)
	// ExecuteChildren executes the Active direct children of parent, called from the parent's Execute.
	ExecuteChildren(parent ID) error
	// Delete marks a root entity Dying. It is reclaimed at the next tick boundary.
	Delete(id ID) error
	Get(id ID) (IEntity, error)
	GetByName(name string) (IEntity, error)
	// QueueDial sets a dial before the next tick executes.
	QueueDial(id ID, key DialKey, value Value)
	Frame() int32
}
