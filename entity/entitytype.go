package entity

import (
	"fmt"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/tsinghua-fib-lab/traffic-hcsm/utils/container"
	"github.com/tsinghua-fib-lab/traffic-hcsm/utils/randengine"
)

// ID is a generation-checked handle into the scheduler's slot arena.
// The low 32 bits hold the slot index, the high 32 bits the slot generation.
// Generations start at 1, so the zero ID is never valid.
type ID uint64

const NilID ID = 0

func MakeID(index int32, generation uint32) ID {
	return ID(uint64(generation)<<32 | uint64(uint32(index)))
}

// Index returns the slot index.
func (id ID) Index() int32 {
	return int32(uint32(id))
}

// Generation returns the slot generation the handle was issued for.
func (id ID) Generation() uint32 {
	return uint32(uint64(id) >> 32)
}

func (id ID) Valid() bool {
	return id.Generation() > 0
}

func (id ID) String() string {
	if !id.Valid() {
		return "nil"
	}
	return fmt.Sprintf("%d#%d", id.Index(), id.Generation())
}

// Kind is the closed set of entity variants.
type Kind int

const (
	KindTrigger Kind = iota
	KindVehicle
	KindIntersectionManager
	KindTrafficManager
	KindLightManager
	KindEnvironmentManager
)

func (k Kind) String() string {
	switch k {
	case KindTrigger:
		return "trigger"
	case KindVehicle:
		return "vehicle"
	case KindIntersectionManager:
		return "intersection-manager"
	case KindTrafficManager:
		return "traffic-manager"
	case KindLightManager:
		return "light-manager"
	case KindEnvironmentManager:
		return "environment-manager"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// IsManager reports whether k is one of the manager variants.
func (k Kind) IsManager() bool {
	return k >= KindIntersectionManager
}

// State is the lifecycle state of an entity.
type State int

const (
	Dormant State = iota // created, waiting for the next tick boundary
	Active               // executed every tick
	Dying                // deleted, reclaimed at the next tick boundary
)

func (s State) String() string {
	switch s {
	case Dormant:
		return "dormant"
	case Active:
		return "active"
	case Dying:
		return "dying"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// InitBlock is the untyped parameter block handed to a template constructor.
type InitBlock = map[string]any

// Constructor builds an entity of one template from its init block.
type Constructor func(ctx ITaskContext, init InitBlock) (IEntity, error)

// IEntity is an HCSM scheduled by the kernel.
// Concrete entities embed Base and implement Execute.
type IEntity interface {
	container.IIncrementalItem

	ID() ID
	Name() string
	Kind() Kind
	Priority() int
	State() State
	Parent() ID   // NilID for root entities
	IsRoot() bool // only roots are scheduled and deletable
	Serial() uint64

	Monitor(key MonitorKey) (Value, bool)
	Dial(key DialKey) (Value, bool)
	SetDial(key DialKey, value Value)
	ClearDial(key DialKey)

	// called by the scheduler only

	SetIDWhenCreate(id ID, parent ID, serial uint64, name string)
	SetPriorityWhenCreate(priority int)
	SetState(state State)

	OnCreate()                 // runs once when the entity becomes Active
	Execute(frame int32) error // one tick of behavior
	OnDestroy() error          // runs once when the entity is reclaimed
}

// IVehicle is implemented only by vehicle controllers.
type IVehicle interface {
	IEntity
	Route() []ILane
	OnRamp() bool
}

// Registration is a vehicle's declared intent to traverse a junction.
type Registration struct {
	Vehicle  ID
	Junction int32
}

// Lane connection
type Connection struct {
	Lane ILane
	Type mapv2.LaneConnectionType
}

// Overlap is a point where a lane crosses or merges with another lane.
type Overlap struct {
	SelfS     float64 // position of the overlap on this lane
	Other     ILane   // the other lane
	OtherS    float64 // position of the overlap on the other lane
	SelfFirst bool    // map-level hint that this lane has right of way
}

// Conflict is one entry of a corridor priority table.
type Conflict struct {
	Other  ILane   // intersecting corridor
	SelfS  float64 // merge point along the corridor owning the entry
	OtherS float64 // merge point along Other
}

// ILane inverts the dependency on entity/lane.
type ILane interface {
	// init

	SetParentRoadWhenInit(parent IRoad)
	SetParentJunctionWhenInit(parent IJunction)

	String() string

	ID() int32
	Length() float64
	Type() mapv2.LaneType
	Turn() mapv2.LaneTurn
	MaxV() float64
	ParentID() int32
	ParentRoad() IRoad
	ParentJunction() IJunction
	InRoad() bool
	InJunction() bool

	Predecessors() map[int32]Connection
	Successors() map[int32]Connection
	// unique predecessor, junction driving lanes only
	UniquePredecessor() (ILane, error)
	// unique successor, junction driving lanes only
	UniqueSuccessor() (ILane, error)
	Overlaps() []Overlap

	// HoldOffset is where a vehicle waits on this corridor when it is not cleared.
	HoldOffset() float64

	Light() (state mapv2.LightState, totalTime float64, remainingTime float64)
	SetLight(state mapv2.LightState, totalTime float64, remainingTime float64)
	IsNoEntry() bool // red or yellow
}

// IRoad inverts the dependency on entity/road.
type IRoad interface {
	String() string
	ID() int32
	Name() string
	Lanes() map[int32]ILane
}

// IJunction inverts the dependency on entity/junction.
type IJunction interface {
	ID() int32
	Lanes() map[int32]ILane
	Corridors() []ILane
	ConnectingRoads() int
	HasTrafficLight() bool
	HasStopSign(corridorID int32) bool
	// Disabled junctions are never arbitrated: fewer than 3 connecting roads and no traffic control device.
	Disabled() bool
	// Conflicts returns the precomputed intersecting corridors of corridorID.
	Conflicts(corridorID int32) []Conflict
	// UpdateLight advances the traffic light by dt seconds and writes the corridor states.
	UpdateLight(dt float64)
	// SetTrafficLight and UnsetTrafficLight change the program from the next UpdateLight.
	SetTrafficLight(tl *mapv2.TrafficLight) error
	UnsetTrafficLight() error
	// Random is the junction's seeded random engine.
	Random() *randengine.Engine
}
