package lane

import (
	"fmt"

	"git.fiblab.net/general/common/v2/geometry"
	"git.fiblab.net/general/common/v2/mathutil"
	geov2 "git.fiblab.net/sim/protos/v2/go/city/geo/v2"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity"
)

// Lane is a road lane or, inside a junction, a corridor.
type Lane struct {
	id int32

	// init only

	initPredecessors []*mapv2.LaneConnection
	initSuccessors   []*mapv2.LaneConnection
	initOverlaps     []*mapv2.LaneOverlap

	typ               mapv2.LaneType
	turn              mapv2.LaneTurn
	maxV              float64
	parentJunction    entity.IJunction
	parentRoad        entity.IRoad
	parentID          int32
	predecessors      map[int32]entity.Connection
	successors        map[int32]entity.Connection
	uniquePredecessor entity.ILane
	uniqueSuccessor   entity.ILane
	overlaps          []entity.Overlap
	length            float64                    // centerline length
	holdOffset        float64

	lightState              mapv2.LightState
	lightStateTotalTime     float64
	lightStateRemainingTime float64
}

// newLane builds a lane from its protobuf. Connections are resolved later by initWithManager.
// Returns an error if the centerline is missing.
func newLane(base *mapv2.Lane) (*Lane, error) {
	if base.CenterLine == nil || len(base.CenterLine.Nodes) < 2 {
		return nil, fmt.Errorf("lane %d: centerline needs at least 2 nodes", base.Id)
	}
	l := &Lane{
		id:                      base.Id,
		initPredecessors:        base.Predecessors,
		initSuccessors:          base.Successors,
		initOverlaps:            base.Overlaps,
		typ:                     base.Type,
		turn:                    base.Turn,
		maxV:                    base.MaxSpeed,
		predecessors:            make(map[int32]entity.Connection),
		successors:              make(map[int32]entity.Connection),
		lightState:              mapv2.LightState_LIGHT_STATE_GREEN,
		lightStateTotalTime:     mathutil.INF,
		lightStateRemainingTime: mathutil.INF,
	}
	line := lo.Map(base.CenterLine.Nodes, func(node *geov2.XYPosition, _ int) geometry.Point {
		return geometry.NewPointFromPb(node)
	})
	lengths := geometry.GetPolylineLengths2D(line)
	l.length = lengths[len(lengths)-1]
	return l, nil
}

// initWithManager resolves predecessors, successors and overlaps to lanes.
func (l *Lane) initWithManager(laneManager entity.ILaneManager) error {
	for _, conn := range l.initPredecessors {
		lane, err := laneManager.GetOrError(conn.Id)
		if err != nil {
			return fmt.Errorf("lane %d predecessor: %w", l.id, err)
		}
		l.predecessors[conn.Id] = entity.Connection{Lane: lane, Type: conn.Type}
	}
	if len(l.predecessors) == 1 {
		for _, conn := range l.predecessors {
			l.uniquePredecessor = conn.Lane
		}
	}
	for _, conn := range l.initSuccessors {
		lane, err := laneManager.GetOrError(conn.Id)
		if err != nil {
			return fmt.Errorf("lane %d successor: %w", l.id, err)
		}
		l.successors[conn.Id] = entity.Connection{Lane: lane, Type: conn.Type}
	}
	if len(l.successors) == 1 {
		for _, conn := range l.successors {
			l.uniqueSuccessor = conn.Lane
		}
	}
	for _, overlap := range l.initOverlaps {
		if overlap.Self == nil || overlap.Other == nil {
			return fmt.Errorf("lane %d: overlap without positions", l.id)
		}
		lane, err := laneManager.GetOrError(overlap.Other.LaneId)
		if err != nil {
			return fmt.Errorf("lane %d overlap: %w", l.id, err)
		}
		l.overlaps = append(l.overlaps, entity.Overlap{
			SelfS:     overlap.Self.S,
			Other:     lane,
			OtherS:    overlap.Other.S,
			SelfFirst: overlap.SelfFirst,
		})
	}
	l.initPredecessors = nil
	l.initSuccessors = nil
	l.initOverlaps = nil
	return nil
}

func (l *Lane) SetParentRoadWhenInit(parent entity.IRoad) {
	l.parentRoad = parent
	l.parentJunction = nil
	l.parentID = parent.ID()
}

func (l *Lane) SetParentJunctionWhenInit(parent entity.IJunction) {
	l.parentJunction = parent
	l.parentRoad = nil
	l.parentID = parent.ID()
}

func (l *Lane) String() string {
	return fmt.Sprintf("Lane %d", l.id)
}

func (l *Lane) ID() int32 {
	if l == nil {
		return -1
	}
	return l.id
}

func (l *Lane) Length() float64 {
	return l.length
}

func (l *Lane) Type() mapv2.LaneType {
	return l.typ
}

func (l *Lane) Turn() mapv2.LaneTurn {
	return l.turn
}

func (l *Lane) MaxV() float64 {
	return l.maxV
}

// ParentID is the id of the road or junction containing the lane.
func (l *Lane) ParentID() int32 {
	return l.parentID
}

func (l *Lane) ParentRoad() entity.IRoad {
	return l.parentRoad
}

func (l *Lane) ParentJunction() entity.IJunction {
	return l.parentJunction
}

func (l *Lane) InRoad() bool {
	return l.parentRoad != nil
}

func (l *Lane) InJunction() bool {
	return l.parentJunction != nil
}

func (l *Lane) Predecessors() map[int32]entity.Connection {
	return l.predecessors
}

func (l *Lane) Successors() map[int32]entity.Connection {
	return l.successors
}

// UniquePredecessor is only defined for driving lanes inside a junction.
func (l *Lane) UniquePredecessor() (entity.ILane, error) {
	if l.parentJunction == nil || l.typ != mapv2.LaneType_LANE_TYPE_DRIVING {
		return nil, fmt.Errorf("lane %d: not a junction driving lane", l.id)
	}
	if l.uniquePredecessor == nil {
		return nil, fmt.Errorf("lane %d: %d predecessors", l.id, len(l.predecessors))
	}
	return l.uniquePredecessor, nil
}

// UniqueSuccessor is only defined for driving lanes inside a junction.
func (l *Lane) UniqueSuccessor() (entity.ILane, error) {
	if l.parentJunction == nil || l.typ != mapv2.LaneType_LANE_TYPE_DRIVING {
		return nil, fmt.Errorf("lane %d: not a junction driving lane", l.id)
	}
	if l.uniqueSuccessor == nil {
		return nil, fmt.Errorf("lane %d: %d successors", l.id, len(l.successors))
	}
	return l.uniqueSuccessor, nil
}

func (l *Lane) Overlaps() []entity.Overlap {
	return l.overlaps
}

func (l *Lane) HoldOffset() float64 {
	return l.holdOffset
}

func (l *Lane) Light() (mapv2.LightState, float64, float64) {
	return l.lightState, l.lightStateTotalTime, l.lightStateRemainingTime
}

func (l *Lane) SetLight(state mapv2.LightState, totalTime float64, remainingTime float64) {
	l.lightState = state
	l.lightStateTotalTime = totalTime
	l.lightStateRemainingTime = remainingTime
}

// IsNoEntry reports whether the corridor light forbids entering (red or yellow).
func (l *Lane) IsNoEntry() bool {
	return l.InJunction() && l.lightState != mapv2.LightState_LIGHT_STATE_GREEN
}
