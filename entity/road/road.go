package road

import (
	"fmt"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity"
)

type Road struct {
	id           int32
	name         string
	drivingLanes []entity.ILane // left to right
	lanes        map[int32]entity.ILane

	maxV float64 // mean speed limit of the driving lanes
}

// newRoad claims its lanes. A lane already claimed by another road or a junction is an error.
func newRoad(base *mapv2.Road, laneManager entity.ILaneManager) (*Road, error) {
	r := &Road{
		id:    base.Id,
		name:  base.Name,
		lanes: make(map[int32]entity.ILane),
	}
	for _, laneID := range base.LaneIds {
		lane, err := laneManager.GetOrError(laneID)
		if err != nil {
			return nil, fmt.Errorf("road %d: %w", r.id, err)
		}
		if lane.InRoad() || lane.InJunction() {
			return nil, fmt.Errorf("road %d: lane %d already has parent %d", r.id, laneID, lane.ParentID())
		}
		r.lanes[laneID] = lane
		lane.SetParentRoadWhenInit(r)
		if lane.Type() == mapv2.LaneType_LANE_TYPE_DRIVING {
			r.drivingLanes = append(r.drivingLanes, lane)
			r.maxV += lane.MaxV()
		}
	}
	if len(r.drivingLanes) > 0 {
		r.maxV /= float64(len(r.drivingLanes))
	}
	return r, nil
}

func (r *Road) ID() int32 {
	if r == nil {
		return -1
	}
	return r.id
}

func (r *Road) String() string {
	return fmt.Sprintf("Road %d", r.id)
}

func (r *Road) Name() string {
	return r.name
}

func (r *Road) Lanes() map[int32]entity.ILane {
	return r.lanes
}

func (r *Road) DrivingLanes() []entity.ILane {
	return r.drivingLanes
}

func (r *Road) MaxV() float64 {
	return r.maxV
}
