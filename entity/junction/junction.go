package junction

import (
	"errors"
	"fmt"
	"sort"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity"
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity/junction/trafficlight"
	"github.com/tsinghua-fib-lab/traffic-hcsm/utils/randengine"
)

var (
	ErrDisabledTrafficLight = errors.New("traffic light is disabled for the junction")
)

type Junction struct {
	id              int32
	laneIDs         []int32
	lanes           map[int32]entity.ILane
	corridors       []entity.ILane // driving lanes, by id
	connectingRoads int
	stopSigns       map[int32]struct{}
	conflicts       map[int32][]entity.Conflict // corridor priority table
	trafficLight    ITrafficLight

	generator *randengine.Engine
}

// newJunction claims the junction lanes and sets up the fixed-program traffic light if any.
// Params:
//   - base: junction protobuf
//   - laneManager: the lanes, already built
//
// Returns: the junction, or an error for unknown or already claimed lanes and invalid programs
func newJunction(base *mapv2.Junction, laneManager entity.ILaneManager) (*Junction, error) {
	j := &Junction{
		id:        base.Id,
		laneIDs:   base.LaneIds,
		lanes:     make(map[int32]entity.ILane),
		corridors: make([]entity.ILane, 0),
		stopSigns: make(map[int32]struct{}),
		conflicts: make(map[int32][]entity.Conflict),
		generator: randengine.New(uint64(base.Id)),
	}
	lights := make([]trafficlight.ILaneLightSetter, 0, len(base.LaneIds))
	for _, laneID := range j.laneIDs {
		lane, err := laneManager.GetOrError(laneID)
		if err != nil {
			return nil, fmt.Errorf("junction %d: %w", j.id, err)
		}
		if lane.InRoad() || lane.InJunction() {
			return nil, fmt.Errorf("junction %d: lane %d already has parent %d", j.id, laneID, lane.ParentID())
		}
		lane.SetParentJunctionWhenInit(j)
		j.lanes[laneID] = lane
		lights = append(lights, lane)
		if lane.Type() == mapv2.LaneType_LANE_TYPE_DRIVING {
			j.corridors = append(j.corridors, lane)
		}
	}
	sort.Slice(j.corridors, func(a, b int) bool { return j.corridors[a].ID() < j.corridors[b].ID() })

	if base.FixedProgram != nil && len(base.FixedProgram.Phases) > 0 {
		tl := trafficlight.NewLocalTrafficLight(j.id, lights)
		if err := tl.Set(base.FixedProgram); err != nil {
			return nil, fmt.Errorf("junction %d: set fixed program: %w", j.id, err)
		}
		j.trafficLight = tl
	}
	return j, nil
}

// initCorridors validates the corridors and builds the priority table.
// It needs every junction to have claimed its lanes.
// Algorithm:
// 1. every corridor must have a unique predecessor and successor
// 2. count the distinct roads feeding or leaving the junction
// 3. for every pair of corridors of this junction, keep the first overlap as the merge point;
// corridors sharing a successor without an overlap merge at their ends
// 4. make the table symmetric
func (j *Junction) initCorridors() error {
	successors := make(map[int32]entity.ILane, len(j.corridors))
	roads := make([]int32, 0)
	for _, c := range j.corridors {
		pre, err := c.UniquePredecessor()
		if err != nil {
			return fmt.Errorf("junction %d: %w", j.id, err)
		}
		suc, err := c.UniqueSuccessor()
		if err != nil {
			return fmt.Errorf("junction %d: %w", j.id, err)
		}
		successors[c.ID()] = suc
		if pre.InRoad() {
			roads = append(roads, pre.ParentID())
		}
		if suc.InRoad() {
			roads = append(roads, suc.ParentID())
		}
	}
	j.connectingRoads = len(lo.Uniq(roads))

	tables := make(map[int32]map[int32]entity.Conflict, len(j.corridors))
	for _, c := range j.corridors {
		best := make(map[int32]entity.Conflict)
		for _, ov := range c.Overlaps() {
			o := ov.Other
			if o.ID() == c.ID() || o.ParentJunction() == nil || o.ParentJunction().ID() != j.id ||
				o.Type() != mapv2.LaneType_LANE_TYPE_DRIVING {
				continue
			}
			if cur, ok := best[o.ID()]; !ok || ov.SelfS < cur.SelfS {
				best[o.ID()] = entity.Conflict{Other: o, SelfS: ov.SelfS, OtherS: ov.OtherS}
			}
		}
		for _, o := range j.corridors {
			if o.ID() == c.ID() || successors[o.ID()] != successors[c.ID()] {
				continue
			}
			if _, ok := best[o.ID()]; !ok {
				best[o.ID()] = entity.Conflict{Other: o, SelfS: c.Length(), OtherS: o.Length()}
			}
		}
		tables[c.ID()] = best
	}
	// an overlap recorded on one side only still conflicts both ways
	for _, c := range j.corridors {
		for oID, conflict := range tables[c.ID()] {
			if _, ok := tables[oID][c.ID()]; !ok {
				tables[oID][c.ID()] = entity.Conflict{Other: c, SelfS: conflict.OtherS, OtherS: conflict.SelfS}
			}
		}
	}
	for _, c := range j.corridors {
		list := lo.Values(tables[c.ID()])
		sort.Slice(list, func(a, b int) bool { return list[a].Other.ID() < list[b].Other.ID() })
		j.conflicts[c.ID()] = list
	}
	return nil
}

func (j *Junction) setStopSignWhenInit(corridorID int32) error {
	lane, ok := j.lanes[corridorID]
	if !ok || lane.Type() != mapv2.LaneType_LANE_TYPE_DRIVING {
		return fmt.Errorf("junction %d: stop sign on %d which is not one of its corridors", j.id, corridorID)
	}
	j.stopSigns[corridorID] = struct{}{}
	return nil
}

func (j *Junction) prepare() {
	if j.trafficLight != nil {
		j.trafficLight.Prepare()
	}
}

func (j *Junction) update(dt float64) {
	if j.trafficLight != nil {
		j.trafficLight.Update(dt)
	}
}

// UpdateLight advances the traffic light by dt seconds and publishes the new states.
func (j *Junction) UpdateLight(dt float64) {
	j.update(dt)
	j.prepare()
}

func (j *Junction) ID() int32 {
	if j == nil {
		return -1
	}
	return j.id
}

func (j *Junction) String() string {
	return fmt.Sprintf("Junction %d", j.id)
}

func (j *Junction) Lanes() map[int32]entity.ILane {
	return j.lanes
}

func (j *Junction) Corridors() []entity.ILane {
	return j.corridors
}

func (j *Junction) ConnectingRoads() int {
	return j.connectingRoads
}

func (j *Junction) HasTrafficLight() bool {
	return j.trafficLight != nil
}

func (j *Junction) HasStopSign(corridorID int32) bool {
	_, ok := j.stopSigns[corridorID]
	return ok
}

// Disabled junctions are never arbitrated: fewer than 3 connecting roads and no traffic control device.
func (j *Junction) Disabled() bool {
	return j.connectingRoads < 3 && !j.HasTrafficLight() && len(j.stopSigns) == 0
}

func (j *Junction) Conflicts(corridorID int32) []entity.Conflict {
	return j.conflicts[corridorID]
}

// Random is the junction's own seeded random engine.
func (j *Junction) Random() *randengine.Engine {
	return j.generator
}

// SetTrafficLight replaces the program of the junction's traffic light from its next update.
func (j *Junction) SetTrafficLight(tl *mapv2.TrafficLight) error {
	if j.trafficLight == nil {
		return ErrDisabledTrafficLight
	}
	return j.trafficLight.Set(tl)
}

// UnsetTrafficLight removes the program from the next update, leaving every corridor green.
func (j *Junction) UnsetTrafficLight() error {
	if j.trafficLight == nil {
		return ErrDisabledTrafficLight
	}
	j.trafficLight.Unset()
	return nil
}
