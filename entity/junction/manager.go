package junction

import (
	"fmt"
	"sort"

	"git.fiblab.net/general/common/v2/parallel"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity"
	"github.com/tsinghua-fib-lab/traffic-hcsm/utils"
)

type JunctionManager struct {
	data      map[int32]*Junction
	junctions []*Junction
}

func NewManager() *JunctionManager {
	return &JunctionManager{
		data:      make(map[int32]*Junction),
		junctions: make([]*Junction, 0),
	}
}

// Init builds the junctions, their priority tables and stop signs.
// Params:
//   - pbs: junction protobufs
//   - laneManager: the lanes, already built
//   - stopSigns: corridor lane ids controlled by a stop sign
//
// Algorithm:
// 1. build the junctions sequentially, each claiming its lanes
// 2. validate corridors and build the priority tables in parallel
// 3. attach the stop signs
func (m *JunctionManager) Init(pbs []*mapv2.Junction, laneManager entity.ILaneManager, stopSigns []int32) error {
	m.junctions = make([]*Junction, 0, len(pbs))
	for _, pb := range pbs {
		j, err := newJunction(pb, laneManager)
		if err != nil {
			return err
		}
		m.junctions = append(m.junctions, j)
	}
	sort.Slice(m.junctions, func(a, b int) bool { return m.junctions[a].id < m.junctions[b].id })
	m.data = lo.SliceToMap(m.junctions, func(j *Junction) (int32, *Junction) {
		return j.id, j
	})
	if len(m.data) != len(m.junctions) {
		return fmt.Errorf("duplicated junction ids in %d junctions", len(m.junctions))
	}
	errs := parallel.GoMap(m.junctions, func(j *Junction) error { return j.initCorridors() })
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	for _, id := range stopSigns {
		lane, err := laneManager.GetOrError(id)
		if err != nil {
			return fmt.Errorf("stop sign: %w", err)
		}
		if !lane.InJunction() {
			return fmt.Errorf("stop sign on lane %d outside any junction", id)
		}
		if err := m.data[lane.ParentID()].setStopSignWhenInit(id); err != nil {
			return err
		}
	}
	disabled := lo.CountBy(m.junctions, func(j *Junction) bool { return j.Disabled() })
	log.Infof("%d junctions loaded, %d never arbitrated", len(m.junctions), disabled)
	return nil
}

// Get panics if the junction does not exist.
func (m *JunctionManager) Get(id int32) entity.IJunction {
	if junction, ok := m.data[id]; !ok {
		log.Panicf("no id %d in junction data", id)
		return nil
	} else {
		return junction
	}
}

func (m *JunctionManager) GetOrError(id int32) (entity.IJunction, error) {
	if junction, ok := m.data[id]; !ok {
		return nil, fmt.Errorf("no id %d in junction data", id)
	} else {
		return junction, nil
	}
}

// Junctions returns every junction in id order.
func (m *JunctionManager) Junctions() []entity.IJunction {
	return lo.Map(m.junctions, func(j *Junction, _ int) entity.IJunction { return j })
}

// Find returns the junctions with the given ids, all of them if ids is empty.
func (m *JunctionManager) Find(ids []int32) ([]entity.IJunction, error) {
	found, failed := utils.Find(m.data, m.junctions, ids)
	if len(failed) > 0 {
		return nil, fmt.Errorf("no junctions %v", failed)
	}
	return lo.Map(found, func(j *Junction, _ int) entity.IJunction { return j }), nil
}

// Prepare writes the current light states to the corridors.
func (m *JunctionManager) Prepare() {
	parallel.GoFor(m.junctions, func(j *Junction) { j.prepare() })
}
