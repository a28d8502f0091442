package lane

import (
	"fmt"
	"sort"

	"git.fiblab.net/general/common/v2/parallel"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity"
)

// LaneManager owns every lane of the road network.
type LaneManager struct {
	data  map[int32]*Lane
	lanes []*Lane
}

func NewManager() *LaneManager {
	return &LaneManager{
		data:  make(map[int32]*Lane),
		lanes: make([]*Lane, 0),
	}
}

// Init builds the lanes and resolves their connections.
// Algorithm:
// 1. build every lane in parallel
// 2. index them by id, rejecting duplicates
// 3. resolve predecessors, successors and overlaps in parallel
//
// Returns the first topology error found.
func (m *LaneManager) Init(pbs []*mapv2.Lane) error {
	type built struct {
		lane *Lane
		err  error
	}
	res := parallel.GoMap(pbs, func(pb *mapv2.Lane) built {
		l, err := newLane(pb)
		return built{lane: l, err: err}
	})
	for _, r := range res {
		if r.err != nil {
			return r.err
		}
	}
	m.lanes = lo.Map(res, func(r built, _ int) *Lane { return r.lane })
	sort.Slice(m.lanes, func(i, j int) bool { return m.lanes[i].id < m.lanes[j].id })
	m.data = lo.SliceToMap(m.lanes, func(l *Lane) (int32, *Lane) {
		return l.id, l
	})
	if len(m.data) != len(m.lanes) {
		return fmt.Errorf("duplicated lane ids in %d lanes", len(m.lanes))
	}
	errs := parallel.GoMap(m.lanes, func(l *Lane) error { return l.initWithManager(m) })
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	log.Infof("%d lanes loaded", len(m.lanes))
	return nil
}

// Get panics if the lane does not exist.
func (m *LaneManager) Get(id int32) entity.ILane {
	if lane, ok := m.data[id]; !ok {
		log.Panicf("no id %d in lane data", id)
		return nil
	} else {
		return lane
	}
}

func (m *LaneManager) GetOrError(id int32) (entity.ILane, error) {
	if lane, ok := m.data[id]; !ok {
		return nil, fmt.Errorf("no id %d in lane data", id)
	} else {
		return lane, nil
	}
}

// Lanes returns every lane in id order.
func (m *LaneManager) Lanes() []entity.ILane {
	return lo.Map(m.lanes, func(l *Lane, _ int) entity.ILane { return l })
}
