package road

import (
	"fmt"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity"
)

type RoadManager struct {
	data  map[int32]*Road
	roads []*Road
}

func NewManager() *RoadManager {
	return &RoadManager{
		data:  make(map[int32]*Road),
		roads: make([]*Road, 0),
	}
}

// Init builds the roads sequentially, since each one writes the parent of its lanes.
func (m *RoadManager) Init(pbs []*mapv2.Road, laneManager entity.ILaneManager) error {
	m.roads = make([]*Road, 0, len(pbs))
	for _, pb := range pbs {
		r, err := newRoad(pb, laneManager)
		if err != nil {
			return err
		}
		m.roads = append(m.roads, r)
	}
	m.data = lo.SliceToMap(m.roads, func(r *Road) (int32, *Road) {
		return r.id, r
	})
	if len(m.data) != len(m.roads) {
		return fmt.Errorf("duplicated road ids in %d roads", len(m.roads))
	}
	log.Infof("%d roads loaded", len(m.roads))
	return nil
}

// Get panics if the road does not exist.
func (m *RoadManager) Get(id int32) entity.IRoad {
	if road, ok := m.data[id]; !ok {
		log.Panicf("no id %d in road data", id)
		return nil
	} else {
		return road
	}
}

func (m *RoadManager) GetOrError(id int32) (entity.IRoad, error) {
	if road, ok := m.data[id]; !ok {
		return nil, fmt.Errorf("no id %d in road data", id)
	} else {
		return road, nil
	}
}
