package junction

import (
	"testing"

	geov2 "git.fiblab.net/sim/protos/v2/go/city/geo/v2"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity"
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity/lane"
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity/road"
	"github.com/tsinghua-fib-lab/traffic-hcsm/utils/maptest"
)

const (
	g = mapv2.LightState_LIGHT_STATE_GREEN
	r = mapv2.LightState_LIGHT_STATE_RED
)

// crossingProgram lets west-east traffic go first, then south-north.
func crossingProgram() *mapv2.TrafficLight {
	return maptest.Program(maptest.CrossingJunction,
		maptest.Phase{Duration: 30, States: []mapv2.LightState{g, r, g, r, g}},
		maptest.Phase{Duration: 30, States: []mapv2.LightState{r, g, r, g, r}},
	)
}

func build(t *testing.T, pb *mapv2.Map, stopSigns []int32) (*lane.LaneManager, *JunctionManager, error) {
	t.Helper()
	lanes := lane.NewManager()
	require.NoError(t, lanes.Init(pb.Lanes))
	require.NoError(t, road.NewManager().Init(pb.Roads, lanes))
	m := NewManager()
	return lanes, m, m.Init(pb.Junctions, lanes, stopSigns)
}

func otherIDs(list []entity.Conflict) []int32 {
	return lo.Map(list, func(c entity.Conflict, _ int) int32 { return c.Other.ID() })
}

func TestConflictTable(t *testing.T) {
	_, m, err := build(t, maptest.Crossing(nil), nil)
	require.NoError(t, err)
	j := m.Get(maptest.CrossingJunction)

	assert.Equal(t, []int32{maptest.WestEast, maptest.SouthNorth, maptest.EastWest, maptest.SouthEast, maptest.EastSouth},
		lo.Map(j.Corridors(), func(l entity.ILane, _ int) int32 { return l.ID() }))

	we := j.Conflicts(maptest.WestEast)
	require.Equal(t, []int32{maptest.SouthNorth, maptest.SouthEast, maptest.EastSouth}, otherIDs(we))
	assert.Equal(t, 10.0, we[0].SelfS)
	assert.Equal(t, 10.0, we[0].OtherS)
	// merge at the shared successor
	assert.Equal(t, maptest.CorridorLength, we[1].SelfS)
	assert.Equal(t, 10.0, we[1].OtherS)
	assert.Equal(t, 14.0, we[2].SelfS)
	assert.Equal(t, 8.0, we[2].OtherS)

	sn := j.Conflicts(maptest.SouthNorth)
	require.Equal(t, []int32{maptest.WestEast, maptest.EastWest}, otherIDs(sn))
	assert.Equal(t, 12.0, sn[1].SelfS)

	assert.Equal(t, []int32{maptest.SouthNorth}, otherIDs(j.Conflicts(maptest.EastWest)))
	assert.Equal(t, []int32{maptest.WestEast}, otherIDs(j.Conflicts(maptest.SouthEast)))

	quiet := m.Get(maptest.QuietJunction)
	assert.Empty(t, quiet.Conflicts(maptest.QuietPath))
}

func TestEarliestOverlapWins(t *testing.T) {
	pb := maptest.Crossing(nil)
	for _, l := range pb.Lanes {
		if l.Id == maptest.WestEast {
			l.Overlaps = append(l.Overlaps, &mapv2.LaneOverlap{
				Self:  &geov2.LanePosition{LaneId: maptest.WestEast, S: 15},
				Other: &geov2.LanePosition{LaneId: maptest.SouthNorth, S: 5},
			})
		}
	}
	_, m, err := build(t, pb, nil)
	require.NoError(t, err)
	we := m.Get(maptest.CrossingJunction).Conflicts(maptest.WestEast)
	require.Equal(t, int32(maptest.SouthNorth), we[0].Other.ID())
	assert.Equal(t, 10.0, we[0].SelfS)
}

func TestCrossingsAtSamePosition(t *testing.T) {
	pb := maptest.Crossing(nil)
	for _, l := range pb.Lanes {
		if l.Id == maptest.WestEast {
			// EastWest crosses at the same S as SouthNorth, recorded on WestEast only
			l.Overlaps = append(l.Overlaps, &mapv2.LaneOverlap{
				Self:  &geov2.LanePosition{LaneId: maptest.WestEast, S: 10},
				Other: &geov2.LanePosition{LaneId: maptest.EastWest, S: 5},
			})
		}
	}
	_, m, err := build(t, pb, nil)
	require.NoError(t, err)
	j := m.Get(maptest.CrossingJunction)

	we := j.Conflicts(maptest.WestEast)
	require.Equal(t, []int32{maptest.SouthNorth, maptest.EastWest, maptest.SouthEast, maptest.EastSouth}, otherIDs(we))
	assert.Equal(t, 10.0, we[0].SelfS)
	assert.Equal(t, 10.0, we[1].SelfS)

	ew := j.Conflicts(maptest.EastWest)
	require.Equal(t, []int32{maptest.WestEast, maptest.SouthNorth}, otherIDs(ew))
	assert.Equal(t, 5.0, ew[0].SelfS)
	assert.Equal(t, 10.0, ew[0].OtherS)
}

func TestDisabled(t *testing.T) {
	_, m, err := build(t, maptest.Crossing(nil), nil)
	require.NoError(t, err)

	crossing := m.Get(maptest.CrossingJunction)
	assert.Equal(t, 7, crossing.ConnectingRoads())
	assert.False(t, crossing.Disabled())
	assert.False(t, crossing.HasTrafficLight())

	quiet := m.Get(maptest.QuietJunction)
	assert.Equal(t, 2, quiet.ConnectingRoads())
	assert.True(t, quiet.Disabled())
}

func TestStopSigns(t *testing.T) {
	lanes, m, err := build(t, maptest.Crossing(nil), []int32{maptest.QuietPath, maptest.SouthNorth})
	require.NoError(t, err)

	quiet := m.Get(maptest.QuietJunction)
	assert.True(t, quiet.HasStopSign(maptest.QuietPath))
	assert.False(t, quiet.Disabled())

	crossing := m.Get(maptest.CrossingJunction)
	assert.True(t, crossing.HasStopSign(maptest.SouthNorth))
	assert.False(t, crossing.HasStopSign(maptest.WestEast))
	assert.Equal(t, crossing, lanes.Get(maptest.SouthNorth).ParentJunction())

	_, _, err = build(t, maptest.Crossing(nil), []int32{maptest.WestIn})
	assert.Error(t, err)
	_, _, err = build(t, maptest.Crossing(nil), []int32{999})
	assert.Error(t, err)
}

func TestCorridorNeedsUniqueConnections(t *testing.T) {
	pb := maptest.Crossing(nil)
	for _, l := range pb.Lanes {
		if l.Id == maptest.QuietPath {
			l.Successors = append(l.Successors, &mapv2.LaneConnection{Id: maptest.WestIn})
		}
	}
	_, _, err := build(t, pb, nil)
	assert.Error(t, err)
}

func TestFind(t *testing.T) {
	_, m, err := build(t, maptest.Crossing(nil), nil)
	require.NoError(t, err)

	all, err := m.Find(nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	some, err := m.Find([]int32{maptest.QuietJunction})
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, int32(maptest.QuietJunction), some[0].ID())

	_, err = m.Find([]int32{1})
	assert.Error(t, err)
}

func TestTrafficLight(t *testing.T) {
	lanes, m, err := build(t, maptest.Crossing(crossingProgram()), nil)
	require.NoError(t, err)
	j := m.Get(maptest.CrossingJunction)
	require.True(t, j.HasTrafficLight())

	we := lanes.Get(maptest.WestEast)
	sn := lanes.Get(maptest.SouthNorth)

	// the program takes effect on the first update
	m.Prepare()
	assert.False(t, sn.IsNoEntry())

	j.UpdateLight(1)
	state, total, remaining := we.Light()
	assert.Equal(t, g, state)
	assert.Equal(t, 30.0, total)
	assert.Equal(t, 29.0, remaining)
	assert.True(t, sn.IsNoEntry())
	assert.False(t, we.IsNoEntry())

	for i := 0; i < 29; i++ {
		j.UpdateLight(1)
	}
	state, _, remaining = we.Light()
	assert.Equal(t, r, state)
	assert.Equal(t, 30.0, remaining)
	assert.False(t, sn.IsNoEntry())
}

func TestSetTrafficLight(t *testing.T) {
	_, m, err := build(t, maptest.Crossing(nil), nil)
	require.NoError(t, err)
	j := m.data[maptest.CrossingJunction]
	assert.False(t, j.HasTrafficLight())
	assert.ErrorIs(t, j.SetTrafficLight(crossingProgram()), ErrDisabledTrafficLight)
	assert.ErrorIs(t, j.UnsetTrafficLight(), ErrDisabledTrafficLight)

	_, m, err = build(t, maptest.Crossing(crossingProgram()), nil)
	require.NoError(t, err)
	j = m.data[maptest.CrossingJunction]
	wrong := maptest.Program(maptest.QuietJunction, maptest.Phase{Duration: 1, States: []mapv2.LightState{g}})
	assert.Error(t, j.SetTrafficLight(wrong))
	short := maptest.Program(maptest.CrossingJunction, maptest.Phase{Duration: 1, States: []mapv2.LightState{g}})
	assert.Error(t, j.SetTrafficLight(short))

	// buffered until the next update
	we := j.Lanes()[maptest.WestEast]
	j.UpdateLight(1)
	require.NoError(t, j.SetTrafficLight(maptest.Program(maptest.CrossingJunction,
		maptest.Phase{Duration: 10, States: []mapv2.LightState{r, g, r, g, r}})))
	state, _, _ := we.Light()
	assert.Equal(t, g, state)
	j.UpdateLight(1)
	state, _, _ = we.Light()
	assert.Equal(t, r, state)

	require.NoError(t, j.UnsetTrafficLight())
	j.UpdateLight(1)
	state, _, _ = we.Light()
	assert.Equal(t, g, state)
	assert.True(t, j.HasTrafficLight())
}

func TestBadFixedProgram(t *testing.T) {
	program := maptest.Program(maptest.CrossingJunction,
		maptest.Phase{Duration: 0, States: []mapv2.LightState{g, r, g, r, g}},
	)
	_, _, err := build(t, maptest.Crossing(program), nil)
	assert.Error(t, err)
}
