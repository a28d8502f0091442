package road

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity/lane"
	"github.com/tsinghua-fib-lab/traffic-hcsm/utils/maptest"
)

func TestInit(t *testing.T) {
	pb := maptest.Crossing(nil)
	lanes := lane.NewManager()
	require.NoError(t, lanes.Init(pb.Lanes))
	m := NewManager()
	require.NoError(t, m.Init(pb.Roads, lanes))

	r := m.Get(1)
	assert.Equal(t, "road 1", r.Name())
	require.Len(t, r.Lanes(), 1)
	l := lanes.Get(maptest.WestIn)
	assert.True(t, l.InRoad())
	assert.Equal(t, int32(1), l.ParentID())
	assert.Equal(t, int32(1), l.ParentRoad().ID())
	assert.False(t, lanes.Get(maptest.WestEast).InRoad())

	_, err := m.GetOrError(99)
	assert.Error(t, err)
}

func TestLaneClaimedTwice(t *testing.T) {
	b := maptest.NewBuilder()
	b.Lane(1, 10)
	b.Road(1, 1)
	b.Road(2, 1)
	pb := b.Map()
	lanes := lane.NewManager()
	require.NoError(t, lanes.Init(pb.Lanes))
	assert.Error(t, NewManager().Init(pb.Roads, lanes))
}

func TestUnknownLane(t *testing.T) {
	b := maptest.NewBuilder()
	b.Lane(1, 10)
	b.Road(1, 1, 2)
	pb := b.Map()
	lanes := lane.NewManager()
	require.NoError(t, lanes.Init(pb.Lanes))
	assert.Error(t, NewManager().Init(pb.Roads, lanes))
}
