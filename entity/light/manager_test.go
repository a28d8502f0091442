package light_test

import (
	"testing"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity/hcsm"
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity/light"
	"github.com/tsinghua-fib-lab/traffic-hcsm/task"
	"github.com/tsinghua-fib-lab/traffic-hcsm/utils/config"
	"github.com/tsinghua-fib-lab/traffic-hcsm/utils/maptest"
)

const (
	g = mapv2.LightState_LIGHT_STATE_GREEN
	r = mapv2.LightState_LIGHT_STATE_RED
)

func newTask(t *testing.T) *task.Context {
	t.Helper()
	program := maptest.Program(maptest.CrossingJunction,
		maptest.Phase{Duration: 10, States: []mapv2.LightState{g, r, g, r, g}},
		maptest.Phase{Duration: 10, States: []mapv2.LightState{r, g, r, g, r}},
	)
	ctx, err := task.NewContext("test", config.Config{
		Control: config.Control{Step: config.ControlStep{Start: 0, Total: 1000, Interval: 0.1}},
	}, maptest.Crossing(program))
	require.NoError(t, err)
	return ctx
}

func TestDrivesTrafficLights(t *testing.T) {
	ctx := newTask(t)
	e, err := ctx.Kernel().GetByName(light.Template)
	require.NoError(t, err)
	m := e.(*light.Manager)
	require.Len(t, m.Junctions(), 1)
	assert.Equal(t, int32(maptest.CrossingJunction), m.Junctions()[0].ID())
	assert.Equal(t, config.DefaultLightPriority, m.Priority())

	westEast := ctx.LaneManager().Get(maptest.WestEast)
	southNorth := ctx.LaneManager().Get(maptest.SouthNorth)
	for range 5 {
		require.NoError(t, ctx.Step())
	}
	state, _, remaining := westEast.Light()
	assert.Equal(t, g, state)
	assert.InDelta(t, 9.5, remaining, 1e-6)
	assert.True(t, southNorth.IsNoEntry())

	for range 100 {
		require.NoError(t, ctx.Step())
	}
	state, _, _ = westEast.Light()
	assert.Equal(t, r, state)
	assert.False(t, southNorth.IsNoEntry())
}

func TestSelectJunctions(t *testing.T) {
	ctx := newTask(t)
	id, err := ctx.Kernel().Create(config.EntitySpec{
		Template: light.Template,
		Name:     "quiet lights",
		Init:     map[string]any{"junctions": []int32{maptest.QuietJunction}},
	})
	require.NoError(t, err)
	e, err := ctx.Kernel().Get(id)
	require.NoError(t, err)
	assert.Empty(t, e.(*light.Manager).Junctions())

	_, err = ctx.Kernel().Create(config.EntitySpec{
		Template: light.Template,
		Init:     map[string]any{"junctions": []int32{999}},
	})
	assert.ErrorIs(t, err, hcsm.ErrConstruction)
}
