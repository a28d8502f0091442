package trigger_test

import (
	"testing"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity"
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity/hcsm"
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity/junction"
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity/trigger"
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity/vehicle"
	"github.com/tsinghua-fib-lab/traffic-hcsm/task"
	"github.com/tsinghua-fib-lab/traffic-hcsm/utils/config"
	"github.com/tsinghua-fib-lab/traffic-hcsm/utils/maptest"
)

func car(name string, lane int32) config.EntitySpec {
	return config.EntitySpec{
		Template: vehicle.Template,
		Name:     name,
		Init:     map[string]any{"route": []int32{lane}, "v": 10.0},
	}
}

func newTask(t *testing.T, entities ...config.EntitySpec) *task.Context {
	t.Helper()
	ctx, err := task.NewContext("test", config.Config{
		Control:  config.Control{Step: config.ControlStep{Start: 0, Total: 100, Interval: 0.1}},
		Scenario: config.Scenario{Entities: entities},
	}, maptest.Crossing(nil))
	require.NoError(t, err)
	return ctx
}

func TestFire(t *testing.T) {
	ctx := newTask(t,
		car("a", maptest.WestIn),
		car("c", maptest.EastIn),
		config.EntitySpec{
			Template: trigger.Template,
			Name:     "t",
			Init: map[string]any{
				"frame": 5,
				"create": []map[string]any{
					{"template": vehicle.Template, "name": "b", "init": map[string]any{"route": []int32{maptest.SouthIn}}},
				},
				"delete": []string{"c"},
				"dials":  []map[string]any{{"entity": "a", "dial": "target_speed", "value": 0}},
			},
		},
	)
	e, err := ctx.Kernel().GetByName("t")
	require.NoError(t, err)
	tr := e.(*trigger.Trigger)

	for range 5 {
		require.NoError(t, ctx.Step())
	}
	assert.False(t, tr.Fired())
	_, err = ctx.Kernel().GetByName("b")
	assert.Error(t, err)

	require.NoError(t, ctx.Step())
	assert.True(t, tr.Fired())
	_, err = ctx.Kernel().GetByName("b")
	assert.NoError(t, err)
	_, err = ctx.Kernel().GetByName("c")
	assert.ErrorIs(t, err, hcsm.ErrInvalidID)
	_, err = ctx.Kernel().GetByName("t")
	assert.ErrorIs(t, err, hcsm.ErrInvalidID)

	e, err = ctx.Kernel().GetByName("a")
	require.NoError(t, err)
	a := e.(*vehicle.Vehicle)
	for range 30 {
		require.NoError(t, ctx.Step())
	}
	speed, ok := entity.DialAs[entity.Float](a, entity.DialTargetSpeed)
	require.True(t, ok)
	assert.Zero(t, float64(speed))
	assert.InDelta(t, 0, a.V(), 1e-6)
}

func TestFailedActionsAreReported(t *testing.T) {
	ctx := newTask(t, config.EntitySpec{
		Template: trigger.Template,
		Init:     map[string]any{"delete": []string{"ghost"}},
	})
	err := ctx.Step()
	assert.ErrorIs(t, err, hcsm.ErrInvalidID)
	var fault *hcsm.ExecutionFault
	assert.ErrorAs(t, err, &fault)
	// the trigger removed itself anyway
	assert.Equal(t, 2, ctx.Scheduler().Len())
}

func TestSwapLightProgram(t *testing.T) {
	g, r := mapv2.LightState_LIGHT_STATE_GREEN, mapv2.LightState_LIGHT_STATE_RED
	program := maptest.Program(maptest.CrossingJunction, maptest.Phase{
		Duration: 600,
		States:   []mapv2.LightState{g, r, g, r, g},
	})
	lightTrigger := func(frame int, lights ...map[string]any) config.EntitySpec {
		return config.EntitySpec{
			Template: trigger.Template,
			Init:     map[string]any{"frame": frame, "lights": lights},
		}
	}
	ctx, err := task.NewContext("test", config.Config{
		Control: config.Control{Step: config.ControlStep{Start: 0, Total: 100, Interval: 0.1}},
		Scenario: config.Scenario{Entities: []config.EntitySpec{
			lightTrigger(2, map[string]any{
				"junction": maptest.CrossingJunction,
				"phases": []map[string]any{{
					"duration": 30,
					"states":   []string{"LIGHT_STATE_RED", "LIGHT_STATE_GREEN", "LIGHT_STATE_RED", "LIGHT_STATE_GREEN", "LIGHT_STATE_RED"},
				}},
			}),
			lightTrigger(5, map[string]any{"junction": maptest.CrossingJunction}),
		}},
	}, maptest.Crossing(program))
	require.NoError(t, err)
	we := ctx.LaneManager().Get(maptest.WestEast)
	state := func() mapv2.LightState {
		s, _, _ := we.Light()
		return s
	}

	for range 3 {
		require.NoError(t, ctx.Step())
	}
	// swapped at frame 2, applied by the light update of frame 3
	assert.Equal(t, g, state())
	require.NoError(t, ctx.Step())
	assert.Equal(t, r, state())
	assert.True(t, we.IsNoEntry())

	for range 3 {
		require.NoError(t, ctx.Step())
	}
	// turned off at frame 5
	assert.Equal(t, g, state())
	assert.False(t, we.IsNoEntry())
}

func TestLightErrors(t *testing.T) {
	ctx := newTask(t, config.EntitySpec{
		Template: trigger.Template,
		Init:     map[string]any{"lights": []map[string]any{{"junction": maptest.CrossingJunction}}},
	})
	assert.ErrorIs(t, ctx.Step(), junction.ErrDisabledTrafficLight)

	_, err := ctx.Kernel().Create(config.EntitySpec{
		Template: trigger.Template,
		Init: map[string]any{"lights": []map[string]any{{
			"junction": maptest.CrossingJunction,
			"phases":   []map[string]any{{"duration": 5, "states": []string{"purple"}}},
		}}},
	})
	assert.ErrorIs(t, err, hcsm.ErrConstruction)
}

func TestNewValidation(t *testing.T) {
	ctx := newTask(t)
	for _, init := range []map[string]any{
		{"dials": []map[string]any{{"entity": "a", "dial": "intersection", "value": 1}}},
		{"dials": []map[string]any{{"entity": "a", "dial": "color", "value": 1}}},
		{"when": 3},
	} {
		_, err := ctx.Kernel().Create(config.EntitySpec{Template: trigger.Template, Init: init})
		assert.ErrorIs(t, err, hcsm.ErrConstruction)
	}
}
