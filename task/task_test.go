package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity/hcsm"
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity/intersection"
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity/light"
	"github.com/tsinghua-fib-lab/traffic-hcsm/utils/config"
	"github.com/tsinghua-fib-lab/traffic-hcsm/utils/maptest"
)

func testConfig(total int32) config.Config {
	return config.Config{
		Control: config.Control{Step: config.ControlStep{Start: 0, Total: total, Interval: 0.1}},
	}
}

func TestNewContext(t *testing.T) {
	ctx, err := NewContext("test", testConfig(10), maptest.Crossing(nil))
	require.NoError(t, err)

	assert.Equal(t, []string{intersection.Template, light.Template, "time_trigger", "vehicle"}, ctx.Registry().Templates())
	assert.Equal(t, 2, ctx.Scheduler().Len())
	assert.NotNil(t, ctx.Arbitration())
	assert.Equal(t, config.DefaultArbitrationPriority, ctx.Arbitration().Priority())
	assert.Len(t, ctx.JunctionManager().Junctions(), 2)
	assert.Equal(t, config.DefaultCapacity, ctx.Scheduler().Capacity())
}

func TestNewContextErrors(t *testing.T) {
	c := testConfig(10)
	c.Scenario.Entities = []config.EntitySpec{{Template: "bus"}}
	_, err := NewContext("test", c, maptest.Crossing(nil))
	assert.ErrorIs(t, err, hcsm.ErrUnknownTemplate)

	c = testConfig(10)
	c.Scenario.StopSigns = []int32{maptest.WestIn}
	_, err = NewContext("test", c, maptest.Crossing(nil))
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	ctx, err := NewContext("test", testConfig(10), maptest.Crossing(nil))
	require.NoError(t, err)
	ctx.Run()
	assert.True(t, ctx.Clock().Ended())
	assert.Equal(t, int32(10), ctx.Scheduler().Frame())

	ctx, err = NewContext("test", testConfig(10), maptest.Crossing(nil))
	require.NoError(t, err)
	require.NoError(t, ctx.Step())
	ctx.Close()
	ctx.Run()
	assert.Equal(t, int32(1), ctx.Clock().InternalStep)
}
