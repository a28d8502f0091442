package trafficlight

import (
	"testing"

	"git.fiblab.net/general/common/v2/mathutil"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/traffic-hcsm/utils/maptest"
)

type fakeLane struct {
	state     mapv2.LightState
	total     float64
	remaining float64
}

func (l *fakeLane) SetLight(state mapv2.LightState, totalTime float64, remainingTime float64) {
	l.state, l.total, l.remaining = state, totalTime, remainingTime
}

const (
	green  = mapv2.LightState_LIGHT_STATE_GREEN
	red    = mapv2.LightState_LIGHT_STATE_RED
	yellow = mapv2.LightState_LIGHT_STATE_YELLOW
)

func newLight(junctionID int32, n int) (*LocalTrafficLight, []*fakeLane) {
	fakes := make([]*fakeLane, n)
	setters := make([]ILaneLightSetter, n)
	for i := range fakes {
		fakes[i] = &fakeLane{}
		setters[i] = fakes[i]
	}
	return NewLocalTrafficLight(junctionID, setters), fakes
}

func program(junctionID int32, durations []float64, states ...[]mapv2.LightState) *mapv2.TrafficLight {
	phases := make([]maptest.Phase, len(durations))
	for i, d := range durations {
		phases[i] = maptest.Phase{Duration: d, States: states[i]}
	}
	if len(phases) == 0 {
		return &mapv2.TrafficLight{JunctionId: junctionID}
	}
	return maptest.Program(junctionID, phases...)
}

func TestTimeBeforeChange(t *testing.T) {
	// junction 3 starts at phase 3 % 3 = 0
	l, lanes := newLight(3, 2)
	require.NoError(t, l.Set(program(3, []float64{10, 20, 30},
		[]mapv2.LightState{green, red},
		[]mapv2.LightState{green, red},
		[]mapv2.LightState{red, red},
	)))
	l.Update(1)
	l.Prepare()

	// green lasts through phase 1
	assert.Equal(t, green, lanes[0].state)
	assert.Equal(t, 9.0+20, lanes[0].remaining)
	assert.Equal(t, 10.0+20, lanes[0].total)
	// never changes
	assert.Equal(t, red, lanes[1].state)
	assert.GreaterOrEqual(t, lanes[1].remaining, mathutil.INF)

	for i := 0; i < 9; i++ {
		l.Update(1)
	}
	l.Prepare()
	assert.Equal(t, green, lanes[0].state)
	assert.Equal(t, 20.0, lanes[0].remaining)
	assert.Equal(t, 20.0, lanes[0].total)
}

func TestSkipZeroPhase(t *testing.T) {
	l, lanes := newLight(2, 1)
	require.NoError(t, l.Set(program(2, []float64{0, 5, 5},
		[]mapv2.LightState{yellow},
		[]mapv2.LightState{red},
		[]mapv2.LightState{green},
	)))
	// starts at phase 2 % 3 = 2
	l.Update(5)
	l.Prepare()
	assert.Equal(t, red, lanes[0].state)
	assert.Equal(t, 5.0, lanes[0].total)
}

func TestUnset(t *testing.T) {
	l, lanes := newLight(0, 1)
	require.NoError(t, l.Set(program(0, []float64{5, 5},
		[]mapv2.LightState{red},
		[]mapv2.LightState{green},
	)))
	l.Update(1)
	l.Prepare()
	assert.Equal(t, red, lanes[0].state)

	l.Unset()
	l.Update(1)
	l.Prepare()
	assert.Equal(t, green, lanes[0].state)
	assert.Equal(t, mathutil.INF, lanes[0].remaining)
}

func TestSetValidation(t *testing.T) {
	l, _ := newLight(1, 2)
	assert.Error(t, l.Set(program(2, []float64{5}, []mapv2.LightState{red, red})))
	assert.Error(t, l.Set(program(1, nil)))
	assert.Error(t, l.Set(program(1, []float64{5}, []mapv2.LightState{red})))
	assert.Error(t, l.Set(program(1, []float64{-1, 5}, []mapv2.LightState{red, red}, []mapv2.LightState{red, red})))
	assert.Error(t, l.Set(program(1, []float64{0}, []mapv2.LightState{red, red})))

	empty, _ := newLight(1, 0)
	assert.Error(t, empty.Set(program(1, []float64{5}, []mapv2.LightState{})))
}
