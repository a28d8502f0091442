package trafficlight

import (
	"fmt"

	"git.fiblab.net/general/common/v2/mathutil"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
)

// ILaneLightSetter is the part of a corridor the traffic light writes to.
type ILaneLightSetter interface {
	SetLight(state mapv2.LightState, totalTime float64, remainingTime float64)
}

type localTlRuntime struct {
	tl           *mapv2.TrafficLight
	tlStep       int32
	tlTotalTime  float64
	tlRemainingT float64
}

// LocalTrafficLight runs a fixed-time program, cycling through its phases.
// Program changes are buffered and applied by the next Update;
// Prepare publishes the state of the last Update to the corridors.
type LocalTrafficLight struct {
	JunctionID int32
	lanes      []ILaneLightSetter // in the order of the phase states

	timeBeforeChange [][]float64 // per lane and phase, time from the end of the phase to the next state change
	snapshot         localTlRuntime
	runtime          localTlRuntime
	buffer           *localTlRuntime
}

func NewLocalTrafficLight(junctionID int32, lanes []ILaneLightSetter) *LocalTrafficLight {
	return &LocalTrafficLight{
		JunctionID:       junctionID,
		lanes:            lanes,
		timeBeforeChange: make([][]float64, 0),
	}
}

// Prepare writes the light state of every corridor.
// Without a program every corridor is green.
func (l *LocalTrafficLight) Prepare() {
	l.snapshot = l.runtime
	if l.snapshot.tl == nil {
		for _, lane := range l.lanes {
			lane.SetLight(mapv2.LightState_LIGHT_STATE_GREEN, mathutil.INF, mathutil.INF)
		}
		return
	}
	p := l.snapshot.tl.Phases[l.snapshot.tlStep]
	for i, lane := range l.lanes {
		lane.SetLight(
			p.States[i],
			l.snapshot.tlTotalTime+l.timeBeforeChange[i][l.snapshot.tlStep],
			l.snapshot.tlRemainingT+l.timeBeforeChange[i][l.snapshot.tlStep],
		)
	}
}

// Update advances the program by dt seconds.
// Algorithm:
// 1. apply a buffered program, precomputing for every lane how long its state
// lasts past the end of each phase
// 2. count down the current phase and move to the next phase with a positive duration
func (l *LocalTrafficLight) Update(dt float64) {
	if l.buffer != nil {
		l.runtime = *l.buffer
		l.buffer = nil
		l.timeBeforeChange = l.timeBeforeChange[:0]
		if l.runtime.tl != nil {
			l.computeTimeBeforeChange()
		}
	}
	if l.runtime.tl == nil {
		return
	}

	l.runtime.tlRemainingT -= dt
	if l.runtime.tlRemainingT <= 0 {
		l.runtime.tlRemainingT = 0
		l.runtime.tlTotalTime = 0
		for {
			l.runtime.tlStep = (l.runtime.tlStep + 1) % int32(len(l.runtime.tl.Phases))
			l.runtime.tlRemainingT += l.runtime.tl.Phases[l.runtime.tlStep].Duration
			if l.runtime.tlRemainingT > 0 {
				l.runtime.tlTotalTime = l.runtime.tlRemainingT
				break
			}
		}
	}
}

func (l *LocalTrafficLight) computeTimeBeforeChange() {
	phases := l.runtime.tl.Phases
	n := len(phases)
	for laneIndex := range l.lanes {
		time := make([]float64, n)
		// a phase after which the state changes
		k := -1
		for i := 0; i < n; i++ {
			if phases[(i+1)%n].States[laneIndex] != phases[i].States[laneIndex] {
				k = i
				break
			}
		}
		if k < 0 {
			for i := range time {
				time[i] = mathutil.INF
			}
		} else {
			// walk the cycle backwards from k
			for step := 1; step < n; step++ {
				j := ((k-step)%n + n) % n
				next := (j + 1) % n
				if phases[next].States[laneIndex] == phases[j].States[laneIndex] {
					time[j] = time[next] + phases[next].Duration
				}
			}
		}
		l.timeBeforeChange = append(l.timeBeforeChange, time)
	}
}

// Set validates tl and buffers it. The starting phase is offset by the junction id.
func (l *LocalTrafficLight) Set(tl *mapv2.TrafficLight) error {
	if tl.JunctionId != l.JunctionID {
		return fmt.Errorf("set junction %d with wrong traffic light id %d", l.JunctionID, tl.JunctionId)
	}
	if len(l.lanes) == 0 {
		return fmt.Errorf("no lane data in junction %d", l.JunctionID)
	}
	if len(tl.Phases) == 0 {
		return fmt.Errorf("set with empty traffic light")
	}
	total := 0.
	for _, p := range tl.Phases {
		if len(p.States) != len(l.lanes) {
			return fmt.Errorf("number of lanes %d and traffic light states %d does not match", len(l.lanes), len(p.States))
		}
		if p.Duration < 0 {
			return fmt.Errorf("negative phase duration %v", p.Duration)
		}
		total += p.Duration
	}
	if total <= 0 {
		return fmt.Errorf("traffic light of junction %d has zero cycle time", l.JunctionID)
	}

	phaseIndex := l.JunctionID % int32(len(tl.Phases))
	l.buffer = &localTlRuntime{
		tl: tl, tlStep: phaseIndex, tlRemainingT: tl.Phases[phaseIndex].Duration, tlTotalTime: tl.Phases[phaseIndex].Duration,
	}
	return nil
}

// Unset removes the program at the next Update, turning every corridor green.
func (l *LocalTrafficLight) Unset() {
	l.buffer = &localTlRuntime{}
}
