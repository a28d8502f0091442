package clock

import (
	"fmt"

	"github.com/tsinghua-fib-lab/traffic-hcsm/utils/config"
)

// Clock is the simulation clock. One step is one scheduler frame.
type Clock struct {
	DT         float64 // seconds per frame
	START_STEP int32   // first frame
	END_STEP   int32   // frame after the last one, the range is [START, END)

	T            float64 // current time in seconds
	InternalStep int32   // current frame
}

// New creates a clock from the step configuration.
// Params:
//   - stepConfig: first frame, number of frames and frame length
//
// Returns: the clock positioned at the first frame
func New(stepConfig config.ControlStep) *Clock {
	c := &Clock{
		DT:         stepConfig.Interval,
		START_STEP: stepConfig.Start,
		END_STEP:   stepConfig.Start + stepConfig.Total,
	}
	c.Init()
	return c
}

// Init rewinds the clock to the first frame.
func (c *Clock) Init() {
	c.InternalStep = c.START_STEP
	c.T = float64(c.InternalStep) * c.DT
}

// Step advances the clock by one frame.
func (c *Clock) Step() {
	c.InternalStep++
	c.T = float64(c.InternalStep) * c.DT
}

// Ended reports whether every configured frame has been simulated.
func (c *Clock) Ended() bool {
	return c.InternalStep >= c.END_STEP
}

// String formats the current time as HH:MM:SS.
func (c *Clock) String() string {
	t := c.T
	h := int(t / 3600)
	t -= float64(h * 3600)
	m := int(t / 60)
	t -= float64(m * 60)
	s := int(t)
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// GetHourMinuteSecond splits the current time, keeping sub-second precision in the seconds.
func (c *Clock) GetHourMinuteSecond() (int, int, float64) {
	hour := int(c.T) / 3600
	minute := int(c.T) % 3600 / 60
	second := c.T - float64(hour*3600+minute*60)
	return hour, minute, second
}
