package task

import (
	"flag"
)

var (
	heartBeatInterval = flag.Int("log.heartbeat_interval", 100, "frames between heartbeat logs")
)

// Step runs one frame. Entity faults are logged by the scheduler and returned
// joined; they never stop the simulation.
func (ctx *Context) Step() error {
	if interval := int32(*heartBeatInterval); interval > 0 && ctx.clock.InternalStep%interval == 0 {
		hour, minute, second := ctx.clock.GetHourMinuteSecond()
		log.Infof(
			"STEP: %d(%d:%d:%.2f) entities %d active intersections %d",
			ctx.clock.InternalStep,
			hour, minute, second,
			ctx.kernel.Len(), ctx.arbitration.ActiveCount(),
		)
	}
	return ctx.kernel.ExecuteTick()
}

// Run steps until the clock ends or the task is closed.
func (ctx *Context) Run() {
	for !ctx.clock.Ended() && !ctx.closed.Load() {
		if err := ctx.Step(); err != nil {
			log.Debugf("step %d: %v", ctx.clock.InternalStep-1, err)
		}
	}
	log.Infof("engine complete")
}
