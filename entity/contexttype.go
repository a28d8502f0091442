package entity

import (
	"github.com/tsinghua-fib-lab/traffic-hcsm/clock"
	"github.com/tsinghua-fib-lab/traffic-hcsm/utils/config"
	"github.com/tsinghua-fib-lab/traffic-hcsm/utils/container"
)

type ITaskContext interface {
	Clock() *clock.Clock
	Kernel() IKernel
	LaneManager() ILaneManager
	RoadManager() IRoadManager
	JunctionManager() IJunctionManager
	// Registrations is drained by the intersection arbitration manager every tick.
	Registrations() *container.Queue[Registration]
	RuntimeConfig() *config.RuntimeConfig
}
