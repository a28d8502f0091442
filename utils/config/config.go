package config

const (
	DefaultCapacity               = 1024
	DefaultMaxActiveIntersections = 64
	DefaultLivelockFrames         = 50
	DefaultLightPriority          = -20
	DefaultArbitrationPriority    = -10
	DefaultVehiclePriority        = 0
	DefaultTriggerPriority        = 10
)

// RuntimeConfig is the configuration with defaults applied.
type RuntimeConfig struct {
	All Config  // full configuration
	C   Control // control section with defaults
}

// NewRuntimeConfig applies defaults to config.
// Algorithm:
// 1. copy the configuration
// 2. fill zero capacities and thresholds with their defaults
// 3. fill missing manager priorities
func NewRuntimeConfig(config Config) *RuntimeConfig {
	rc := &RuntimeConfig{}

	rc.All = config
	rc.C = config.Control
	if rc.C.Scheduler.Capacity <= 0 {
		rc.C.Scheduler.Capacity = DefaultCapacity
	}
	if rc.C.Arbitration.MaxActiveIntersections <= 0 {
		rc.C.Arbitration.MaxActiveIntersections = DefaultMaxActiveIntersections
	}
	if rc.C.Arbitration.LivelockFrames <= 0 {
		rc.C.Arbitration.LivelockFrames = DefaultLivelockFrames
	}
	if rc.C.Arbitration.Priority == nil {
		p := DefaultArbitrationPriority
		rc.C.Arbitration.Priority = &p
	}
	if rc.C.Light.Priority == nil {
		p := DefaultLightPriority
		rc.C.Light.Priority = &p
	}
	if rc.C.Step.Interval <= 0 {
		rc.C.Step.Interval = 0.1
	}
	return rc
}
