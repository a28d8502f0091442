package config

// InputPath locates one input dataset (MongoDB collection or file).
// A file takes precedence over MongoDB; downloaded collections are cached.
type InputPath struct {
	DB        string `yaml:"db"`                   // database name
	Col       string `yaml:"col"`                  // collection name
	Cache     string `yaml:"cache,omitempty"`      // cache file, defaults to {db}.{col}.pb
	OnlyCache bool   `yaml:"only_cache,omitempty"` // never contact MongoDB
	File      string `yaml:"file,omitempty"`       // protobuf file path
}

func (p InputPath) GetDb() string {
	return p.DB
}

func (p InputPath) GetColl() string {
	return p.Col
}

// GetCachePath returns the cache file path.
// Algorithm:
// 1. the configured cache path if any
// 2. otherwise {db}.{col}.pb
func (p InputPath) GetCachePath() string {
	if p.Cache != "" {
		return p.Cache
	}
	return p.DB + "." + p.Col + ".pb"
}

// Input lists every input dataset of the simulator.
type Input struct {
	URI string    `yaml:"uri,omitempty"` // MongoDB connection string
	Map InputPath `yaml:"map"`           // road network
}

// ControlStep is the simulated time range and frame length.
type ControlStep struct {
	Start    int32   `yaml:"start"`    // first frame
	Total    int32   `yaml:"total"`    // number of frames
	Interval float64 `yaml:"interval"` // seconds per frame
}

// ControlScheduler sizes the entity table.
type ControlScheduler struct {
	Capacity int `yaml:"capacity,omitempty"` // entity slots
}

// ControlArbitration configures the intersection arbitration manager.
type ControlArbitration struct {
	MaxActiveIntersections int  `yaml:"max_active_intersections,omitempty"` // active record pool size
	LivelockFrames         int  `yaml:"livelock_frames,omitempty"`          // stopped frames before a forced Go
	RandomTieBreak         bool `yaml:"random_tie_break,omitempty"`         // pick the forced Go vehicle at random
	Priority               *int `yaml:"priority,omitempty"`
}

// ControlLight configures the traffic light manager.
type ControlLight struct {
	Priority *int `yaml:"priority,omitempty"`
}

type Control struct {
	Step        ControlStep        `yaml:"step"`
	Scheduler   ControlScheduler   `yaml:"scheduler,omitempty"`
	Arbitration ControlArbitration `yaml:"arbitration,omitempty"`
	Light       ControlLight       `yaml:"light,omitempty"`
}

// EntitySpec describes one entity to create: its template, name, optional
// priority override and init block.
type EntitySpec struct {
	Template string         `yaml:"template"`
	Name     string         `yaml:"name,omitempty"`
	Priority *int           `yaml:"priority,omitempty"`
	Init     map[string]any `yaml:"init,omitempty"`
}

// Scenario is the initial population and the traffic control devices missing from the map.
type Scenario struct {
	StopSigns []int32      `yaml:"stop_signs,omitempty"` // corridor lane ids controlled by a stop sign
	Entities  []EntitySpec `yaml:"entities,omitempty"`   // created before the first frame
}

// Config is the root of the YAML configuration file.
type Config struct {
	Input    Input    `yaml:"input"`
	Control  Control  `yaml:"control"`
	Scenario Scenario `yaml:"scenario,omitempty"`
}
