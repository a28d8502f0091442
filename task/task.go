package task

import (
	"fmt"
	"sync/atomic"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/tsinghua-fib-lab/traffic-hcsm/clock"
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity"
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity/hcsm"
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity/intersection"
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity/junction"
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity/lane"
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity/light"
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity/road"
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity/trigger"
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity/vehicle"
	"github.com/tsinghua-fib-lab/traffic-hcsm/utils/config"
	"github.com/tsinghua-fib-lab/traffic-hcsm/utils/container"
)

// Context holds every component of one simulation task.
type Context struct {
	job    string
	closed atomic.Bool

	clock         *clock.Clock
	runtimeConfig *config.RuntimeConfig

	laneManager     *lane.LaneManager
	roadManager     *road.RoadManager
	junctionManager *junction.JunctionManager

	registry      *hcsm.Registry
	kernel        *hcsm.Manager
	registrations *container.Queue[entity.Registration]
	arbitration   *intersection.Manager
}

var _ entity.ITaskContext = (*Context)(nil)

// NewRegistry returns the registry of every entity template.
func NewRegistry() *hcsm.Registry {
	r := hcsm.NewRegistry()
	r.Register(intersection.Template, intersection.New)
	r.Register(light.Template, light.New)
	r.Register(vehicle.Template, vehicle.New)
	r.Register(trigger.Template, trigger.New)
	return r
}

// NewContext builds a task ready to run its first frame.
// Params:
//   - job: task name used in logs
//   - c: configuration
//   - m: road network
//
// Algorithm:
// 1. apply the configuration defaults and create the clock
// 2. build lanes, roads and junctions, with the scenario stop signs
// 3. create the scheduler with the light and intersection managers as system entities
// 4. create the scenario entities and activate everything before frame 0
func NewContext(job string, c config.Config, m *mapv2.Map) (*Context, error) {
	ctx := &Context{
		job:             job,
		runtimeConfig:   config.NewRuntimeConfig(c),
		laneManager:     lane.NewManager(),
		roadManager:     road.NewManager(),
		junctionManager: junction.NewManager(),
		registrations:   container.NewQueue[entity.Registration](64),
	}
	ctx.clock = clock.New(ctx.runtimeConfig.C.Step)

	if err := ctx.laneManager.Init(m.Lanes); err != nil {
		return nil, fmt.Errorf("lanes: %w", err)
	}
	if err := ctx.roadManager.Init(m.Roads, ctx.laneManager); err != nil {
		return nil, fmt.Errorf("roads: %w", err)
	}
	if err := ctx.junctionManager.Init(m.Junctions, ctx.laneManager, c.Scenario.StopSigns); err != nil {
		return nil, fmt.Errorf("junctions: %w", err)
	}
	ctx.junctionManager.Prepare()

	ctx.registry = NewRegistry()
	ctx.kernel = hcsm.NewManager(ctx, ctx.registry, ctx.runtimeConfig.C.Scheduler.Capacity)
	for _, template := range []string{light.Template, intersection.Template} {
		if _, err := ctx.kernel.Create(config.EntitySpec{Template: template, Name: template}); err != nil {
			return nil, fmt.Errorf("system entity %s: %w", template, err)
		}
	}
	for _, spec := range c.Scenario.Entities {
		if _, err := ctx.kernel.Create(spec); err != nil {
			return nil, fmt.Errorf("scenario entity %s %q: %w", spec.Template, spec.Name, err)
		}
	}
	if err := ctx.kernel.ActivateCreated(); err != nil {
		return nil, err
	}
	e, err := ctx.kernel.GetByName(intersection.Template)
	if err != nil {
		return nil, err
	}
	ctx.arbitration = e.(*intersection.Manager)
	log.Infof("job %s: %d entities, %d junctions", job, ctx.kernel.Len(), len(ctx.junctionManager.Junctions()))
	return ctx, nil
}

func (ctx *Context) Clock() *clock.Clock {
	return ctx.clock
}

func (ctx *Context) Kernel() entity.IKernel {
	return ctx.kernel
}

// Registry holds the templates the kernel creates entities from.
func (ctx *Context) Registry() *hcsm.Registry {
	return ctx.registry
}

// Scheduler is the kernel with its boundary operations.
func (ctx *Context) Scheduler() *hcsm.Manager {
	return ctx.kernel
}

func (ctx *Context) LaneManager() entity.ILaneManager {
	return ctx.laneManager
}

func (ctx *Context) RoadManager() entity.IRoadManager {
	return ctx.roadManager
}

func (ctx *Context) JunctionManager() entity.IJunctionManager {
	return ctx.junctionManager
}

func (ctx *Context) Registrations() *container.Queue[entity.Registration] {
	return ctx.registrations
}

func (ctx *Context) RuntimeConfig() *config.RuntimeConfig {
	return ctx.runtimeConfig
}

// Arbitration is the intersection arbitration manager.
func (ctx *Context) Arbitration() *intersection.Manager {
	return ctx.arbitration
}

// RegisterVehicle registers a vehicle with the arbitration manager immediately.
func (ctx *Context) RegisterVehicle(vehicle entity.ID, junction int32) error {
	return ctx.arbitration.RegisterVehicle(vehicle, junction)
}

func (ctx *Context) Close() {
	ctx.closed.Store(true)
}
