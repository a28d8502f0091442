package vehicle

import (
	"fmt"
	"math"

	"github.com/tsinghua-fib-lab/traffic-hcsm/entity"
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity/hcsm"
	"github.com/tsinghua-fib-lab/traffic-hcsm/utils/config"
)

const Template = "vehicle"

const (
	idmTheta = 4   // IDM acceleration exponent
	stopGap  = 0.5 // m, kept to a stop line

	defaultMaxV        = 50 / 3.6
	defaultMaxA        = 3
	defaultBrakingA    = -4.5
	defaultMaxBrakingA = -10
	defaultLength      = 5
	defaultMinGap      = 1
	defaultHeadway     = 1.5
)

// Params is the init block of a vehicle.
type Params struct {
	Route       []int32  `yaml:"route"`         // lane ids, each a successor of the previous one
	S           float64  `yaml:"s"`             // start position on the first lane
	V           float64  `yaml:"v"`             // start speed
	MaxV        *float64 `yaml:"max_v"`         // m/s
	MaxA        *float64 `yaml:"max_a"`         // m/s², positive
	BrakingA    *float64 `yaml:"braking_a"`     // usual braking, m/s², negative
	MaxBrakingA *float64 `yaml:"max_braking_a"` // m/s², negative
	Length      *float64 `yaml:"length"`        // m
	OnRamp      bool     `yaml:"on_ramp"`
}

// Vehicle drives a scripted route with the IDM, stopping where the
// intersection dial tells it to. It deletes itself at the end of its route.
type Vehicle struct {
	entity.Base

	ctx   entity.ITaskContext
	route []entity.ILane
	index int // current lane in route

	s float64
	v float64

	maxV          float64
	maxA          float64
	usualBrakingA float64
	maxBrakingA   float64
	length        float64
	minGap        float64
	headway       float64
	onRamp        bool

	registeredCorridor int32 // last corridor registered with the intersection manager
	arrived            bool
}

var _ entity.IVehicle = (*Vehicle)(nil)

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// New is the constructor of the vehicle template.
// Returns an error for an empty or disconnected route and for out of range start values.
func New(ctx entity.ITaskContext, init entity.InitBlock) (entity.IEntity, error) {
	var params Params
	if err := hcsm.DecodeInit(init, &params); err != nil {
		return nil, err
	}
	if len(params.Route) == 0 {
		return nil, fmt.Errorf("empty route")
	}
	v := &Vehicle{
		Base:               entity.NewBase(entity.KindVehicle, config.DefaultVehiclePriority),
		ctx:                ctx,
		s:                  params.S,
		v:                  params.V,
		maxV:               valueOr(params.MaxV, defaultMaxV),
		maxA:               valueOr(params.MaxA, defaultMaxA),
		usualBrakingA:      valueOr(params.BrakingA, defaultBrakingA),
		maxBrakingA:        valueOr(params.MaxBrakingA, defaultMaxBrakingA),
		length:             valueOr(params.Length, defaultLength),
		minGap:             defaultMinGap,
		headway:            defaultHeadway,
		onRamp:             params.OnRamp,
		registeredCorridor: -1,
	}
	if v.maxA <= 0 || v.usualBrakingA >= 0 || v.maxBrakingA >= 0 || v.maxV <= 0 || v.length <= 0 {
		return nil, fmt.Errorf("invalid vehicle attributes %+v", params)
	}
	for i, id := range params.Route {
		lane, err := ctx.LaneManager().GetOrError(id)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			if _, ok := v.route[i-1].Successors()[id]; !ok {
				return nil, fmt.Errorf("route: lane %d does not follow lane %d", id, v.route[i-1].ID())
			}
		}
		v.route = append(v.route, lane)
	}
	if v.s < 0 || v.s > v.route[0].Length() {
		return nil, fmt.Errorf("start position %v outside lane %d", v.s, v.route[0].ID())
	}
	if v.v < 0 {
		return nil, fmt.Errorf("negative start speed %v", v.v)
	}
	return v, nil
}

func (v *Vehicle) Route() []entity.ILane {
	return v.route
}

func (v *Vehicle) OnRamp() bool {
	return v.onRamp
}

// Lane is the lane the vehicle is on.
func (v *Vehicle) Lane() entity.ILane {
	return v.route[v.index]
}

func (v *Vehicle) S() float64 {
	return v.s
}

func (v *Vehicle) V() float64 {
	return v.v
}

// Arrived reports whether the vehicle reached the end of its route.
func (v *Vehicle) Arrived() bool {
	return v.arrived
}

func (v *Vehicle) dt() float64 {
	return v.ctx.Clock().DT
}

// corridor returns the junction lane the vehicle is on or enters next, and
// the distance to its entry (0 when on it).
func (v *Vehicle) corridor() (entity.ILane, float64) {
	lane := v.route[v.index]
	if lane.InJunction() {
		return lane, 0
	}
	if v.index+1 < len(v.route) && v.route[v.index+1].InJunction() {
		return v.route[v.index+1], lane.Length() - v.s
	}
	return nil, 0
}

// OnCreate publishes the initial monitors so the vehicle is observable from its first tick.
func (v *Vehicle) OnCreate() {
	v.register()
	v.publish()
}

// Execute drives one frame.
// Algorithm:
// 1. accelerate towards the lane speed limit, capped by the target speed dial
// 2. brake for the stop position when the intersection dial says Stop
// 3. integrate and move along the route, deleting the vehicle at its end
// 4. register with the junction ahead and publish the monitors
func (v *Vehicle) Execute(frame int32) error {
	if v.arrived {
		return nil
	}
	dt := v.dt()
	lane := v.route[v.index]
	targetV := math.Min(v.maxV, lane.MaxV())
	if dial, ok := entity.DialAs[entity.Float](v, entity.DialTargetSpeed); ok {
		targetV = math.Min(targetV, float64(dial))
	}
	acc := v.freeFlow(targetV)
	if corridor, toEntry := v.corridor(); corridor != nil {
		if cmd, ok := entity.DialAs[entity.Command](v, entity.DialIntersection); ok &&
			cmd.Stop && cmd.Junction == corridor.ParentID() {
			distance := toEntry + cmd.Distance
			if toEntry == 0 {
				distance = cmd.Distance - v.s
			}
			acc = math.Min(acc, v.stop(distance, targetV))
		}
	}

	newV := math.Max(v.v+acc*dt, 0)
	v.s += (v.v + newV) / 2 * dt
	v.v = newV
	for v.s >= v.route[v.index].Length() {
		if v.index == len(v.route)-1 {
			v.s = v.route[v.index].Length()
			v.arrived = true
			log.Debugf("%s arrived at lane %d at frame %d", v.Name(), v.route[v.index].ID(), frame)
			v.publish()
			if v.IsRoot() {
				return v.ctx.Kernel().Delete(v.ID())
			}
			return nil
		}
		v.s -= v.route[v.index].Length()
		v.index++
	}
	v.register()
	v.publish()
	return nil
}

// register announces the corridor ahead to the intersection manager once.
func (v *Vehicle) register() {
	corridor, _ := v.corridor()
	if corridor == nil || corridor.ID() == v.registeredCorridor {
		return
	}
	v.registeredCorridor = corridor.ID()
	j := corridor.ParentJunction()
	if j.Disabled() {
		return
	}
	v.ctx.Registrations().Enqueue(entity.Registration{Vehicle: v.ID(), Junction: j.ID()})
}

func (v *Vehicle) publish() {
	lane := v.route[v.index]
	v.SetMonitor(entity.MonitorPosition, entity.Position{LaneID: lane.ID(), S: v.s})
	v.SetMonitor(entity.MonitorSpeed, entity.Float(v.v))
	v.SetMonitor(entity.MonitorLength, entity.Float(v.length))
	v.SetMonitor(entity.MonitorOnRamp, entity.Bool(v.onRamp))
	if corridor, _ := v.corridor(); corridor != nil {
		v.SetMonitor(entity.MonitorTargetCorridor, entity.Int(corridor.ID()))
		v.SetMonitor(entity.MonitorHasStopSign, entity.Bool(corridor.ParentJunction().HasStopSign(corridor.ID())))
	} else {
		v.SetMonitor(entity.MonitorTargetCorridor, entity.Int(lane.ID()))
		v.SetMonitor(entity.MonitorHasStopSign, entity.Bool(false))
	}
}
