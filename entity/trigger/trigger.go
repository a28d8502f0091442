package trigger

import (
	"encoding/json"
	"errors"
	"fmt"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity"
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity/hcsm"
	"github.com/tsinghua-fib-lab/traffic-hcsm/utils/config"
	"google.golang.org/protobuf/encoding/protojson"
)

const Template = "time_trigger"

// DialSetting sets a dial of a named entity when the trigger fires.
type DialSetting struct {
	Entity string  `yaml:"entity"`
	Dial   string  `yaml:"dial"`
	Value  float64 `yaml:"value"`
}

// PhaseSetting is one phase of a traffic light program, states named like LIGHT_STATE_RED.
type PhaseSetting struct {
	Duration float64  `yaml:"duration"`
	States   []string `yaml:"states"`
}

// LightSetting replaces the program of a junction's traffic light. No phases turns it off.
type LightSetting struct {
	Junction int32          `yaml:"junction"`
	Phases   []PhaseSetting `yaml:"phases"`
}

// Params is the init block of a time trigger.
type Params struct {
	Frame  int32               `yaml:"frame"`  // fires at the first tick at or after this frame
	Create []config.EntitySpec `yaml:"create"` // entities to create
	Delete []string            `yaml:"delete"` // names of entities to delete
	Dials  []DialSetting       `yaml:"dials"`  // dials to set, applied at the start of the next tick
	Lights []LightSetting      `yaml:"lights"` // programs to swap, applied by the next light update
}

type lightAction struct {
	junction int32
	program  *mapv2.TrafficLight // nil turns the light off
}

type dialAction struct {
	entity string
	key    entity.DialKey
	value  entity.Value
}

// Trigger fires once at a frame: it creates and deletes entities, queues dial
// settings, then deletes itself.
type Trigger struct {
	entity.Base

	ctx     entity.ITaskContext
	frame   int32
	creates []config.EntitySpec
	deletes []string
	dials   []dialAction
	lights  []lightAction
	fired   bool
}

// New is the constructor of the time_trigger template.
func New(ctx entity.ITaskContext, init entity.InitBlock) (entity.IEntity, error) {
	var params Params
	if err := hcsm.DecodeInit(init, &params); err != nil {
		return nil, err
	}
	t := &Trigger{
		Base:    entity.NewBase(entity.KindTrigger, config.DefaultTriggerPriority),
		ctx:     ctx,
		frame:   params.Frame,
		creates: params.Create,
		deletes: params.Delete,
	}
	for _, d := range params.Dials {
		key, err := entity.ParseDialKey(d.Dial)
		if err != nil {
			return nil, err
		}
		if key != entity.DialTargetSpeed {
			return nil, fmt.Errorf("dial %s can not be set by a trigger", key)
		}
		t.dials = append(t.dials, dialAction{entity: d.Entity, key: key, value: entity.Float(d.Value)})
	}
	for _, l := range params.Lights {
		program, err := parseProgram(l)
		if err != nil {
			return nil, err
		}
		t.lights = append(t.lights, lightAction{junction: l.Junction, program: program})
	}
	return t, nil
}

// parseProgram goes through the protobuf JSON mapping so that states are checked against the enum names.
func parseProgram(l LightSetting) (*mapv2.TrafficLight, error) {
	if len(l.Phases) == 0 {
		return nil, nil
	}
	type phaseJSON struct {
		Duration float64  `json:"duration"`
		States   []string `json:"states"`
	}
	doc := struct {
		JunctionID int32       `json:"junction_id"`
		Phases     []phaseJSON `json:"phases"`
	}{JunctionID: l.Junction}
	for _, p := range l.Phases {
		doc.Phases = append(doc.Phases, phaseJSON(p))
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	program := &mapv2.TrafficLight{}
	if err := protojson.Unmarshal(data, program); err != nil {
		return nil, fmt.Errorf("junction %d program: %w", l.Junction, err)
	}
	return program, nil
}

// Fired reports whether the trigger has fired.
func (t *Trigger) Fired() bool {
	return t.fired
}

// Execute fires the trigger once frame reaches its frame.
// Every action is attempted; the failures are returned together.
func (t *Trigger) Execute(frame int32) error {
	if t.fired || frame < t.frame {
		return nil
	}
	t.fired = true
	kernel := t.ctx.Kernel()
	var errs []error
	for _, spec := range t.creates {
		id, err := kernel.Create(spec)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		log.Debugf("%s created %s (%s) at frame %d", t.Name(), spec.Template, id, frame)
	}
	for _, name := range t.deletes {
		e, err := kernel.GetByName(name)
		if err == nil {
			err = kernel.Delete(e.ID())
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	for _, d := range t.dials {
		e, err := kernel.GetByName(d.entity)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		kernel.QueueDial(e.ID(), d.key, d.value)
	}
	for _, l := range t.lights {
		j, err := t.ctx.JunctionManager().GetOrError(l.junction)
		switch {
		case err != nil:
		case l.program == nil:
			err = j.UnsetTrafficLight()
		default:
			err = j.SetTrafficLight(l.program)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	if t.IsRoot() {
		if err := kernel.Delete(t.ID()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
