package light

import (
	"git.fiblab.net/general/common/v2/parallel"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity"
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity/hcsm"
)

const Template = "light_manager"

// Params selects the junctions to drive. Empty means every junction.
type Params struct {
	Junctions []int32 `yaml:"junctions"`
}

// Manager advances the traffic lights of its junctions once per frame and
// publishes the new states to their corridors. It runs before the
// intersection manager so that arbitration reads the current states.
type Manager struct {
	entity.Base

	ctx       entity.ITaskContext
	junctions []entity.IJunction
}

// New is the constructor of the light_manager template.
func New(ctx entity.ITaskContext, init entity.InitBlock) (entity.IEntity, error) {
	var params Params
	if err := hcsm.DecodeInit(init, &params); err != nil {
		return nil, err
	}
	junctions, err := ctx.JunctionManager().Find(params.Junctions)
	if err != nil {
		return nil, err
	}
	m := &Manager{
		Base: entity.NewBase(entity.KindLightManager, *ctx.RuntimeConfig().C.Light.Priority),
		ctx:  ctx,
		junctions: lo.Filter(junctions, func(j entity.IJunction, _ int) bool {
			return j.HasTrafficLight()
		}),
	}
	log.Infof("drive %d traffic lights", len(m.junctions))
	return m, nil
}

// Junctions returns the junctions driven by the manager.
func (m *Manager) Junctions() []entity.IJunction {
	return m.junctions
}

func (m *Manager) Execute(frame int32) error {
	dt := m.ctx.Clock().DT
	parallel.GoFor(m.junctions, func(j entity.IJunction) { j.UpdateLight(dt) })
	return nil
}
