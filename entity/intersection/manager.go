package intersection

import (
	"errors"
	"fmt"
	"slices"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity"
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity/hcsm"
	"github.com/tsinghua-fib-lab/traffic-hcsm/utils/container"
)

const Template = "intersection_manager"

var (
	ErrUnknownIntersection = errors.New("unknown intersection")
	ErrCapacityExhausted   = fmt.Errorf("active intersection pool: %w", hcsm.ErrCapacityExhausted)
	ErrNotVehicle          = errors.New("entity is not a vehicle")
)

// Params overrides the arbitration section of the runtime config.
type Params struct {
	MaxActiveIntersections int   `yaml:"max_active_intersections"`
	LivelockFrames         int   `yaml:"livelock_frames"`
	RandomTieBreak         *bool `yaml:"random_tie_break"`
}

// Manager arbitrates right of way at junctions.
// Vehicles register with the junction they are about to enter; every tick the
// manager ranks the registered vehicles of each contested junction and writes
// Go or Stop to their DialIntersection.
type Manager struct {
	entity.Base

	ctx entity.ITaskContext

	records map[int32]*intersectionRecord
	active  *container.OrderedSet[int32] // junctions holding an active record
	pool    *container.Pool[activeRecord]

	livelockFrames int
	randomTieBreak bool
}

// New is the constructor of the intersection_manager template.
func New(ctx entity.ITaskContext, init entity.InitBlock) (entity.IEntity, error) {
	c := ctx.RuntimeConfig().C.Arbitration
	params := Params{
		MaxActiveIntersections: c.MaxActiveIntersections,
		LivelockFrames:         c.LivelockFrames,
		RandomTieBreak:         lo.ToPtr(c.RandomTieBreak),
	}
	if err := hcsm.DecodeInit(init, &params); err != nil {
		return nil, err
	}
	if params.MaxActiveIntersections <= 0 {
		return nil, fmt.Errorf("max_active_intersections must be positive, got %d", params.MaxActiveIntersections)
	}
	if params.LivelockFrames <= 0 {
		return nil, fmt.Errorf("livelock_frames must be positive, got %d", params.LivelockFrames)
	}
	m := &Manager{
		Base:           entity.NewBase(entity.KindIntersectionManager, *c.Priority),
		ctx:            ctx,
		records:        make(map[int32]*intersectionRecord),
		active:         container.NewOrderedSet[int32](),
		pool:           container.NewPool(params.MaxActiveIntersections, resetRecord),
		livelockFrames: params.LivelockFrames,
		randomTieBreak: lo.FromPtr(params.RandomTieBreak),
	}
	for _, j := range ctx.JunctionManager().Junctions() {
		m.records[j.ID()] = &intersectionRecord{
			junction:    j,
			disabled:    j.Disabled(),
			recordIndex: -1,
		}
	}
	return m, nil
}

// RegisterVehicle declares that vehicle is about to traverse junction.
// Registering twice is the same as once; a disabled junction ignores it.
// Returns ErrUnknownIntersection, ErrNotVehicle, or ErrCapacityExhausted when
// the junction is inactive and no active record is free.
func (m *Manager) RegisterVehicle(vehicle entity.ID, junction int32) error {
	rec, ok := m.records[junction]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownIntersection, junction)
	}
	if rec.disabled {
		return nil
	}
	e, err := m.ctx.Kernel().Get(vehicle)
	if err != nil {
		return err
	}
	if _, ok := e.(entity.IVehicle); !ok {
		return fmt.Errorf("%w: %s is a %s", ErrNotVehicle, e.Name(), e.Kind())
	}
	if !rec.active {
		index, r, ok := m.pool.Get()
		if !ok {
			log.Warnf("drop registration of %s at junction %d: %d active intersections", e.Name(), junction, m.pool.Cap())
			return fmt.Errorf("%w: junction %d", ErrCapacityExhausted, junction)
		}
		r.init(junction)
		rec.active = true
		rec.recordIndex = index
		m.active.Add(junction)
	}
	m.pool.At(rec.recordIndex).register(vehicle)
	return nil
}

// Execute runs one arbitration tick.
// Algorithm:
// 1. remove the vehicles flagged as cleared last tick, releasing empty records
// 2. drain the registration queue
// 3. rank the vehicles of every active junction and signal them
func (m *Manager) Execute(frame int32) error {
	for _, junction := range slices.Clone(m.active.Keys()) {
		rec := m.records[junction]
		r := m.pool.At(rec.recordIndex)
		for _, id := range r.pendingRemoval.Drain() {
			r.remove(id)
			m.clearDial(id, junction)
		}
		if r.registered.Len() == 0 {
			m.release(rec)
		}
	}

	queue := m.ctx.Registrations()
	for {
		reg, ok := queue.TryDequeue()
		if !ok {
			break
		}
		if err := m.RegisterVehicle(reg.Vehicle, reg.Junction); err != nil {
			log.Warnf("frame %d: register %s at junction %d: %v", frame, reg.Vehicle, reg.Junction, err)
		}
	}

	for _, junction := range m.active.Keys() {
		rec := m.records[junction]
		m.rank(frame, rec.junction, m.pool.At(rec.recordIndex))
	}
	return nil
}

// OnDestroy clears every dial the manager has written.
func (m *Manager) OnDestroy() error {
	for _, junction := range slices.Clone(m.active.Keys()) {
		rec := m.records[junction]
		for _, id := range m.pool.At(rec.recordIndex).registered.Keys() {
			m.clearDial(id, junction)
		}
		m.release(rec)
	}
	return nil
}

func (m *Manager) release(rec *intersectionRecord) {
	m.pool.Put(rec.recordIndex)
	rec.active = false
	rec.recordIndex = -1
	m.active.Remove(rec.junction.ID())
}

// clearDial removes the decision of junction from vehicle, leaving decisions of other junctions alone.
func (m *Manager) clearDial(vehicle entity.ID, junction int32) {
	e, err := m.ctx.Kernel().Get(vehicle)
	if err != nil {
		return
	}
	if cmd, ok := entity.DialAs[entity.Command](e, entity.DialIntersection); ok && cmd.Junction == junction {
		e.ClearDial(entity.DialIntersection)
	}
}

// Active reports whether junction holds an active record.
func (m *Manager) Active(junction int32) bool {
	rec, ok := m.records[junction]
	return ok && rec.active
}

// Disabled reports whether junction is never arbitrated.
func (m *Manager) Disabled(junction int32) bool {
	rec, ok := m.records[junction]
	return ok && rec.disabled
}

// ActiveCount returns the number of active records in use.
func (m *Manager) ActiveCount() int {
	return m.pool.Cap() - m.pool.Available()
}

// Registered returns the vehicles registered at junction in registration order.
func (m *Manager) Registered(junction int32) []entity.ID {
	rec, ok := m.records[junction]
	if !ok || !rec.active {
		return nil
	}
	return m.pool.At(rec.recordIndex).registered.Keys()
}

// TravelState returns the last decision for vehicle at junction.
func (m *Manager) TravelState(vehicle entity.ID, junction int32) (TravelState, bool) {
	rec, ok := m.records[junction]
	if !ok || !rec.active {
		return Go, false
	}
	info, ok := m.pool.At(rec.recordIndex).info[vehicle]
	if !ok {
		return Go, false
	}
	return info.state, true
}
