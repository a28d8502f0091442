package hcsm

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/traffic-hcsm/clock"
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity"
	"github.com/tsinghua-fib-lab/traffic-hcsm/utils/config"
	"github.com/tsinghua-fib-lab/traffic-hcsm/utils/container"
)

type queuedDial struct {
	id    entity.ID
	key   entity.DialKey
	value entity.Value
}

// Manager is the entity table and scheduler.
// It owns entity identity and lifecycle and executes the Active root
// entities once per frame in (priority, creation order).
// Creation and deletion take effect only at tick boundaries.
type Manager struct {
	ctx      entity.ITaskContext
	clock    *clock.Clock
	registry *Registry

	arena     *arena
	createSet *container.OrderedSet[entity.ID]
	deleteSet *container.OrderedSet[entity.ID]
	stillborn map[entity.ID]struct{} // deleted before activation

	live     *container.IncrementalArray[entity.IEntity] // activated roots
	order    []entity.IEntity                            // live sorted by (priority, serial)
	dirty    bool
	children map[entity.ID][]entity.ID // root -> descendants in creation order

	dials  *container.Queue[queuedDial]
	serial uint64
}

var _ entity.IKernel = (*Manager)(nil)

// NewManager creates a scheduler with capacity entity slots.
// The frame counter is the task clock's current step.
func NewManager(ctx entity.ITaskContext, registry *Registry, capacity int) *Manager {
	return &Manager{
		ctx:       ctx,
		clock:     ctx.Clock(),
		registry:  registry,
		arena:     newArena(capacity),
		createSet: container.NewOrderedSet[entity.ID](),
		deleteSet: container.NewOrderedSet[entity.ID](),
		stillborn: make(map[entity.ID]struct{}),
		live:      container.NewIncrementalArray[entity.IEntity](),
		children:  make(map[entity.ID][]entity.ID),
		dials:     container.NewQueue[queuedDial](16),
	}
}

func (m *Manager) Frame() int32 {
	return m.clock.InternalStep
}

// Len returns the number of occupied slots.
func (m *Manager) Len() int {
	return m.arena.capacity() - m.arena.freeCount()
}

func (m *Manager) FreeCount() int {
	return m.arena.freeCount()
}

func (m *Manager) Capacity() int {
	return m.arena.capacity()
}

// Create constructs a root entity from spec. It becomes Active at the next tick boundary.
func (m *Manager) Create(spec config.EntitySpec) (entity.ID, error) {
	return m.create(entity.NilID, spec)
}

// CreateChild constructs an entity owned by parent. The parent executes it
// with ExecuteChildren; it is reclaimed together with the parent's root.
func (m *Manager) CreateChild(parent entity.ID, spec config.EntitySpec) (entity.ID, error) {
	if !parent.Valid() {
		return entity.NilID, fmt.Errorf("%w: parent %s", ErrInvalidID, parent)
	}
	return m.create(parent, spec)
}

func (m *Manager) create(parent entity.ID, spec config.EntitySpec) (entity.ID, error) {
	root := entity.NilID
	if parent.Valid() {
		p, ok := m.arena.get(parent)
		if !ok || p.State() == entity.Dying {
			return entity.NilID, fmt.Errorf("%w: parent %s", ErrInvalidID, parent)
		}
		root = parent
		if !p.IsRoot() {
			root = p.Parent()
			for {
				r, ok := m.arena.get(root)
				if !ok || r.IsRoot() {
					break
				}
				root = r.Parent()
			}
		}
	}
	id, ok := m.arena.alloc()
	if !ok {
		return entity.NilID, fmt.Errorf("%w: create %s", ErrCapacityExhausted, spec.Template)
	}
	e, err := m.registry.CreateByTemplate(m.ctx, spec.Template, spec.Init)
	if err != nil {
		m.arena.release(id)
		return entity.NilID, err
	}
	m.serial++
	name := spec.Name
	if name == "" {
		name = fmt.Sprintf("%s-%s", spec.Template, id)
	}
	e.SetIDWhenCreate(id, parent, m.serial, name)
	if spec.Priority != nil {
		e.SetPriorityWhenCreate(*spec.Priority)
	}
	e.SetState(entity.Dormant)
	m.arena.set(id, e)
	m.createSet.Add(id)
	if root.Valid() {
		m.children[root] = append(m.children[root], id)
	}
	log.Debugf("create %s %s (%s) priority %d", e.Kind(), name, id, e.Priority())
	return id, nil
}

// Delete marks a root entity Dying. It is reclaimed at the next tick boundary,
// and still executes in the current tick if it was Active.
// A Dormant entity is withdrawn from activation.
func (m *Manager) Delete(id entity.ID) error {
	e, ok := m.arena.get(id)
	if !ok {
		return fmt.Errorf("%w: delete %s", ErrInvalidID, id)
	}
	if !e.IsRoot() {
		return fmt.Errorf("%w: delete %s (%s)", ErrNotRoot, e.Name(), id)
	}
	switch e.State() {
	case entity.Dying:
		return nil
	case entity.Dormant:
		m.createSet.Remove(id)
		m.stillborn[id] = struct{}{}
	}
	e.SetState(entity.Dying)
	m.deleteSet.Add(id)
	return nil
}

func (m *Manager) Get(id entity.ID) (entity.IEntity, error) {
	e, ok := m.arena.get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidID, id)
	}
	return e, nil
}

// GetByName returns the first entity named name in slot order, skipping Dying ones.
func (m *Manager) GetByName(name string) (entity.IEntity, error) {
	var found entity.IEntity
	m.arena.each(func(e entity.IEntity) bool {
		if e.Name() == name && e.State() != entity.Dying {
			found = e
			return false
		}
		return true
	})
	if found == nil {
		return nil, fmt.Errorf("%w: no entity named %q", ErrInvalidID, name)
	}
	return found, nil
}

// ExecuteChildren executes the Active direct children of parent in (priority, creation order),
// each behind its own fault barrier. Called by the parent from its own Execute.
func (m *Manager) ExecuteChildren(parent entity.ID) error {
	p, ok := m.arena.get(parent)
	if !ok {
		return fmt.Errorf("%w: parent %s", ErrInvalidID, parent)
	}
	root := parent
	for !p.IsRoot() {
		root = p.Parent()
		if p, ok = m.arena.get(root); !ok {
			return fmt.Errorf("%w: root of %s", ErrInvalidID, parent)
		}
	}
	children := make([]entity.IEntity, 0)
	for _, id := range m.children[root] {
		if e, ok := m.arena.get(id); ok && e.Parent() == parent && e.State() == entity.Active {
			children = append(children, e)
		}
	}
	sort.SliceStable(children, func(i, j int) bool { return children[i].Priority() < children[j].Priority() })
	frame := m.Frame()
	var faults []error
	for _, e := range children {
		if err := m.guard(e, "execute", func() error { return e.Execute(frame) }); err != nil {
			faults = append(faults, err)
		}
	}
	return errors.Join(faults...)
}

// QueueDial sets a dial at the start of the next tick.
func (m *Manager) QueueDial(id entity.ID, key entity.DialKey, value entity.Value) {
	m.dials.Enqueue(queuedDial{id: id, key: key, value: value})
}

// ActivateCreated activates the pending entities in creation order and runs their OnCreate.
// Entities created from OnCreate wait for the next boundary.
func (m *Manager) ActivateCreated() error {
	var faults []error
	for _, id := range m.createSet.Drain() {
		e, ok := m.arena.get(id)
		if !ok {
			continue
		}
		e.SetState(entity.Active)
		if err := m.guard(e, "create", func() error {
			e.OnCreate()
			return nil
		}); err != nil {
			faults = append(faults, err)
		}
		if e.IsRoot() {
			m.live.Add(e)
		}
	}
	if adds, _ := m.live.Pending(); adds > 0 {
		m.live.Prepare()
		m.dirty = true
	}
	return errors.Join(faults...)
}

// ReclaimDeleted frees the Dying entities and their descendants in deletion order.
// A fault in OnDestroy is logged and does not stop the others.
func (m *Manager) ReclaimDeleted() error {
	var faults []error
	for _, id := range m.deleteSet.Drain() {
		e, ok := m.arena.get(id)
		if !ok {
			continue
		}
		for _, child := range m.children[id] {
			if err := m.reclaim(child); err != nil {
				faults = append(faults, err)
			}
		}
		delete(m.children, id)
		if _, ok := m.stillborn[id]; !ok && e.IsRoot() {
			m.live.Remove(e)
		}
		if err := m.reclaim(id); err != nil {
			faults = append(faults, err)
		}
	}
	if _, removes := m.live.Pending(); removes > 0 {
		m.live.Prepare()
		m.dirty = true
	}
	return errors.Join(faults...)
}

func (m *Manager) reclaim(id entity.ID) error {
	e, ok := m.arena.get(id)
	if !ok {
		return nil
	}
	activated := true
	if _, ok := m.stillborn[id]; ok {
		delete(m.stillborn, id)
		activated = false
	}
	if m.createSet.Remove(id) {
		activated = false
	}
	e.SetState(entity.Dying)
	m.arena.release(id)
	log.Debugf("reclaim %s (%s)", e.Name(), id)
	if !activated {
		return nil
	}
	return m.guard(e, "destroy", e.OnDestroy)
}

// ExecuteTick runs one frame.
// Algorithm:
// 1. apply dials queued with QueueDial
// 2. execute the Active and Dying roots in (priority, creation order), each behind its own fault barrier
// 3. reclaim the entities deleted during this frame
// 4. activate the entities created during this frame
// 5. advance the frame counter
//
// Returns the joined faults of the frame, nil if it ran clean.
// A fault never stops the frame.
func (m *Manager) ExecuteTick() error {
	frame := m.Frame()
	var faults []error

	for {
		d, ok := m.dials.TryDequeue()
		if !ok {
			break
		}
		e, ok := m.arena.get(d.id)
		if !ok {
			log.Warnf("frame %d: drop dial %s for missing entity %s", frame, d.key, d.id)
			continue
		}
		e.SetDial(d.key, d.value)
	}

	if m.dirty {
		m.order = append(m.order[:0], m.live.Data()...)
		sort.SliceStable(m.order, func(i, j int) bool {
			a, b := m.order[i], m.order[j]
			if a.Priority() != b.Priority() {
				return a.Priority() < b.Priority()
			}
			return a.Serial() < b.Serial()
		})
		m.dirty = false
	}
	for _, e := range m.order {
		if err := m.guard(e, "execute", func() error { return e.Execute(frame) }); err != nil {
			faults = append(faults, err)
		}
	}

	if err := m.ReclaimDeleted(); err != nil {
		faults = append(faults, err)
	}
	if err := m.ActivateCreated(); err != nil {
		faults = append(faults, err)
	}
	m.clock.Step()
	return errors.Join(faults...)
}

// guard runs f inside a fault barrier. Returned errors and panics become an ExecutionFault.
func (m *Manager) guard(e entity.IEntity, phase string, f func() error) (fault error) {
	frame := m.Frame()
	report := func(err error) {
		fault = &ExecutionFault{Name: e.Name(), ID: e.ID(), Frame: frame, Phase: phase, Err: err}
		log.WithFields(logrus.Fields{
			"entity": e.Name(),
			"frame":  frame,
		}).Errorf("%s fault: %v", phase, err)
	}
	defer func() {
		if p := recover(); p != nil {
			report(fmt.Errorf("panic: %v", p))
		}
	}()
	if err := f(); err != nil {
		report(err)
	}
	return fault
}
