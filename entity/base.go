package entity

import (
	"github.com/tsinghua-fib-lab/traffic-hcsm/utils/container"
)

// Base carries the identity, lifecycle and channels shared by every entity.
// Embed it and implement Execute; OnCreate and OnDestroy may be overridden.
type Base struct {
	container.IncrementalItemBase

	id       ID
	parent   ID
	serial   uint64
	name     string
	kind     Kind
	priority int
	state    State

	monitors map[MonitorKey]Value
	dials    map[DialKey]Value
}

func NewBase(kind Kind, priority int) Base {
	return Base{
		kind:     kind,
		priority: priority,
		state:    Dormant,
		monitors: make(map[MonitorKey]Value),
		dials:    make(map[DialKey]Value),
	}
}

func (b *Base) ID() ID {
	return b.id
}

func (b *Base) Name() string {
	return b.name
}

func (b *Base) Kind() Kind {
	return b.kind
}

func (b *Base) Priority() int {
	return b.priority
}

func (b *Base) State() State {
	return b.state
}

func (b *Base) Parent() ID {
	return b.parent
}

func (b *Base) IsRoot() bool {
	return !b.parent.Valid()
}

// Serial is the creation order, used to break priority ties.
func (b *Base) Serial() uint64 {
	return b.serial
}

func (b *Base) Monitor(key MonitorKey) (Value, bool) {
	v, ok := b.monitors[key]
	return v, ok
}

// SetMonitor publishes an output value. Called by the entity itself.
func (b *Base) SetMonitor(key MonitorKey, value Value) {
	if b.monitors == nil {
		b.monitors = make(map[MonitorKey]Value)
	}
	b.monitors[key] = value
}

func (b *Base) Dial(key DialKey) (Value, bool) {
	v, ok := b.dials[key]
	return v, ok
}

func (b *Base) SetDial(key DialKey, value Value) {
	if b.dials == nil {
		b.dials = make(map[DialKey]Value)
	}
	b.dials[key] = value
}

func (b *Base) ClearDial(key DialKey) {
	delete(b.dials, key)
}

func (b *Base) SetIDWhenCreate(id ID, parent ID, serial uint64, name string) {
	b.id = id
	b.parent = parent
	b.serial = serial
	b.name = name
}

func (b *Base) SetPriorityWhenCreate(priority int) {
	b.priority = priority
}

func (b *Base) SetState(state State) {
	b.state = state
}

func (b *Base) OnCreate() {}

func (b *Base) OnDestroy() error {
	return nil
}
