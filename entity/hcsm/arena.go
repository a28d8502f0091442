package hcsm

import (
	"github.com/tsinghua-fib-lab/traffic-hcsm/entity"
	"github.com/tsinghua-fib-lab/traffic-hcsm/utils/container"
)

type slot struct {
	generation uint32
	allocated  bool
	e          entity.IEntity
}

// arena is a fixed-size slot table with generation-checked handles.
// Freed slots are reissued FIFO so a just-freed index is not reused at once.
type arena struct {
	slots []slot
	free  *container.Queue[int32]
}

func newArena(capacity int) *arena {
	a := &arena{
		slots: make([]slot, capacity),
		free:  container.NewQueue[int32](capacity),
	}
	for i := range a.slots {
		a.slots[i].generation = 1
		a.free.Enqueue(int32(i))
	}
	return a
}

func (a *arena) capacity() int {
	return len(a.slots)
}

func (a *arena) freeCount() int {
	return a.free.Len()
}

func (a *arena) alloc() (entity.ID, bool) {
	index, ok := a.free.TryDequeue()
	if !ok {
		return entity.NilID, false
	}
	s := &a.slots[index]
	s.allocated = true
	return entity.MakeID(index, s.generation), true
}

func (a *arena) slot(id entity.ID) *slot {
	index := id.Index()
	if !id.Valid() || index < 0 || int(index) >= len(a.slots) {
		return nil
	}
	s := &a.slots[index]
	if !s.allocated || s.generation != id.Generation() {
		return nil
	}
	return s
}

func (a *arena) set(id entity.ID, e entity.IEntity) {
	if s := a.slot(id); s != nil {
		s.e = e
	}
}

func (a *arena) get(id entity.ID) (entity.IEntity, bool) {
	s := a.slot(id)
	if s == nil || s.e == nil {
		return nil, false
	}
	return s.e, true
}

// release frees the slot and invalidates every handle issued for it.
func (a *arena) release(id entity.ID) bool {
	s := a.slot(id)
	if s == nil {
		return false
	}
	s.e = nil
	s.allocated = false
	s.generation++
	if s.generation == 0 {
		s.generation = 1
	}
	a.free.Enqueue(id.Index())
	return true
}

// each visits the stored entities in slot order.
func (a *arena) each(f func(e entity.IEntity) bool) {
	for i := range a.slots {
		if e := a.slots[i].e; e != nil {
			if !f(e) {
				return
			}
		}
	}
}
