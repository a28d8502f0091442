package container

// Pool is a fixed-capacity set of reusable records addressed by index.
// Freed indices are reissued in FIFO order.
type Pool[T any] struct {
	records []T
	inUse   []bool
	free    *Queue[int]
	reset   func(*T)
}

// NewPool creates capacity records. reset, if not nil, is applied to a record
// when it is returned with Put.
func NewPool[T any](capacity int, reset func(*T)) *Pool[T] {
	p := &Pool[T]{
		records: make([]T, capacity),
		inUse:   make([]bool, capacity),
		free:    NewQueue[int](capacity),
		reset:   reset,
	}
	for i := 0; i < capacity; i++ {
		p.free.Enqueue(i)
	}
	return p
}

func (p *Pool[T]) Cap() int {
	return len(p.records)
}

// Available returns the number of free records.
func (p *Pool[T]) Available() int {
	return p.free.Len()
}

// Get takes a free record. ok is false when the pool is exhausted.
func (p *Pool[T]) Get() (index int, record *T, ok bool) {
	index, ok = p.free.TryDequeue()
	if !ok {
		return -1, nil, false
	}
	p.inUse[index] = true
	return index, &p.records[index], true
}

// At returns the record at index, or nil if it is not in use.
func (p *Pool[T]) At(index int) *T {
	if index < 0 || index >= len(p.records) || !p.inUse[index] {
		return nil
	}
	return &p.records[index]
}

// Put returns the record at index to the pool. Returning a free record is a no-op.
func (p *Pool[T]) Put(index int) {
	if index < 0 || index >= len(p.records) || !p.inUse[index] {
		return
	}
	if p.reset != nil {
		p.reset(&p.records[index])
	}
	p.inUse[index] = false
	p.free.Enqueue(index)
}
