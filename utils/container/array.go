package container

import (
	"sync"
)

// IIncrementalItem is an element that remembers its own slot in an IncrementalArray.
type IIncrementalItem interface {
	Index() int
	SetIndex(index int)
}

// IncrementalItemBase can be embedded to satisfy IIncrementalItem.
type IncrementalItemBase struct {
	index int
}

func (b *IncrementalItemBase) Index() int {
	return b.index
}

func (b *IncrementalItemBase) SetIndex(index int) {
	b.index = index
}

// IncrementalArray is an unordered array whose additions and removals are
// buffered and only applied by Prepare.
// Readers iterating Data() between two Prepare calls always see the same
// population, which is what lets entities be created or deleted while the
// array is being walked.
type IncrementalArray[T IIncrementalItem] struct {
	data        []T
	add         []T
	remove      []T
	addMutex    sync.Mutex
	removeMutex sync.Mutex
}

func NewIncrementalArray[T IIncrementalItem]() *IncrementalArray[T] {
	return &IncrementalArray[T]{
		data:   make([]T, 0),
		add:    make([]T, 0),
		remove: make([]T, 0),
	}
}

// Len returns the number of applied elements.
func (a *IncrementalArray[T]) Len() int {
	return len(a.data)
}

// Data returns the applied elements. The slice must not be modified.
func (a *IncrementalArray[T]) Data() []T {
	return a.data
}

// Pending returns the number of buffered additions and removals.
func (a *IncrementalArray[T]) Pending() (adds, removes int) {
	return len(a.add), len(a.remove)
}

// Add buffers value for insertion at the next Prepare.
func (a *IncrementalArray[T]) Add(value T) {
	a.addMutex.Lock()
	defer a.addMutex.Unlock()
	a.add = append(a.add, value)
}

// Remove buffers value for removal at the next Prepare. value must currently be applied.
func (a *IncrementalArray[T]) Remove(value T) {
	a.removeMutex.Lock()
	defer a.removeMutex.Unlock()
	a.remove = append(a.remove, value)
}

// Prepare applies every buffered addition and removal.
// Removed slots are refilled with new elements first; any remaining holes are
// filled by moving elements from the tail, so the array stays dense and every
// element's index stays correct.
func (a *IncrementalArray[T]) Prepare() {
	if len(a.add) >= len(a.remove) {
		for i, x := range a.remove {
			ind := x.Index()
			a.data[ind] = a.add[i]
			a.data[ind].SetIndex(ind)
		}
		reused := len(a.remove)
		for i, x := range a.add[reused:] {
			x.SetIndex(len(a.data) + i)
		}
		a.data = append(a.data, a.add[reused:]...)
	} else {
		for i, x := range a.add {
			ind := a.remove[i].Index()
			a.data[ind] = x
			a.data[ind].SetIndex(ind)
		}
		filled := len(a.add)
		holes := len(a.remove) - filled
		newLen := len(a.data) - holes
		for i := 0; i < holes; i++ {
			ind := a.remove[filled+i].Index()
			a.data[ind] = a.data[newLen+i]
			a.data[ind].SetIndex(ind)
		}
		clear(a.data[newLen:])
		a.data = a.data[:newLen]
	}

	a.add = []T{}
	a.remove = []T{}
}
