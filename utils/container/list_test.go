package container_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/traffic-hcsm/utils/container"
)

type testData struct {
	v float64
}

func (t testData) V() float64 {
	return t.v
}

func (t testData) Length() float64 {
	return 4.5
}

type testNode = container.ListNode[testData, struct{}]

func keys(l *container.List[testData, struct{}]) []float64 {
	out := make([]float64, 0, l.Len())
	for n := l.First(); n != nil; n = n.Next() {
		out = append(out, n.S)
	}
	return out
}

func TestListInit(t *testing.T) {
	l := &container.List[testData, struct{}]{}
	assert.Nil(t, l.First())
	assert.Nil(t, l.Last())
	assert.Equal(t, 0, l.Len())
	assert.Empty(t, keys(l))
}

func TestListOperation(t *testing.T) {
	l := &container.List[testData, struct{}]{}

	// ^, 1, ^
	n1 := &testNode{S: 1}
	l.PushBack(n1)
	// ^, 1, 2, ^
	n2 := &testNode{S: 2}
	l.PushBack(n2)
	// ^, 3, 1, 2, ^
	n3 := &testNode{S: 3}
	n1.InsertBefore(n3)
	// ^, 3, 1, 4, 2, ^
	n4 := &testNode{S: 4, Value: testData{v: 7}}
	n2.InsertBefore(n4)
	assert.Equal(t, 4, l.Len())
	assert.Equal(t, []float64{3, 1, 4, 2}, keys(l))

	n := l.First()
	assert.Equal(t, n3, n)
	n = n.Next()
	assert.Equal(t, n1, n)
	assert.Equal(t, n, n.Next().Prev())
	assert.Equal(t, n, n.Prev().Next())
	n = n.Next()
	assert.Equal(t, n4, n)
	assert.Equal(t, 7.0, n.Value.V())
	assert.Equal(t, 4.5, n.L())
	assert.Equal(t, n2, l.Last())
	assert.Nil(t, l.Last().Next())
	assert.Panics(t, func() { l.PushBack(n4) })
}

func TestListMerge(t *testing.T) {
	l := &container.List[testData, struct{}]{}
	l.PushBack(&testNode{S: 2})
	l.PushBack(&testNode{S: 5})

	a := &testNode{S: 5}
	l.Merge([]*testNode{{S: 9}, {S: -3}, a, {S: 3}})
	assert.Equal(t, []float64{-3, 2, 3, 5, 5, 9}, keys(l))
	assert.Equal(t, 6, l.Len())
	// equal keys go behind existing nodes
	assert.Equal(t, a, l.Last().Prev())
	assert.Equal(t, 9.0, l.Last().S)
}

func TestListMergeIntoEmpty(t *testing.T) {
	l := &container.List[testData, struct{}]{}
	l.Merge([]*testNode{{S: 1}, {S: 0}})
	assert.Equal(t, []float64{0, 1}, keys(l))
	assert.Equal(t, 1.0, l.Last().S)
}
