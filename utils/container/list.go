package container

import (
	"fmt"
	"log"
	"sort"
)

// IHasVAndLength is what the list needs to know about a moving element.
type IHasVAndLength interface {
	V() float64      // speed (m/s)
	Length() float64 // body length (m)
}

// ListNode is a node of List keyed by S (distance along a lane or corridor).
type ListNode[T IHasVAndLength, E any] struct {
	parent     *List[T, E]
	prev, next *ListNode[T, E]
	S          float64
	Value      T
	Extra      E
}

func (n *ListNode[T, E]) String() string {
	return fmt.Sprintf("Node{Key:%v, Value:%+v, Extra:%+v}", n.S, n.Value, n.Extra)
}

func (n *ListNode[T, E]) Prev() *ListNode[T, E] {
	return n.prev
}

func (n *ListNode[T, E]) Next() *ListNode[T, E] {
	return n.next
}

// L is shorthand for n.Value.Length().
func (n *ListNode[T, E]) L() float64 {
	return n.Value.Length()
}

// InsertBefore links add in front of n.
func (n *ListNode[T, E]) InsertBefore(add *ListNode[T, E]) {
	if add.parent != nil {
		log.Panic("insert node who already in list")
	}
	add.parent = n.parent
	add.next = n
	add.prev = n.prev
	n.prev = add
	if add.prev != nil {
		add.prev.next = add
	} else {
		add.parent.head = add
	}
	n.parent.length++
}

// InsertAfter links add behind n.
func (n *ListNode[T, E]) InsertAfter(add *ListNode[T, E]) {
	if add.parent != nil {
		log.Panic("insert node who already in list")
	}
	add.parent = n.parent
	add.prev = n
	add.next = n.next
	n.next = add
	if add.next != nil {
		add.next.prev = add
	} else {
		add.parent.tail = add
	}
	n.parent.length++
}

// List is a doubly linked list kept in ascending S order by its callers.
// The head is the element furthest back, the tail the one furthest ahead.
type List[T IHasVAndLength, E any] struct {
	ID         string
	head, tail *ListNode[T, E]
	length     int
}

func (l *List[T, E]) String() string {
	return fmt.Sprintf("List{ID:%v}", l.ID)
}

func (l *List[T, E]) Len() int {
	return l.length
}

// PushBack appends add as the new tail.
func (l *List[T, E]) PushBack(add *ListNode[T, E]) {
	if add.parent != nil {
		log.Panic("push back node who already in list")
	}
	add.next = nil
	add.prev = nil
	if l.tail == nil {
		add.parent = l
		l.head = add
		l.tail = add
		l.length++
	} else {
		l.tail.InsertAfter(add)
	}
}

// First returns the node furthest back, or nil.
func (l *List[T, E]) First() *ListNode[T, E] {
	return l.head
}

// Last returns the node furthest ahead, or nil.
func (l *List[T, E]) Last() *ListNode[T, E] {
	return l.tail
}

// Merge inserts adds keeping ascending S. Nodes with equal S keep their
// relative order from adds and go behind existing nodes with the same S.
func (l *List[T, E]) Merge(adds []*ListNode[T, E]) {
	sort.SliceStable(adds, func(i, j int) bool { return adds[i].S < adds[j].S })
	node := l.head
	for _, add := range adds {
		for node != nil && node.S <= add.S {
			node = node.next
		}
		if node != nil {
			node.InsertBefore(add)
		} else {
			l.PushBack(add)
		}
	}
}
