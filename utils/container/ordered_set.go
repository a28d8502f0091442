package container

// OrderedSet is a set that iterates in insertion order.
type OrderedSet[K comparable] struct {
	keys  []K
	index map[K]int
}

func NewOrderedSet[K comparable]() *OrderedSet[K] {
	return &OrderedSet[K]{
		keys:  make([]K, 0),
		index: make(map[K]int),
	}
}

func (s *OrderedSet[K]) Len() int {
	return len(s.keys)
}

// Add inserts key at the end and reports whether it was absent.
func (s *OrderedSet[K]) Add(key K) bool {
	if _, ok := s.index[key]; ok {
		return false
	}
	s.index[key] = len(s.keys)
	s.keys = append(s.keys, key)
	return true
}

// Remove deletes key keeping the order of the others and reports whether it was present.
func (s *OrderedSet[K]) Remove(key K) bool {
	i, ok := s.index[key]
	if !ok {
		return false
	}
	delete(s.index, key)
	copy(s.keys[i:], s.keys[i+1:])
	s.keys = s.keys[:len(s.keys)-1]
	for j := i; j < len(s.keys); j++ {
		s.index[s.keys[j]] = j
	}
	return true
}

// Keys returns the keys in insertion order. The slice must not be modified.
func (s *OrderedSet[K]) Keys() []K {
	return s.keys
}

// Drain returns the keys in insertion order and empties the set.
func (s *OrderedSet[K]) Drain() []K {
	keys := s.keys
	s.keys = make([]K, 0, len(keys))
	s.index = make(map[K]int, len(keys))
	return keys
}

func (s *OrderedSet[K]) Clear() {
	s.keys = s.keys[:0]
	clear(s.index)
}
