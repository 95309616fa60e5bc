package platform

import "github.com/cuemby/dicc/pkg/types"

// Set is an ordered collection of platforms keyed by ID.
//
// Order is insertion order and is the order of preference handed to the
// executor. Putting an ID twice keeps its original position and replaces
// the platform.
type Set struct {
	ids  []int64
	byID map[int64]types.Platform
}

// NewSet creates an empty set
func NewSet() *Set {
	return &Set{byID: make(map[int64]types.Platform)}
}

// Put adds or replaces a platform
func (s *Set) Put(p types.Platform) {
	if _, exists := s.byID[p.ID]; !exists {
		s.ids = append(s.ids, p.ID)
	}
	s.byID[p.ID] = p
}

// Get returns the platform with the given ID
func (s *Set) Get(id int64) (types.Platform, bool) {
	p, ok := s.byID[id]
	return p, ok
}

// IDs returns a copy of the platform IDs in order
func (s *Set) IDs() []int64 {
	out := make([]int64, len(s.ids))
	copy(out, s.ids)
	return out
}

// Platforms returns cloned platforms in order
func (s *Set) Platforms() []types.Platform {
	out := make([]types.Platform, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.byID[id].Clone())
	}
	return out
}

// Map returns a cloned ID → platform map
func (s *Set) Map() map[int64]types.Platform {
	out := make(map[int64]types.Platform, len(s.byID))
	for id, p := range s.byID {
		out[id] = p.Clone()
	}
	return out
}

// Len returns the number of platforms
func (s *Set) Len() int {
	return len(s.ids)
}
