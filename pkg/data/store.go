package data

import (
	"sort"

	tserrors "github.com/albertsgarde/transformerscope/pkg/errors"
)

// Names reserved for values derived by the ranking step.
const (
	RankName          = "rank"
	RankedNeuronsName = "ranked_neurons"
)

// IsReserved reports whether name is reserved for derived values.
func IsReserved(name string) bool {
	return name == RankName || name == RankedNeuronsName
}

// Store maps names to values. Values are never replaced or removed.
// A Store is not safe for concurrent writers; once handed to a payload it
// is only read.
type Store struct {
	values map[string]Value
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{values: make(map[string]Value)}
}

// Add inserts a producer value. Reserved or existing names are rejected.
func (s *Store) Add(name string, v Value) error {
	if IsReserved(name) {
		return tserrors.DuplicateName(name).WithContext("reason", "reserved")
	}
	return s.put(name, v)
}

// PutDerived inserts one of the reserved derived values.
func (s *Store) PutDerived(name string, v Value) error {
	if !IsReserved(name) {
		return tserrors.ValidationErrorf(tserrors.ErrInvalidName, "%q is not a derived value name", name)
	}
	return s.put(name, v)
}

func (s *Store) put(name string, v Value) error {
	if v.IsZero() {
		return tserrors.ValidationErrorf(tserrors.ErrInvalidArgument, "value %q has no array", name)
	}
	if _, ok := s.values[name]; ok {
		return tserrors.DuplicateName(name)
	}
	s.values[name] = v
	return nil
}

// Get returns the value stored under name.
func (s *Store) Get(name string) (Value, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Len returns the number of values.
func (s *Store) Len() int { return len(s.values) }

// Names returns all value names in sorted order.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.values))
	for name := range s.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
