package settings

import (
	"github.com/muscle3/muscle3-go/muscle3errors"
	"github.com/muscle3/muscle3-go/ref"
)

// Map is a flat mapping of Reference (by canonical string) to Value,
// the "encoded mapping of Reference→value" referenced throughout spec.md
// §6 as the settings overlay wire layout.
type Map map[string]Value

// Clone returns a shallow copy of m.
func (m Map) Clone() Map {
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// MapEqual reports whether two Maps carry the same keys and equal Values —
// used to enforce the parallel-universe invariant (spec.md §4.7).
func MapEqual(a, b Map) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok || !Equal(va, vb) {
			return false
		}
	}
	return true
}

// Store is the two-layer settings mapping described in spec.md §4.2: an
// immutable base layer loaded once from configuration, and a mutable
// overlay layer written on each F_INIT receive.
type Store struct {
	base    Map
	overlay Map
}

// NewStore builds a Store from an immutable base layer. base is copied; the
// overlay starts out empty.
func NewStore(base Map) *Store {
	return &Store{
		base:    base.Clone(),
		overlay: make(Map),
	}
}

// SetOverlay replaces the overlay layer wholesale, e.g. after receiving an
// F_INIT message's settings overlay. Unconditional: overlay writes always
// succeed.
func (s *Store) SetOverlay(overlay Map) {
	s.overlay = overlay.Clone()
}

// Overlay returns a copy of the current overlay layer.
func (s *Store) Overlay() Map {
	return s.overlay.Clone()
}

// Base returns a copy of the base layer. There is no corresponding setter:
// base is immutable once the Store is constructed.
func (s *Store) Base() Map {
	return s.base.Clone()
}

// Get resolves parameterName for instance by hierarchical specificity
// search (spec.md §4.2): for instance = a.b.c and name = p, try
// a.b.c.p, then a.b.p, then a.p, then p — overlay before base at each
// level — and return the first hit.
func (s *Store) Get(instance ref.Reference, parameterName ref.Reference) (Value, error) {
	for i := instance.Len(); i >= 0; i-- {
		candidate := instance.Prefix(i).Concat(parameterName)
		key := candidate.String()
		if v, ok := s.overlay[key]; ok {
			return v, nil
		}
		if v, ok := s.base[key]; ok {
			return v, nil
		}
	}
	return Value{}, muscle3errors.ParameterNotFoundErrorf(
		"parameter %q not set for instance %q", parameterName, instance)
}

// GetTyped is Get plus a type-tag check, raising CodeTypeMismatch on
// disagreement, mirrored on original_source/settings_manager.py's
// get_parameter(..., typ=...).
func (s *Store) GetTyped(instance ref.Reference, parameterName ref.Reference, typ TypeTag) (Value, error) {
	v, err := s.Get(instance, parameterName)
	if err != nil {
		return Value{}, err
	}
	if !HasType(v, typ) {
		return Value{}, muscle3errors.TypeMismatchErrorf(
			"parameter %q has type %s, expected %s", parameterName, v.Tag, typ)
	}
	return v, nil
}
