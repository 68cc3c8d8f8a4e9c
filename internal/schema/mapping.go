package schema

import (
	"slices"
	"sync"
)

// Mapping is the in-memory schema mapping: every feature and complex type
// keyed by name and object class id.
type Mapping struct {
	mu      sync.RWMutex
	types   map[string]*Type
	byClass map[int]*Type
}

// NewMapping links supertypes and property targets by name and indexes the
// result. Types without a table inherit the table of their supertype, and
// every property records the type declaring it.
func NewMapping(types ...*Type) (*Mapping, error) {
	byName := make(map[string]*Type, len(types))
	for _, t := range types {
		byName[t.Name] = t
	}

	for _, t := range types {
		if t.Extends == nil && t.ExtendsName != "" {
			super, ok := byName[t.ExtendsName]
			if !ok {
				return nil, ErrUnknownType.New(t.ExtendsName)
			}
			t.Extends = super
		}
		for _, p := range t.Properties {
			p.Declarer = t
			if p.Target != nil || p.TargetName == "" {
				continue
			}
			target, ok := byName[p.TargetName]
			if !ok {
				return nil, ErrUnknownType.New(p.TargetName)
			}
			p.Target = target
		}
	}

	byClass := make(map[int]*Type, len(types))
	for _, t := range types {
		depth := 0
		for cur := t.Extends; cur != nil; cur = cur.Extends {
			if depth++; depth > len(types) {
				return nil, ErrCyclicType.New(t.Name)
			}
			if t.Table == "" {
				t.Schema, t.Table = cur.Schema, cur.Table
			}
		}
		if t.ObjectClassID != 0 {
			byClass[t.ObjectClassID] = t
		}
	}

	m := &Mapping{}
	m.mu.Lock()
	m.types = byName
	m.byClass = byClass
	m.mu.Unlock()

	return m, nil
}

func (m *Mapping) Get(name string) *Type {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.types[name]
}

// GetByObjectClass finds a type by its object class id.
func (m *Mapping) GetByObjectClass(id int) *Type {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byClass[id]
}

// TypeCount returns the number of loaded types.
func (m *Mapping) TypeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.types)
}

// Subtypes returns t and every type deriving from it, ordered by object class id.
func (m *Mapping) Subtypes(t *Type) []*Type {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Type
	for _, cand := range m.types {
		if cand.IsSubtypeOf(t) {
			result = append(result, cand)
		}
	}
	slices.SortFunc(result, func(a, b *Type) int { return a.ObjectClassID - b.ObjectClassID })
	return result
}

// ObjectClassIDs returns the object class ids of the concrete types that may
// appear as instances of t.
func (m *Mapping) ObjectClassIDs(t *Type) []int {
	var ids []int
	for _, st := range m.Subtypes(t) {
		if !st.Abstract && st.ObjectClassID != 0 {
			ids = append(ids, st.ObjectClassID)
		}
	}
	return ids
}

// FeatureTypes returns all concrete feature types ordered by object class id.
func (m *Mapping) FeatureTypes() []*Type {
	m.mu.RLock()
	var result []*Type
	for _, t := range m.types {
		if t.Feature && !t.Abstract {
			result = append(result, t)
		}
	}
	m.mu.RUnlock()

	slices.SortFunc(result, func(a, b *Type) int { return a.ObjectClassID - b.ObjectClassID })
	return result
}
