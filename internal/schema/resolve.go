package schema

import (
	"strings"

	errors "gopkg.in/src-d/go-errors.v1"
)

var (
	ErrEmptyPath        = errors.NewKind("empty schema path")
	ErrUnknownType      = errors.NewKind("unknown type %q")
	ErrUnknownProperty  = errors.NewKind("unknown property %q on %s")
	ErrNotTraversable   = errors.NewKind("property %q of %s cannot be traversed")
	ErrIncompatibleType = errors.NewKind("type %s does not derive from %s required by property %q")
	ErrCyclicType       = errors.NewKind("type %s has a cyclic supertype chain")
)

// ResolvePath resolves a slash separated property path like
// "consistsOfBuildingPart/BuildingPart/measuredHeight" relative to root.
//
// After a feature or complex property the next step may name a subtype of the
// property's declared target. Otherwise the declared target is used and the
// step is looked up as one of its properties.
func (m *Mapping) ResolvePath(root *Type, expr string) (*Path, error) {
	var steps []string
	for _, s := range strings.Split(expr, "/") {
		if s = strings.TrimSpace(s); s != "" {
			steps = append(steps, s)
		}
	}
	if len(steps) == 0 {
		return nil, ErrEmptyPath.New()
	}

	head := NewNode(root)
	tail := head
	cur := root

	for i := 0; i < len(steps); {
		prop := cur.Property(steps[i])
		if prop == nil {
			return nil, ErrUnknownProperty.New(steps[i], cur.Name)
		}
		tail = tail.SetChild(NewNode(prop))
		i++

		if i == len(steps) {
			break
		}
		if !prop.Kind.IsTypeProperty() || prop.Target == nil {
			return nil, ErrNotTraversable.New(prop.Name, cur.Name)
		}

		next := prop.Target
		if t := m.Get(steps[i]); t != nil && prop.Target.Property(steps[i]) == nil {
			if !t.IsSubtypeOf(prop.Target) {
				return nil, ErrIncompatibleType.New(t.Name, prop.Target.Name, prop.Name)
			}
			next = t
			i++
		}

		tail = tail.SetChild(NewNode(next))
		cur = next
	}

	return NewPath(head), nil
}
