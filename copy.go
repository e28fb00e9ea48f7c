package lahc

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/copystructure"
)

// CopyStrategy names a built-in way of snapshotting a state.
type CopyStrategy string

const (
	// CopyDeep copies all nested substructure. States implementing Cloner are
	// copied with Clone; otherwise every struct reachable from the state type
	// must have only exported fields.
	CopyDeep CopyStrategy = "deep"
	// CopyShallow copies only the top-level container: the backing array of a
	// slice, the buckets of a map or the struct behind a pointer.
	CopyShallow CopyStrategy = "shallow"
	// CopyIdentity performs no copy. The caller asserts that states are never
	// mutated after they are produced.
	CopyIdentity CopyStrategy = "identity"
	// CopyMethod delegates to the state's Clone method. See Cloner.
	CopyMethod CopyStrategy = "method"
)

// CopyFunc produces an independent snapshot of a state.
type CopyFunc[S any] func(S) (S, error)

// Cloner is implemented by states that know how to copy themselves.
type Cloner[S any] interface {
	Clone() S
}

// ParseCopyStrategy converts a configuration string into a CopyStrategy. The
// empty string selects CopyDeep.
func ParseCopyStrategy(s string) (CopyStrategy, error) {
	switch CopyStrategy(s) {
	case "", CopyDeep:
		return CopyDeep, nil
	case CopyShallow, CopyIdentity, CopyMethod:
		return CopyStrategy(s), nil
	default:
		return "", &ConfigError{Field: "CopyStrategy", Reason: fmt.Sprintf("unknown strategy %q", s)}
	}
}

// CopierFor returns the copy function implementing a built-in strategy.
func CopierFor[S any](strategy CopyStrategy) (CopyFunc[S], error) {
	switch strategy {
	case "", CopyDeep:
		return deepCopier[S]()
	case CopyShallow:
		return shallowCopy[S], nil
	case CopyIdentity:
		return func(s S) (S, error) { return s, nil }, nil
	case CopyMethod:
		return methodCopy[S], nil
	default:
		return nil, &ConfigError{Field: "CopyStrategy", Reason: fmt.Sprintf("unknown strategy %q", strategy)}
	}
}

// deepCopier picks Clone for Cloner states and copystructure otherwise.
// copystructure leaves unexported fields zeroed without an error, so state
// types that have any are rejected up front.
func deepCopier[S any]() (CopyFunc[S], error) {
	t := reflect.TypeFor[S]()
	if t.Implements(reflect.TypeFor[Cloner[S]]()) {
		return cloneCopy[S], nil
	}
	if err := checkExported(t, make(map[reflect.Type]bool)); err != nil {
		return nil, err
	}
	return deepCopy[S], nil
}

// checkExported walks the types reachable from t and fails on the first
// struct with an unexported field. Interface values are only known at run
// time and are not inspected.
func checkExported(t reflect.Type, seen map[reflect.Type]bool) error {
	if seen[t] {
		return nil
	}
	seen[t] = true
	if _, ok := copystructure.Copiers[t]; ok {
		return nil
	}

	switch t.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Array:
		return checkExported(t.Elem(), seen)
	case reflect.Map:
		if err := checkExported(t.Key(), seen); err != nil {
			return err
		}
		return checkExported(t.Elem(), seen)
	case reflect.Struct:
		for i := range t.NumField() {
			f := t.Field(i)
			if !f.IsExported() {
				return &ConfigError{
					Field:  "CopyStrategy",
					Reason: fmt.Sprintf("deep copy cannot reach unexported field %s.%s; implement Cloner or set Problem.Copy", t, f.Name),
				}
			}
			if err := checkExported(f.Type, seen); err != nil {
				return err
			}
		}
	}
	return nil
}

// cloneCopy is methodCopy for a type known to implement Cloner. Nil pointers
// are passed through rather than dereferenced by Clone.
func cloneCopy[S any](s S) (S, error) {
	if rv := reflect.ValueOf(any(s)); !rv.IsValid() || (rv.Kind() == reflect.Pointer && rv.IsNil()) {
		return s, nil
	}
	return any(s).(Cloner[S]).Clone(), nil
}

func deepCopy[S any](s S) (S, error) {
	if any(s) == nil {
		return s, nil
	}
	c, err := copystructure.Copy(s)
	if err != nil {
		var zero S
		return zero, fmt.Errorf("deep copy: %w", err)
	}
	out, ok := c.(S)
	if !ok {
		var zero S
		return zero, fmt.Errorf("deep copy: got %T, want %T", c, s)
	}
	return out, nil
}

func shallowCopy[S any](s S) (S, error) {
	if any(s) == nil {
		return s, nil
	}
	rv := reflect.ValueOf(any(s))
	var c reflect.Value
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return s, nil
		}
		c = reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		reflect.Copy(c, rv)
	case reflect.Map:
		if rv.IsNil() {
			return s, nil
		}
		c = reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			c.SetMapIndex(iter.Key(), iter.Value())
		}
	case reflect.Pointer:
		if rv.IsNil() {
			return s, nil
		}
		c = reflect.New(rv.Type().Elem())
		c.Elem().Set(rv.Elem())
	default:
		// Arrays, structs and scalars are already copied by assignment.
		return s, nil
	}
	return c.Interface().(S), nil
}

func methodCopy[S any](s S) (S, error) {
	c, ok := any(s).(Cloner[S])
	if !ok {
		var zero S
		return zero, &UnimplementedError{Capability: fmt.Sprintf("Clone on %T", s)}
	}
	return c.Clone(), nil
}
