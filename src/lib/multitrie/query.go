package multitrie

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	ErrInvalidValue = errors.New("must supply a non-nil, comparable value to store")
	ErrInvalidIndex = errors.New("must supply a string or slice of strings to index by")
)

// AddIndex is Add for an index of dynamic type, a string or a slice of
// strings ([]string or []any holding only strings).
func (t *Trie[V]) AddIndex(v V, index any) error {
	if err := checkValue(v); err != nil {
		return err
	}
	keys, ok := Keys(index)
	if !ok {
		return fmt.Errorf("%w: got %T", ErrInvalidIndex, index)
	}
	return t.Add(v, keys...)
}

// Query dispatches on the dynamic type of key: a string is looked up with
// Find, a slice of strings with FindAny. Anything else yields an empty
// result.
func (t *Trie[V]) Query(key any) []V {
	if s, ok := key.(string); ok {
		return t.Find(s)
	}
	keys, ok := Keys(key)
	if !ok {
		return []V{}
	}
	return t.FindAny(keys)
}

// QueryPrefix is Query for FindPrefix and FindPrefixAny.
func (t *Trie[V]) QueryPrefix(key any) []V {
	if s, ok := key.(string); ok {
		return t.FindPrefix(s)
	}
	keys, ok := Keys(key)
	if !ok {
		return []V{}
	}
	return t.FindPrefixAny(keys)
}

// Keys converts a dynamic index into a key list. A nil slice is not an
// index, an empty one is.
func Keys(index any) ([]string, bool) {
	switch x := index.(type) {
	case string:
		return []string{x}, true
	case []string:
		if x == nil {
			return nil, false
		}
		return x, true
	case []any:
		if x == nil {
			return nil, false
		}
		keys := make([]string, 0, len(x))
		for _, k := range x {
			s, ok := k.(string)
			if !ok {
				return nil, false
			}
			keys = append(keys, s)
		}
		return keys, true
	}
	return nil, false
}

// checkValue rejects nil references and dynamic values that can not be
// used as a map key.
func checkValue[V comparable](v V) error {
	rv := reflect.ValueOf(&v).Elem()
	if rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return fmt.Errorf("%w: nil", ErrInvalidValue)
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Map, reflect.Chan, reflect.Func, reflect.Slice:
		if rv.IsNil() {
			return fmt.Errorf("%w: nil %s", ErrInvalidValue, rv.Type())
		}
	}
	if !rv.Comparable() {
		return fmt.Errorf("%w: %s is not comparable", ErrInvalidValue, rv.Type())
	}
	return nil
}
