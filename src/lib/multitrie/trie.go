package multitrie

import (
	"fmt"

	"gitlab.com/pnathan/tagdex/src/lib/utility"
)

// Trie is a multi-key index from strings to values of type V.
//
// Value identity is == on V, for pointer types that is pointer identity.
// Use New to create a Trie, the zero value is not usable.
type Trie[V comparable] struct {
	root *node[V]

	// entries maps every stored value to its shared mark wrapper.
	entries map[V]*entry[V]

	// epoch only grows. Before a query starts it is greater than every
	// mark written so far.
	epoch uint64

	stack utility.Stack[*node[V]]

	// acc is the accumulator reused by all queries.
	acc []*entry[V]

	nodes int
	refs  int
}

// Stats describes the size of a Trie.
type Stats struct {
	Nodes      int    `json:"nodes"`
	Values     int    `json:"values"`
	References int    `json:"references"`
	Epoch      uint64 `json:"epoch"`
}

func New[V comparable]() *Trie[V] {
	return &Trie[V]{
		root:    &node[V]{},
		entries: map[V]*entry[V]{},
		epoch:   1,
		nodes:   1,
	}
}

// Add indexes v under every key. The empty key indexes v at the root.
//
// Adding v again under a key it already occupies is a no-op for that key.
// Add fails with ErrInvalidValue for nil references and values that can not
// be compared, and with ErrInvalidIndex when keys is nil.
func (t *Trie[V]) Add(v V, keys ...string) error {
	if err := checkValue(v); err != nil {
		return err
	}
	if keys == nil {
		return fmt.Errorf("%w: no keys", ErrInvalidIndex)
	}
	if len(keys) == 0 {
		return nil
	}

	e := t.entries[v]
	if e == nil {
		e = &entry[V]{val: v}
		t.entries[v] = e
	}

	for _, key := range keys {
		if t.extend(key).push(e) {
			t.refs++
		}
	}
	return nil
}

// Find returns the values indexed exactly under key, in insertion order.
// The empty key yields an empty result.
func (t *Trie[V]) Find(key string) []V {
	if key == "" {
		return []V{}
	}
	n := t.seek(key)
	if n == nil {
		return []V{}
	}
	return materialize(n.values)
}

// FindAny returns the values indexed under at least one of keys, each once.
func (t *Trie[V]) FindAny(keys []string) []V {
	if len(keys) == 0 {
		return []V{}
	}

	epoch := t.epoch
	acc := t.acc[:0]
	for _, key := range keys {
		if n := t.seek(key); n != nil {
			acc = union(n, acc, epoch, epoch)
		}
	}
	// one shared dedup pass for all keys
	t.epoch++

	return t.collect(acc)
}

// FindAll returns the values indexed under every one of keys.
func (t *Trie[V]) FindAll(keys []string) []V {
	if len(keys) == 0 {
		return []V{}
	}

	n := t.seek(keys[0])
	if n == nil {
		return []V{}
	}

	epoch := t.epoch
	acc := union(n, t.acc[:0], epoch, epoch)

	for _, key := range keys[1:] {
		if len(acc) == 0 {
			break
		}
		if n = t.seek(key); n == nil {
			acc = acc[:0]
			break
		}
		acc = intersect(n, acc[:0], epoch, epoch+1)
		epoch++
	}
	t.epoch = epoch + 1

	return t.collect(acc)
}

// FindPrefix returns the values indexed under key or under any key having
// key as a prefix, each once. The empty key yields an empty result.
func (t *Trie[V]) FindPrefix(key string) []V {
	if key == "" {
		return []V{}
	}
	n := t.seek(key)
	if n == nil {
		return []V{}
	}

	epoch := t.epoch
	acc := t.walk(union[V], n, t.acc[:0], epoch, epoch)
	t.epoch++

	return t.collect(acc)
}

// FindPrefixAny is FindAny with every key expanded to its subtree.
func (t *Trie[V]) FindPrefixAny(keys []string) []V {
	if len(keys) == 0 {
		return []V{}
	}

	epoch := t.epoch
	acc := t.acc[:0]
	for _, key := range keys {
		if n := t.seek(key); n != nil {
			acc = t.walk(union[V], n, acc, epoch, epoch)
		}
	}
	t.epoch++

	return t.collect(acc)
}

// FindPrefixAll returns the values that, for every one of keys, are indexed
// under that key or a key extending it.
func (t *Trie[V]) FindPrefixAll(keys []string) []V {
	if len(keys) == 0 {
		return []V{}
	}

	n := t.seek(keys[0])
	if n == nil {
		return []V{}
	}

	epoch := t.epoch
	acc := t.walk(union[V], n, t.acc[:0], epoch, epoch)

	for _, key := range keys[1:] {
		if len(acc) == 0 {
			break
		}
		if n = t.seek(key); n == nil {
			acc = acc[:0]
			break
		}
		acc = t.walk(intersect[V], n, acc[:0], epoch, epoch+1)
		epoch++
	}
	t.epoch = epoch + 1

	return t.collect(acc)
}

// Len returns the number of distinct values stored.
func (t *Trie[V]) Len() int {
	return len(t.entries)
}

// Epoch returns the epoch the next query will start with.
func (t *Trie[V]) Epoch() uint64 {
	return t.epoch
}

func (t *Trie[V]) Stats() Stats {
	return Stats{
		Nodes:      t.nodes,
		Values:     len(t.entries),
		References: t.refs,
		Epoch:      t.epoch,
	}
}

// collect keeps the accumulator for reuse and copies the values out.
func (t *Trie[V]) collect(acc []*entry[V]) []V {
	t.acc = acc[:0]
	return materialize(acc)
}

func materialize[V comparable](es []*entry[V]) []V {
	out := make([]V, len(es))
	for i, e := range es {
		out[i] = e.val
	}
	return out
}
