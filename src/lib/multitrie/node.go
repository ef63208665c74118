package multitrie

// entry wraps a stored value. It is shared by every node the value is
// indexed at. mark is the epoch of the query pass that last touched the
// value, zero means never marked.
type entry[V comparable] struct {
	val  V
	mark uint64
}

type node[V comparable] struct {
	children map[rune]*node[V]
	values   []*entry[V]
}

func (n *node[V]) child(r rune) *node[V] {
	return n.children[r]
}

// extend returns the child for r, creating it if missing. created reports
// whether a new node was allocated.
func (n *node[V]) extend(r rune) (c *node[V], created bool) {
	if c = n.children[r]; c != nil {
		return c, false
	}
	if n.children == nil {
		n.children = make(map[rune]*node[V], 1)
	}
	c = &node[V]{}
	n.children[r] = c
	return c, true
}

// push appends e to the value list unless it is already there.
// The scan is linear in the fan-in of this node only.
func (n *node[V]) push(e *entry[V]) bool {
	for _, x := range n.values {
		if x == e {
			return false
		}
	}
	n.values = append(n.values, e)
	return true
}
