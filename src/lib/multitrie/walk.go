package multitrie

// seek follows the code points of key from the root.
// It returns nil as soon as a transition is missing.
func (t *Trie[V]) seek(key string) *node[V] {
	n := t.root
	for _, r := range key {
		if n = n.child(r); n == nil {
			return nil
		}
	}
	return n
}

// extend is seek with missing transitions created on demand.
func (t *Trie[V]) extend(key string) *node[V] {
	n := t.root
	for _, r := range key {
		var created bool
		if n, created = n.extend(r); created {
			t.nodes++
		}
	}
	return n
}

// walk folds start and all of its descendants into acc.
//
// The traversal is iterative with the instance stack, deep keys never grow
// the goroutine stack. Children are visited in map order, prefix results
// are sets. walk must not be re-entered while in progress.
func (t *Trie[V]) walk(fn foldFunc[V], start *node[V], acc []*entry[V], match, mark uint64) []*entry[V] {
	stack := &t.stack
	stack.Clear()
	stack.Push(start)

	for stack.Len() > 0 {
		n, _ := stack.Pop()
		for _, c := range n.children {
			stack.Push(c)
		}
		if len(n.values) == 0 {
			continue
		}
		acc = fn(n, acc, match, mark)
	}
	return acc
}
