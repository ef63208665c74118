package multitrie

// foldFunc folds the values held at n into acc. match is the epoch a value
// must (or must not) carry to take part, mark is the epoch written to every
// value that lands in acc.
type foldFunc[V comparable] func(n *node[V], acc []*entry[V], match, mark uint64) []*entry[V]

// union appends every value of n not yet stamped with match.
//
// Called with match == mark, the first node contributing a value stamps it
// and every later node of the same pass skips it.
func union[V comparable](n *node[V], acc []*entry[V], match, mark uint64) []*entry[V] {
	for _, e := range n.values {
		if e.mark == match {
			continue
		}
		e.mark = mark
		acc = append(acc, e)
	}
	return acc
}

// intersect appends every value of n stamped with match, the survivors of
// the previous round, and restamps them with mark.
//
// The round driver truncates acc once per round, not per node, so a round
// may span many nodes of a subtree. A value already restamped in this round
// no longer carries match and is not appended twice.
func intersect[V comparable](n *node[V], acc []*entry[V], match, mark uint64) []*entry[V] {
	for _, e := range n.values {
		if e.mark != match {
			continue
		}
		e.mark = mark
		acc = append(acc, e)
	}
	return acc
}
