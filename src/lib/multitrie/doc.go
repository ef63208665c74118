// Package multitrie implements an in-memory, code point indexed trie where
// every stored value may be indexed under any number of keys, and where a
// query may combine several keys as a union (any) or an intersection (all),
// either exactly or by prefix.
//
// Results are deduplicated without allocating a visited set per query.
// Each distinct stored value is wrapped in a trie-owned entry carrying an
// epoch mark; a query compares marks against its own epoch numbers and the
// trie's epoch counter only ever grows, so stale marks never collide with a
// query in flight.
//
// A Trie is not safe for concurrent use. Queries mutate the epoch counter
// and the marks, so even two concurrent readers must be serialized by the
// caller.
package multitrie
