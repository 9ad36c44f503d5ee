package compose

// node is one mounted tree position. The tree is a flat map from NodeKey to
// node; children and parent are referenced by key, never by pointer.
type node struct {
	key      NodeKey
	parent   NodeKey
	depth    int
	children []NodeKey

	// payload is the user data created by Init on first visit and mutated in
	// place by Update afterwards. Group nodes carry no payload.
	payload    any
	hasPayload bool
}

// group is the memoization record backing one CreateNode call: the inputs the
// node was last executed with, compared by the caller's predicate to decide
// skip versus update on the next visit.
type group struct {
	lastInput any
}

// composable re-runs a node's content in place during an incremental pass.
type composable func()
