package compose

// Recomposer drives incremental passes over the tree produced by Compose.
// All access is single-threaded; the Recomposer and any State handles derived
// from its tree must be used from one goroutine.
type Recomposer struct {
	c *Composer
}

// Recompose re-executes the subtrees reachable from the dirty set, ancestors
// before descendants, each node at most once. It is a no-op when nothing is
// dirty. On a fault the pass rolls back in its entirety and the tree keeps
// the state committed by earlier passes.
func (r *Recomposer) Recompose() error {
	c := r.c
	if len(c.dirtyStates) == 0 && len(c.dirtyNodes) == 0 {
		return nil
	}
	return c.runPass(PassIncremental, func() {
		for _, key := range c.dirtyPassTargets() {
			if !c.isDirty(key) {
				// Cleared by an ancestor's re-execution earlier in the walk.
				continue
			}
			if c.detached(key) {
				delete(c.dirtyNodes, key)
				continue
			}
			run := c.composables[key]
			if run == nil {
				delete(c.dirtyNodes, key)
				continue
			}
			run()
		}
	})
}

// RootKey returns the identity of the root node.
func (r *Recomposer) RootKey() NodeKey {
	return r.c.root
}

// Children returns a copy of the ordered child keys of key.
func (r *Recomposer) Children(key NodeKey) []NodeKey {
	n := r.c.nodes[key]
	if n == nil {
		return nil
	}
	return append([]NodeKey(nil), n.children...)
}

// Payload returns the payload stored at key. The returned value is the same
// pointer handed to Update, so callers can check payload identity across
// passes. The second result is false for group nodes and unknown keys.
func (r *Recomposer) Payload(key NodeKey) (any, bool) {
	n := r.c.nodes[key]
	if n == nil || !n.hasPayload {
		return nil, false
	}
	return n.payload, true
}

// NodeCount reports the number of mounted nodes, the root included.
func (r *Recomposer) NodeCount() int {
	return len(r.c.nodes)
}

// Context returns the instance-wide context value supplied to Compose.
func (r *Recomposer) Context() any {
	return r.c.context
}

// SetContext replaces the instance-wide context value. It does not dirty any
// node; collaborators that depend on it should re-read it when re-executed.
func (r *Recomposer) SetContext(ctx any) {
	r.c.context = ctx
}

// LastTrace returns the trace of the most recent committed pass. It reports
// false until a pass commits with tracing enabled via WithTracing.
func (r *Recomposer) LastTrace() (PassTrace, bool) {
	if r.c.lastTrace == nil {
		return PassTrace{}, false
	}
	return *r.c.lastTrace, true
}
