package compose

// Scope is the per-position cursor handed to content closures. It mediates
// every read and write against node and state storage for the duration of one
// execution frame and must not be retained past the closure it was passed to.
type Scope struct {
	c *Composer
	f *frame
}

// Child composes a payload-less group node at the next positional identity.
// Groups carry no inputs, so their content re-executes whenever the parent
// does; use Memo or CreateNode when the subtree should be skippable.
func (s *Scope) Child(content func(*Scope)) {
	c, f := s.c, s.f
	key := c.nextChildKey(f)
	f.produced = append(f.produced, key)
	composeGroup(c, f.key, f.depth+1, key, content)
}

// Key composes a group whose identity comes from key instead of call order,
// keeping the subtree's payloads and state stable when siblings reorder. Keys
// must be unique among siblings within one pass.
func (s *Scope) Key(key string, content func(*Scope)) {
	s.Tag(key)
	s.Child(content)
}

// Tag forces an explicit identity on the next child composed in this scope,
// whether that child is a group, a CreateNode call, or a Memo call.
func (s *Scope) Tag(key string) {
	s.f.pendingKey = key
	s.f.hasPending = true
}

func composeGroup(c *Composer, parent NodeKey, depth int, key NodeKey, content func(*Scope)) {
	n, mounted := c.nodes[key]
	if mounted {
		if n.hasPayload {
			fault(&TypeMismatchError{Key: key, Want: "group", Got: typeName(n.payload)})
		}
	} else {
		n = &node{key: key, parent: parent, depth: depth}
		c.mount(n)
	}
	c.executeNode(n, content)
	c.composables[key] = func() { composeGroup(c, parent, depth, key, content) }
}
