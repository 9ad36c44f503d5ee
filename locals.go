package compose

// ProvideLocal publishes a named value on the node currently executing in s.
// Descendants resolve it with UseLocal; the nearest provider wins, so deeper
// nodes can shadow an ancestor's value. Provided names last until the node's
// next execution, which starts from an empty set. Locals are plain ambient
// values, not state cells: replacing one does not dirty its readers.
func ProvideLocal(s *Scope, name string, value any) {
	key := s.f.key
	values := s.c.locals[key]
	if values == nil {
		values = map[string]any{}
		s.c.locals[key] = values
	}
	values[name] = value
}

// UseLocal resolves name through the ancestor chain of the node currently
// executing in s, starting with the node itself. It reports false when no
// ancestor provides the name.
func UseLocal(s *Scope, name string) (any, bool) {
	c := s.c
	key := s.f.key
	for {
		if value, ok := c.locals[key][name]; ok {
			return value, true
		}
		if key == c.root {
			return nil, false
		}
		n := c.nodes[key]
		if n == nil {
			return nil, false
		}
		key = n.parent
	}
}

// LocalOf resolves name like UseLocal and asserts the value to T. It reports
// false when the name is unbound or bound to a different type.
func LocalOf[T any](s *Scope, name string) (T, bool) {
	value, ok := UseLocal(s, name)
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := value.(T)
	return typed, ok
}
