package compose

import "fmt"

// stateID addresses a state cell by its owning node and the positional slot
// the cell was constructed at within that node's execution.
type stateID struct {
	owner NodeKey
	slot  int
}

func (id stateID) String() string {
	return fmt.Sprintf("%s/%d", id.owner, id.slot)
}

// stateCell is one memoized mutable value with a monotonically increasing
// version. Cells live as long as their owning node.
type stateCell struct {
	value   any
	version uint64
}

// State is a handle to a memoized mutable value owned by the node that first
// called UseState at its position. The handle captures only the cell's stable
// address and re-resolves it against the Composer on every access, so it is
// safe to retain inside event handlers and drive passes from outside.
type State[T any] struct {
	c  *Composer
	id stateID
}

// UseState memoizes a state cell at the calling position. init runs exactly
// once, the first time the owning node reaches this call; later executions
// return the existing cell.
func UseState[T any](s *Scope, init func() T) State[T] {
	c, f := s.c, s.f
	slot := f.stateSlot
	f.stateSlot++
	cells := c.states[f.key]
	if slot < len(cells) {
		// A nil value is legal for interface-typed cells; only a value of
		// the wrong dynamic type is a mismatch.
		if value := cells[slot].value; value != nil {
			if _, ok := value.(T); !ok {
				fault(&TypeMismatchError{
					Key:  f.key,
					Want: typeOf[T](),
					Got:  typeName(value),
				})
			}
		}
	} else {
		var value T
		if init != nil {
			value = init()
		}
		c.states[f.key] = append(cells, &stateCell{value: value})
	}
	return State[T]{c: c, id: stateID{owner: f.key, slot: slot}}
}

// Get returns the current value and, when called during a pass, registers the
// executing node in the cell's used-by set. Registration is re-established on
// every execution, so a node that stops reading drops out automatically.
func (st State[T]) Get() T {
	cell := st.resolve()
	if st.c.passActive {
		if f := st.c.currentFrame(); f != nil {
			st.c.registerRead(st.id, f.key)
		}
	}
	value, _ := cell.value.(T)
	return value
}

// Peek returns the current value without registering a dependency.
func (st State[T]) Peek() T {
	value, _ := st.resolve().value.(T)
	return value
}

// Set replaces the value, bumps the version, and schedules every node in the
// used-by set for mandatory re-execution on the next pass. It fails fast when
// the owning node is no longer mounted.
func (st State[T]) Set(value T) error {
	cells := st.c.states[st.id.owner]
	if st.id.slot >= len(cells) {
		return &StaleStateError{Owner: st.id.owner}
	}
	cell := cells[st.id.slot]
	cell.value = value
	cell.version++
	st.c.dirtyStates[st.id] = struct{}{}
	return nil
}

// Version reports how many times the cell has been set.
func (st State[T]) Version() uint64 {
	return st.resolve().version
}

// resolve borrows the cell for the duration of one call. A stale owner is a
// contract violation: it faults the active pass, or panics with the same
// typed error between passes.
func (st State[T]) resolve() *stateCell {
	cells := st.c.states[st.id.owner]
	if st.id.slot >= len(cells) {
		err := &StaleStateError{Owner: st.id.owner}
		if st.c.passActive {
			fault(err)
		}
		panic(err)
	}
	return cells[st.id.slot]
}

func (c *Composer) registerRead(id stateID, reader NodeKey) {
	readers := c.usedBy[id]
	if readers == nil {
		readers = map[NodeKey]struct{}{}
		c.usedBy[id] = readers
	}
	readers[reader] = struct{}{}
	reads := c.uses[reader]
	if reads == nil {
		reads = map[stateID]struct{}{}
		c.uses[reader] = reads
	}
	reads[id] = struct{}{}
}
