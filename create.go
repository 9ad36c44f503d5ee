package compose

import (
	"reflect"

	"github.com/goliatone/go-compose/pkg/activity"
)

// NodeSpec describes one CreateNode call: the inputs the node is being
// composed with, how to build and update its payload, the predicate deciding
// whether the cached payload is still current, and the content composing the
// subtree beneath it.
type NodeSpec[A, P any] struct {
	// Input is the value the node is composed with on this visit. It is
	// remembered across passes and compared by Changed on the next one.
	Input A

	// Init builds the persistent payload; it runs exactly once, the first
	// time this position is visited. Leave nil for a payload-less group.
	Init func(A) P

	// Update mutates the cached payload in place when Input changed or the
	// node is dirty.
	Update func(payload *P, input A)

	// Changed reports whether next invalidates the payload built from prev.
	// Nil falls back to reflect.DeepEqual.
	Changed func(prev, next A) bool

	// Content composes the node's children.
	Content func(*Scope)
}

// CreateNode memoizes a node at the next positional identity in s. When the
// node already exists, Changed reported unchanged inputs, and the node is not
// dirty, neither Update nor Content runs and the subtree is left untouched.
func CreateNode[A, P any](s *Scope, spec NodeSpec[A, P]) {
	c, f := s.c, s.f
	key := c.nextChildKey(f)
	f.produced = append(f.produced, key)
	parent, depth := f.key, f.depth+1
	runCreate(c, parent, depth, key, spec)
	c.composables[key] = func() { runCreate(c, parent, depth, key, spec) }
}

// Memo memoizes a payload-less subtree keyed on input: content is skipped
// whenever changed (or DeepEqual, when nil) reports the input unchanged and
// the node is not dirty.
func Memo[A any](s *Scope, input A, changed func(prev, next A) bool, content func(*Scope)) {
	CreateNode(s, NodeSpec[A, struct{}]{
		Input:   input,
		Changed: changed,
		Content: content,
	})
}

func runCreate[A, P any](c *Composer, parent NodeKey, depth int, key NodeKey, spec NodeSpec[A, P]) {
	n, mounted := c.nodes[key]
	dirty := c.isDirty(key)
	if mounted {
		var prev A
		if last := c.groups[key].lastInput; last != nil {
			typed, ok := last.(A)
			if !ok {
				fault(&TypeMismatchError{Key: key, Want: typeOf[A](), Got: typeName(last)})
			}
			prev = typed
		}
		if !dirty && !inputChanged(spec.Changed, prev, spec.Input) {
			c.markSkipped(key)
			return
		}
		switch {
		case n.hasPayload && spec.Init == nil:
			fault(&TypeMismatchError{Key: key, Want: "group", Got: typeName(n.payload)})
		case n.hasPayload:
			payload, ok := n.payload.(*P)
			if !ok {
				fault(&TypeMismatchError{Key: key, Want: typeOf[*P](), Got: typeName(n.payload)})
			}
			if spec.Update != nil {
				spec.Update(payload, spec.Input)
			}
			c.record(activity.Event{
				Verb:       "node.updated",
				ObjectType: "node",
				ObjectID:   key.String(),
			})
		case spec.Init != nil:
			payload := spec.Init(spec.Input)
			n.payload = &payload
			n.hasPayload = true
		}
	} else {
		n = &node{key: key, parent: parent, depth: depth}
		if spec.Init != nil {
			payload := spec.Init(spec.Input)
			n.payload = &payload
			n.hasPayload = true
		}
		c.mount(n)
	}
	c.overlay.inputs[key] = spec.Input
	c.executeNode(n, spec.Content)
}

func inputChanged[A any](changed func(prev, next A) bool, prev, next A) bool {
	if changed != nil {
		return changed(prev, next)
	}
	return !reflect.DeepEqual(prev, next)
}

func typeName(v any) string {
	if v == nil {
		return "<nil>"
	}
	return reflect.TypeOf(v).String()
}

// typeOf names T itself, so interface and pointer types print their static
// name instead of the %T of a nil value.
func typeOf[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}
