package compose

import (
	"fmt"
	"io"
	"reflect"
)

// WriteTree writes a human-readable traversal of the current tree: one line
// per node with its identity and payload summary. Debugging aid only; the
// format carries no stability contract.
func (r *Recomposer) WriteTree(w io.Writer) error {
	return r.WriteTreeWith(w, defaultPayloadDisplay)
}

// WriteTreeWith writes the tree using display to summarise payloads. display
// receives the stored payload and false for group nodes.
func (r *Recomposer) WriteTreeWith(w io.Writer, display func(payload any, ok bool) string) error {
	if display == nil {
		display = defaultPayloadDisplay
	}
	if _, err := fmt.Fprintln(w, "Root"); err != nil {
		return err
	}
	return r.c.writeNode(w, r.c.root, display, false, "")
}

func (c *Composer) writeNode(w io.Writer, key NodeKey, display func(any, bool) string, hasSibling bool, prefix string) error {
	n := c.nodes[key]
	if n == nil {
		return nil
	}
	fork := "└── "
	if hasSibling {
		fork = "├── "
	}
	summary := display(n.payload, n.hasPayload)
	if _, err := fmt.Fprintf(w, "%s%s%s: %s\n", prefix, fork, key, summary); err != nil {
		return err
	}
	bar := "    "
	if hasSibling {
		bar = "│   "
	}
	childPrefix := prefix + bar
	for index, child := range n.children {
		sibling := index < len(n.children)-1
		if err := c.writeNode(w, child, display, sibling, childPrefix); err != nil {
			return err
		}
	}
	return nil
}

func defaultPayloadDisplay(payload any, ok bool) string {
	if !ok {
		return "<group>"
	}
	return fmt.Sprintf("%v", derefPayload(payload))
}

// derefPayload unwraps the pointer the runtime stores payloads behind so
// summaries show the value, not its address.
func derefPayload(payload any) any {
	v := reflect.ValueOf(payload)
	if v.Kind() == reflect.Pointer && !v.IsNil() {
		return v.Elem().Interface()
	}
	return payload
}
