package compose

import (
	"fmt"
	"sort"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// NodeSummary is the view of one mounted node exposed to diagnostics queries
// and returned from QueryNodes.
type NodeSummary struct {
	Key         string `json:"key"`
	Parent      string `json:"parent"`
	Depth       int    `json:"depth"`
	ChildCount  int    `json:"child_count"`
	HasPayload  bool   `json:"has_payload"`
	Payload     string `json:"payload,omitempty"`
	PayloadType string `json:"payload_type,omitempty"`
	Dirty       bool   `json:"dirty"`
	States      int    `json:"states"`
	Slots       int    `json:"slots"`
}

// Summaries returns one summary per mounted node, ordered ancestors first.
func (r *Recomposer) Summaries() []NodeSummary {
	c := r.c
	summaries := make([]NodeSummary, 0, len(c.nodes))
	for _, n := range c.nodes {
		summary := NodeSummary{
			Key:        n.key.String(),
			Depth:      n.depth,
			ChildCount: len(n.children),
			HasPayload: n.hasPayload,
			Dirty:      c.isDirty(n.key),
			States:     len(c.states[n.key]),
		}
		if n.key != c.root {
			summary.Parent = n.parent.String()
		}
		if n.hasPayload {
			value := derefPayload(n.payload)
			summary.Payload = fmt.Sprintf("%v", value)
			summary.PayloadType = fmt.Sprintf("%T", value)
		}
		if entry := c.subs[n.key]; entry != nil {
			summary.Slots = len(entry.slots)
		}
		summaries = append(summaries, summary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Depth != summaries[j].Depth {
			return summaries[i].Depth < summaries[j].Depth
		}
		return summaries[i].Key < summaries[j].Key
	})
	return summaries
}

// QueryNodes filters node summaries with an expr-lang expression evaluated
// once per node with the summary bound as "node". The expression must yield a
// boolean. Example: `node.Depth > 1 && node.PayloadType == "main.Label"`.
func (r *Recomposer) QueryNodes(expression string) ([]NodeSummary, error) {
	if expression == "" {
		return nil, wrapQueryError(expression, fmt.Errorf("expression must not be empty"))
	}
	program, err := r.c.loadOrCompile(expression)
	if err != nil {
		return nil, err
	}
	var matches []NodeSummary
	for _, summary := range r.Summaries() {
		result, err := exprlang.Run(program, map[string]any{"node": summary})
		if err != nil {
			return nil, wrapQueryError(expression, err)
		}
		keep, ok := result.(bool)
		if !ok {
			return nil, wrapQueryError(expression, fmt.Errorf("expression yielded %T, want bool", result))
		}
		if keep {
			matches = append(matches, summary)
		}
	}
	return matches, nil
}

func (c *Composer) loadOrCompile(expression string) (*exprvm.Program, error) {
	if c.cfg.cache != nil {
		if cached, ok := c.cfg.cache.Get(expression); ok {
			if program, ok := cached.(*exprvm.Program); ok {
				return program, nil
			}
		}
	}
	program, err := exprlang.Compile(expression,
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, wrapQueryError(expression, err)
	}
	if c.cfg.cache != nil {
		c.cfg.cache.Set(expression, program)
	}
	return program, nil
}
