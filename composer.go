package compose

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-compose/pkg/activity"
)

// Pass kinds reported on traces, log events, and activity events.
const (
	PassInitial     = "initial"
	PassIncremental = "incremental"
)

// Composer owns all node, state, group, and slot storage for one runtime
// instance, plus the dirty set consulted by incremental passes. It is
// single-threaded: one pass mutates the tree at a time, driven by a
// synchronous depth-first walk.
type Composer struct {
	cfg     composerConfig
	emitter *activity.Emitter
	context any

	nodes       map[NodeKey]*node
	composables map[NodeKey]composable
	groups      map[NodeKey]*group
	states      map[NodeKey][]*stateCell
	usedBy      map[stateID]map[NodeKey]struct{}
	uses        map[NodeKey]map[stateID]struct{}
	dirtyStates map[stateID]struct{}
	dirtyNodes  map[NodeKey]struct{}
	subs        map[NodeKey]*subcompositionEntry
	locals      map[NodeKey]map[string]any

	root NodeKey
	pass uint64

	// Transient pass bookkeeping, valid only while passActive.
	passActive bool
	passID     string
	frames     []*frame
	overlay    *passOverlay
	journal    *passJournal
	trace      *PassTrace
	events     []activity.Event
	lastTrace  *PassTrace
}

// frame is the per-position cursor for one executing node: child call
// counters, the buffered child list, explicit-key bookkeeping, and the state
// slot cursor. Frames live on the call stack for the duration of one content
// execution and are never retained.
type frame struct {
	key        NodeKey
	depth      int
	childIndex int
	pendingKey string
	hasPending bool
	produced   []NodeKey
	seenKeys   map[string]struct{}
	stateSlot  int
	slotKeys   []NodeKey
}

// passOverlay buffers every structural edit made during a pass. Nothing in it
// touches committed storage until the whole pass succeeds.
type passOverlay struct {
	children map[NodeKey][]NodeKey
	inputs   map[NodeKey]any
	created  map[NodeKey]struct{}
	removed  map[NodeKey]struct{}
}

// passJournal snapshots the mutable indexes a pass rewrites in place, so a
// fault can restore them.
type passJournal struct {
	dirtyNodes  map[NodeKey]struct{}
	dirtyStates map[stateID]struct{}
	uses        map[NodeKey]map[stateID]struct{}
	usedBy      map[stateID]map[NodeKey]struct{}
	slots       map[NodeKey]*subcompositionEntry
	locals      map[NodeKey]map[string]any
}

// Compose runs one full composition pass over root and returns the Recomposer
// driving subsequent incremental passes. ctx is an instance-wide context
// value exposed through the Recomposer; pass nil when unused.
func Compose(root func(*Scope), ctx any, opts ...Option) (*Recomposer, error) {
	cfg := applyOptions(opts)
	c := &Composer{
		cfg:         cfg,
		context:     ctx,
		nodes:       map[NodeKey]*node{},
		composables: map[NodeKey]composable{},
		groups:      map[NodeKey]*group{},
		states:      map[NodeKey][]*stateCell{},
		usedBy:      map[stateID]map[NodeKey]struct{}{},
		uses:        map[NodeKey]map[stateID]struct{}{},
		dirtyStates: map[stateID]struct{}{},
		dirtyNodes:  map[NodeKey]struct{}{},
		subs:        map[NodeKey]*subcompositionEntry{},
		locals:      map[NodeKey]map[string]any{},
		root:        rootKey(),
	}
	if len(cfg.hooks) > 0 {
		c.emitter = activity.NewEmitter(cfg.hooks, activity.Config{Enabled: true, Channel: cfg.channel})
	}
	err := c.runPass(PassInitial, func() {
		n := &node{key: c.root, depth: 0}
		c.mount(n)
		c.executeNode(n, root)
		c.composables[c.root] = func() { c.executeNode(n, root) }
	})
	if err != nil {
		return nil, err
	}
	return &Recomposer{c: c}, nil
}

// runPass wraps body with pass setup, fault recovery, rollback, and commit.
// Faults raised through fault() surface as a *PassError; the tree keeps the
// state it had before the pass began.
func (c *Composer) runPass(kind string, body func()) (err error) {
	started := time.Now()
	passID := uuid.NewString()
	c.beginPass(passID, kind)
	trace := c.trace
	defer func() {
		if r := recover(); r != nil {
			c.rollback()
			if f, ok := r.(passFault); ok {
				err = &PassError{PassID: passID, Err: f.err}
				c.logPass(trace, started, err)
				return
			}
			panic(r)
		}
	}()
	body()
	c.commit(kind)
	c.logPass(trace, started, nil)
	return nil
}

func (c *Composer) beginPass(passID, kind string) {
	c.passActive = true
	c.passID = passID
	c.frames = c.frames[:0]
	c.overlay = &passOverlay{
		children: map[NodeKey][]NodeKey{},
		inputs:   map[NodeKey]any{},
		created:  map[NodeKey]struct{}{},
		removed:  map[NodeKey]struct{}{},
	}
	c.journal = &passJournal{
		dirtyNodes:  copySet(c.dirtyNodes),
		dirtyStates: copySet(c.dirtyStates),
		uses:        copyIndex(c.uses),
		usedBy:      copyIndex(c.usedBy),
		slots:       copySlots(c.subs),
		locals:      copyLocals(c.locals),
	}
	c.trace = &PassTrace{PassID: passID, Kind: kind}
	c.events = c.events[:0]
}

func (c *Composer) commit(kind string) {
	for key, children := range c.overlay.children {
		if n := c.nodes[key]; n != nil {
			n.children = children
		}
	}
	for key, input := range c.overlay.inputs {
		if grp := c.groups[key]; grp != nil {
			grp.lastInput = input
		}
	}
	for key := range c.overlay.removed {
		if _, created := c.overlay.created[key]; created {
			continue
		}
		c.teardown(key)
	}
	c.pass++
	c.record(activity.Event{
		Verb:       "pass.completed",
		ObjectType: "pass",
		ObjectID:   c.passID,
		Metadata:   map[string]any{"kind": kind, "nodes": len(c.nodes)},
	})
	c.flushEvents()
	if c.cfg.tracing {
		t := *c.trace
		c.lastTrace = &t
	}
	c.endPass()
}

// rollback restores the dirty sets and dependency indexes from the journal
// and deletes every node mounted during the failed pass. Structural edits
// lived only in the overlay, so discarding it leaves the committed tree
// untouched.
func (c *Composer) rollback() {
	c.dirtyNodes = c.journal.dirtyNodes
	c.dirtyStates = c.journal.dirtyStates
	c.uses = c.journal.uses
	c.usedBy = c.journal.usedBy
	c.subs = c.journal.slots
	c.locals = c.journal.locals
	for key := range c.overlay.created {
		delete(c.nodes, key)
		delete(c.composables, key)
		delete(c.groups, key)
		delete(c.states, key)
		delete(c.locals, key)
		delete(c.subs, key)
	}
	c.events = c.events[:0]
	c.endPass()
}

func (c *Composer) endPass() {
	c.passActive = false
	c.passID = ""
	c.frames = c.frames[:0]
	c.overlay = nil
	c.journal = nil
	c.trace = nil
}

func (c *Composer) logPass(trace *PassTrace, started time.Time, passErr error) {
	c.cfg.logger.LogPass(PassLogEvent{
		PassID:    trace.PassID,
		Kind:      trace.Kind,
		Duration:  time.Since(started),
		Executed:  len(trace.Executed),
		Skipped:   len(trace.Skipped),
		Unmounted: len(trace.Unmounted),
		Err:       passErr,
	})
}

// currentFrame returns the innermost executing frame, or nil between node
// executions.
func (c *Composer) currentFrame() *frame {
	if len(c.frames) == 0 {
		return nil
	}
	return c.frames[len(c.frames)-1]
}

// nextChildKey consumes the pending explicit key when one is set, otherwise
// the frame's sibling call index. Explicit keys must be unique among siblings
// within one pass; a duplicate is a structural fault.
func (c *Composer) nextChildKey(f *frame) NodeKey {
	if f.hasPending {
		key := f.pendingKey
		f.hasPending = false
		if f.seenKeys == nil {
			f.seenKeys = map[string]struct{}{}
		}
		if _, dup := f.seenKeys[key]; dup {
			fault(&KeyCollisionError{Parent: f.key, Key: key})
		}
		f.seenKeys[key] = struct{}{}
		return explicitChildKey(f.key, key)
	}
	index := f.childIndex
	f.childIndex++
	return indexedChildKey(f.key, index)
}

func (c *Composer) mount(n *node) {
	c.nodes[n.key] = n
	c.groups[n.key] = &group{}
	c.overlay.created[n.key] = struct{}{}
	c.record(activity.Event{
		Verb:       "node.mounted",
		ObjectType: "node",
		ObjectID:   n.key.String(),
		Metadata:   map[string]any{"depth": n.depth},
	})
}

// executeNode pushes a frame, re-establishes read tracking, runs content, and
// commits the frame's structural edits into the pass overlay.
func (c *Composer) executeNode(n *node, content func(*Scope)) {
	f := &frame{key: n.key, depth: n.depth}
	c.frames = append(c.frames, f)
	c.resetReads(n.key)
	c.resetLocals(n.key)
	if content != nil {
		content(&Scope{c: c, f: f})
	}
	c.frames = c.frames[:len(c.frames)-1]
	c.commitFrame(n, f)
}

// resetReads drops the node from the used-by set of every state it read last
// time. Get re-registers during the upcoming execution, so dependencies never
// accumulate stale entries.
func (c *Composer) resetReads(key NodeKey) {
	for sid := range c.uses[key] {
		delete(c.usedBy[sid], key)
	}
	delete(c.uses, key)
}

// resetLocals drops the values the node provided during its previous
// execution. ProvideLocal re-registers during the upcoming one, so a node
// that stops providing a name stops serving it.
func (c *Composer) resetLocals(key NodeKey) {
	delete(c.locals, key)
}

// commitFrame buffers the node's new child list (positional children in call
// order, then live subcomposition slots) and schedules teardown of any child
// absent from it.
func (c *Composer) commitFrame(n *node, f *frame) {
	children := append([]NodeKey(nil), f.produced...)
	children = append(children, c.liveSlotKeys(n.key, f)...)
	c.overlay.children[n.key] = children

	next := make(map[NodeKey]struct{}, len(children))
	for _, key := range children {
		next[key] = struct{}{}
	}
	for _, key := range n.children {
		if _, kept := next[key]; !kept {
			c.overlay.removed[key] = struct{}{}
		}
	}

	delete(c.dirtyNodes, n.key)
	c.markExecuted(n.key)
}

func (c *Composer) isDirty(key NodeKey) bool {
	_, ok := c.dirtyNodes[key]
	return ok
}

// detached reports whether key sits under a subtree already scheduled for
// removal during this pass.
func (c *Composer) detached(key NodeKey) bool {
	for {
		if _, gone := c.overlay.removed[key]; gone {
			return true
		}
		n := c.nodes[key]
		if n == nil || key == c.root {
			return false
		}
		key = n.parent
	}
}

// teardown removes the subtree rooted at key: children recursively, then
// subcomposition slots, state cells and their dependency entries, and finally
// the node's own storage.
func (c *Composer) teardown(key NodeKey) {
	n := c.nodes[key]
	if n == nil {
		return
	}
	for _, child := range n.children {
		c.teardown(child)
	}
	if entry := c.subs[key]; entry != nil {
		for _, rec := range entry.slots {
			c.teardown(rec.nodeKey)
		}
		delete(c.subs, key)
	}
	for slot := range c.states[key] {
		sid := stateID{owner: key, slot: slot}
		delete(c.usedBy, sid)
		delete(c.dirtyStates, sid)
	}
	for sid := range c.uses[key] {
		delete(c.usedBy[sid], key)
	}
	delete(c.uses, key)
	delete(c.states, key)
	delete(c.nodes, key)
	delete(c.composables, key)
	delete(c.groups, key)
	delete(c.dirtyNodes, key)
	delete(c.locals, key)
	c.markUnmounted(key)
}

func (c *Composer) markExecuted(key NodeKey) {
	if c.trace != nil {
		c.trace.Executed = append(c.trace.Executed, key.String())
	}
}

func (c *Composer) markSkipped(key NodeKey) {
	if c.trace != nil {
		c.trace.Skipped = append(c.trace.Skipped, key.String())
	}
	c.record(activity.Event{
		Verb:       "node.skipped",
		ObjectType: "node",
		ObjectID:   key.String(),
	})
}

func (c *Composer) markUnmounted(key NodeKey) {
	if c.trace != nil {
		c.trace.Unmounted = append(c.trace.Unmounted, key.String())
	}
	c.record(activity.Event{
		Verb:       "node.unmounted",
		ObjectType: "node",
		ObjectID:   key.String(),
	})
}

// record buffers an activity event until the pass commits. Events from a
// rolled-back pass are never delivered.
func (c *Composer) record(event activity.Event) {
	if c.emitter == nil {
		return
	}
	event.PassID = c.passID
	c.events = append(c.events, event)
}

// flushEvents fans buffered events out to the configured hooks. Hooks are
// observational; their errors do not affect the committed pass.
func (c *Composer) flushEvents() {
	if c.emitter == nil {
		return
	}
	ctx := context.Background()
	for _, event := range c.events {
		_ = c.emitter.Emit(ctx, event)
	}
	c.events = c.events[:0]
}

// dirtyPassTargets folds dirty states into dirty nodes and returns the nodes
// ordered ancestor-before-descendant.
func (c *Composer) dirtyPassTargets() []NodeKey {
	for sid := range c.dirtyStates {
		for key := range c.usedBy[sid] {
			c.dirtyNodes[key] = struct{}{}
		}
		delete(c.dirtyStates, sid)
	}
	targets := make([]NodeKey, 0, len(c.dirtyNodes))
	for key := range c.dirtyNodes {
		targets = append(targets, key)
	}
	sort.Slice(targets, func(i, j int) bool {
		di, dj := c.nodeDepth(targets[i]), c.nodeDepth(targets[j])
		if di != dj {
			return di < dj
		}
		return targets[i] < targets[j]
	})
	return targets
}

func (c *Composer) nodeDepth(key NodeKey) int {
	if n := c.nodes[key]; n != nil {
		return n.depth
	}
	return 0
}

func copySet[K comparable](src map[K]struct{}) map[K]struct{} {
	dst := make(map[K]struct{}, len(src))
	for k := range src {
		dst[k] = struct{}{}
	}
	return dst
}

func copyIndex[K, V comparable](src map[K]map[V]struct{}) map[K]map[V]struct{} {
	dst := make(map[K]map[V]struct{}, len(src))
	for k, inner := range src {
		dst[k] = copySet(inner)
	}
	return dst
}

func copyLocals(src map[NodeKey]map[string]any) map[NodeKey]map[string]any {
	dst := make(map[NodeKey]map[string]any, len(src))
	for key, values := range src {
		inner := make(map[string]any, len(values))
		for name, value := range values {
			inner[name] = value
		}
		dst[key] = inner
	}
	return dst
}
