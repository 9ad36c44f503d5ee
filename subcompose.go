package compose

import (
	"hash/fnv"
	"reflect"
	"sort"

	"github.com/goliatone/go-compose/pkg/activity"
)

// SlotID names an on-demand composition slot within a host node. Unlike
// positional children, slot identity is content-addressed: the same SlotID
// maps to the same subtree regardless of request order.
type SlotID uint64

// SlotKeyable enumerates the types a SlotID can be derived from.
type SlotKeyable interface {
	~int | ~int64 | ~uint64 | ~string
}

// SlotIDOf derives a SlotID from a caller-side key.
func SlotIDOf[K SlotKeyable](key K) SlotID {
	v := reflect.ValueOf(key)
	switch v.Kind() {
	case reflect.String:
		h := fnv.New64a()
		h.Write([]byte(v.String()))
		return SlotID(h.Sum64())
	case reflect.Uint64:
		return SlotID(v.Uint())
	default:
		return SlotID(uint64(v.Int()))
	}
}

// slotRecord remembers one slot between passes: the subtree it last produced,
// the context it was last composed with, and when it was last requested.
type slotRecord struct {
	nodeKey  NodeKey
	lastCtx  any
	lastPass uint64
}

// subcompositionEntry holds every slot hosted by one node. At most one entry
// exists per node; it is created on the node's first Subcompose call and
// destroyed when the node unmounts.
type subcompositionEntry struct {
	slots map[SlotID]*slotRecord
}

// SlotRetention configures how long an unrequested slot survives. A slot idle
// for more than MaxIdlePasses host executions is unmounted; host unmount
// always force-unmounts every slot regardless of this policy.
type SlotRetention struct {
	MaxIdlePasses int
}

// SubcomposeHandle refers to a composed slot. It goes stale once the host
// unmounts or the slot is evicted.
type SubcomposeHandle struct {
	c    *Composer
	host NodeKey
	slot SlotID
	key  NodeKey
}

// Key returns the NodeKey the slot last produced, or a StaleSlotError when
// the slot is no longer mounted.
func (h SubcomposeHandle) Key() (NodeKey, error) {
	entry := h.c.subs[h.host]
	if entry == nil {
		return 0, &StaleSlotError{Host: h.host, Slot: h.slot}
	}
	rec := entry.slots[h.slot]
	if rec == nil || h.c.nodes[rec.nodeKey] == nil {
		return 0, &StaleSlotError{Host: h.host, Slot: h.slot}
	}
	return rec.nodeKey, nil
}

// Subcompose requests the slot id on the node currently executing in s,
// composing content with the injected ctx. An existing slot whose context is
// unchanged (by reflect.DeepEqual) and whose subtree is not dirty is reused
// without re-executing content. Nested requests key off the innermost active
// host, so slot content may itself subcompose.
func Subcompose[C any](s *Scope, id SlotID, ctx C, content func(*Scope, C)) SubcomposeHandle {
	c, f := s.c, s.f
	host := f.key
	entry := c.subs[host]
	if entry == nil {
		entry = &subcompositionEntry{slots: map[SlotID]*slotRecord{}}
		c.subs[host] = entry
	}
	key := slotChildKey(host, id)
	rec := entry.slots[id]
	if rec == nil {
		rec = &slotRecord{nodeKey: key}
		entry.slots[id] = rec
	}

	_, mounted := c.nodes[key]
	dirty := c.isDirty(key)
	if mounted && !dirty && reflect.DeepEqual(rec.lastCtx, ctx) {
		rec.lastPass = c.pass + 1
		f.slotKeys = append(f.slotKeys, key)
		c.markSkipped(key)
		return SubcomposeHandle{c: c, host: host, slot: id, key: key}
	}

	depth := f.depth + 1
	runSlot(c, host, depth, key, ctx, content)
	rec.lastCtx = ctx
	rec.lastPass = c.pass + 1
	f.slotKeys = append(f.slotKeys, key)
	c.composables[key] = func() { runSlot(c, host, depth, key, ctx, content) }
	return SubcomposeHandle{c: c, host: host, slot: id, key: key}
}

func runSlot[C any](c *Composer, host NodeKey, depth int, key NodeKey, ctx C, content func(*Scope, C)) {
	n, mounted := c.nodes[key]
	if !mounted {
		n = &node{key: key, parent: host, depth: depth}
		c.mount(n)
	}
	c.executeNode(n, func(s *Scope) { content(s, ctx) })
	c.record(activity.Event{
		Verb:       "slot.composed",
		ObjectType: "slot",
		ObjectID:   key.String(),
	})
}

// liveSlotKeys returns the slot children to keep on the host after one
// execution: slots requested during it, in request order, then retained idle
// slots by recency. Slots idle beyond the retention window are scheduled for
// unmount with the rest of the pass's structural edits.
func (c *Composer) liveSlotKeys(host NodeKey, f *frame) []NodeKey {
	entry := c.subs[host]
	if entry == nil {
		return nil
	}
	keys := make([]NodeKey, 0, len(f.slotKeys))
	requested := make(map[NodeKey]struct{}, len(f.slotKeys))
	for _, key := range f.slotKeys {
		if _, dup := requested[key]; dup {
			continue
		}
		requested[key] = struct{}{}
		keys = append(keys, key)
	}
	var retained []*slotRecord
	for id, rec := range entry.slots {
		if _, ok := requested[rec.nodeKey]; ok {
			continue
		}
		idle := (c.pass + 1) - rec.lastPass
		if idle > uint64(c.cfg.retention.MaxIdlePasses) {
			c.overlay.removed[rec.nodeKey] = struct{}{}
			delete(entry.slots, id)
			c.record(activity.Event{
				Verb:       "slot.evicted",
				ObjectType: "slot",
				ObjectID:   rec.nodeKey.String(),
			})
			continue
		}
		retained = append(retained, rec)
	}
	sort.Slice(retained, func(i, j int) bool {
		if retained[i].lastPass != retained[j].lastPass {
			return retained[i].lastPass > retained[j].lastPass
		}
		return retained[i].nodeKey < retained[j].nodeKey
	})
	for _, rec := range retained {
		keys = append(keys, rec.nodeKey)
	}
	return keys
}

func copySlots(src map[NodeKey]*subcompositionEntry) map[NodeKey]*subcompositionEntry {
	dst := make(map[NodeKey]*subcompositionEntry, len(src))
	for key, entry := range src {
		slots := make(map[SlotID]*slotRecord, len(entry.slots))
		for id, rec := range entry.slots {
			clone := *rec
			slots[id] = &clone
		}
		dst[key] = &subcompositionEntry{slots: slots}
	}
	return dst
}
