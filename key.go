package compose

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
)

// NodeKey is the stable identity of a tree position. Keys are derived by
// hashing the parent key together with a path segment (the sibling call
// index, an explicit key, or a slot identifier), so two passes that execute
// the same call sequence at the same logical position produce the same key.
type NodeKey uint64

// String renders the key as a fixed-width hex token for dumps and events.
func (k NodeKey) String() string {
	return fmt.Sprintf("%016x", uint64(k))
}

const (
	segmentIndex    = 'i'
	segmentExplicit = 'k'
	segmentSlot     = 's'
)

// rootKey seeds the identity space of one runtime instance.
func rootKey() NodeKey {
	return deriveKey(0, segmentExplicit, []byte("root"))
}

func deriveKey(parent NodeKey, kind byte, segment []byte) NodeKey {
	h := fnv.New64a()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(parent))
	h.Write(buf[:])
	h.Write([]byte{kind})
	h.Write(segment)
	return NodeKey(h.Sum64())
}

func indexedChildKey(parent NodeKey, index int) NodeKey {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(index))
	return deriveKey(parent, segmentIndex, buf[:])
}

func explicitChildKey(parent NodeKey, key string) NodeKey {
	return deriveKey(parent, segmentExplicit, []byte(key))
}

func slotChildKey(host NodeKey, id SlotID) NodeKey {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(id))
	return deriveKey(host, segmentSlot, buf[:])
}
