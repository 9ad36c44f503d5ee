package compose

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// hostWith composes a single payload-carrying host node whose content runs
// body with the current value of count.
func hostWith(count State[int], body func(s *Scope, n int)) func(*Scope) {
	return func(s *Scope) {
		n := count.Get()
		CreateNode(s, NodeSpec[int, label]{
			Input:  n,
			Init:   func(int) label { return label{Text: "host"} },
			Update: func(*label, int) {},
			Content: func(s *Scope) {
				body(s, n)
			},
		})
	}
}

func TestSubcomposeIdempotence(t *testing.T) {
	var tick State[int]
	executions := 0
	var r *Recomposer
	var err error
	r, err = Compose(func(s *Scope) {
		tick = UseState(s, func() int { return 0 })
		hostWith(tick, func(s *Scope, _ int) {
			Subcompose(s, SlotIDOf("banner"), "static", func(*Scope, string) {
				executions++
			})
		})(s)
	}, nil)
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}

	// Re-execute the host with the slot's context unchanged.
	if err := tick.Set(1); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := r.Recompose(); err != nil {
		t.Fatalf("recompose failed: %v", err)
	}
	if executions != 1 {
		t.Fatalf("slot content executed %d times, want 1", executions)
	}
}

func TestSubcomposeContextChangeReexecutes(t *testing.T) {
	var tick State[int]
	var seen []int
	r, err := Compose(func(s *Scope) {
		tick = UseState(s, func() int { return 0 })
		hostWith(tick, func(s *Scope, n int) {
			Subcompose(s, SlotIDOf("panel"), n, func(_ *Scope, ctx int) {
				seen = append(seen, ctx)
			})
		})(s)
	}, nil)
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}

	if err := tick.Set(5); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := r.Recompose(); err != nil {
		t.Fatalf("recompose failed: %v", err)
	}
	if diff := cmp.Diff([]int{0, 5}, seen); diff != "" {
		t.Fatalf("injected contexts (-want +got):\n%s", diff)
	}
}

func TestSubcomposeReusesAndReplacesSlots(t *testing.T) {
	var count State[int]
	r, err := Compose(func(s *Scope) {
		count = UseState(s, func() int { return 2 })
		hostWith(count, func(s *Scope, n int) {
			for i := 0; i < n; i++ {
				Subcompose(s, SlotIDOf(i), i, func(*Scope, int) {})
			}
		})(s)
	}, nil, WithSlotRetention(SlotRetention{MaxIdlePasses: 0}))
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	host := r.Children(r.RootKey())[0]
	initial := r.Children(host)
	if len(initial) != 2 {
		t.Fatalf("initial slot count = %d, want 2", len(initial))
	}

	if err := count.Set(3); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := r.Recompose(); err != nil {
		t.Fatalf("recompose failed: %v", err)
	}
	expanded := r.Children(host)
	if len(expanded) != 3 {
		t.Fatalf("expanded slot count = %d, want 3", len(expanded))
	}
	if expanded[0] != initial[0] || expanded[1] != initial[1] {
		t.Fatal("existing slots were rebuilt instead of reused")
	}

	if err := count.Set(1); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := r.Recompose(); err != nil {
		t.Fatalf("recompose failed: %v", err)
	}
	reduced := r.Children(host)
	if len(reduced) != 1 {
		t.Fatalf("reduced slot count = %d, want 1", len(reduced))
	}
	if reduced[0] != initial[0] {
		t.Fatal("surviving slot lost its identity")
	}
}

func TestSlotRetentionKeepsIdleSlots(t *testing.T) {
	var count State[int]
	executions := map[int]int{}
	r, err := Compose(func(s *Scope) {
		count = UseState(s, func() int { return 2 })
		hostWith(count, func(s *Scope, n int) {
			for i := 0; i < n; i++ {
				i := i
				Subcompose(s, SlotIDOf(i), i, func(*Scope, int) { executions[i]++ })
			}
		})(s)
	}, nil, WithSlotRetention(SlotRetention{MaxIdlePasses: 1}))
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	host := r.Children(r.RootKey())[0]

	// Slot 1 goes idle for one pass; the retention window keeps it mounted.
	if err := count.Set(1); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := r.Recompose(); err != nil {
		t.Fatalf("recompose failed: %v", err)
	}
	if got := len(r.Children(host)); got != 2 {
		t.Fatalf("slot count after one idle pass = %d, want 2 (retained)", got)
	}

	// Requesting it again reuses the retained subtree without re-execution.
	if err := count.Set(2); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := r.Recompose(); err != nil {
		t.Fatalf("recompose failed: %v", err)
	}
	if executions[1] != 1 {
		t.Fatalf("retained slot re-executed: %d executions, want 1", executions[1])
	}
}

func TestHostUnmountForcesSlotUnmount(t *testing.T) {
	var show State[bool]
	var handle SubcomposeHandle
	r, err := Compose(func(s *Scope) {
		show = UseState(s, func() bool { return true })
		if !show.Get() {
			return
		}
		s.Child(func(s *Scope) {
			handle = Subcompose(s, SlotIDOf("overlay"), struct{}{}, func(*Scope, struct{}) {})
		})
	}, nil)
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	if _, err := handle.Key(); err != nil {
		t.Fatalf("handle unexpectedly stale: %v", err)
	}

	if err := show.Set(false); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := r.Recompose(); err != nil {
		t.Fatalf("recompose failed: %v", err)
	}

	_, err = handle.Key()
	var stale *StaleSlotError
	if !errors.As(err, &stale) {
		t.Fatalf("expected *StaleSlotError, got %v", err)
	}
}

func TestNestedSubcompose(t *testing.T) {
	var r *Recomposer
	var err error
	r, err = Compose(func(s *Scope) {
		s.Child(func(s *Scope) {
			Subcompose(s, SlotIDOf("outer"), struct{}{}, func(s *Scope, _ struct{}) {
				Subcompose(s, SlotIDOf("inner"), struct{}{}, func(*Scope, struct{}) {})
			})
		})
	}, nil)
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	group := r.Children(r.RootKey())[0]
	outer := r.Children(group)
	if len(outer) != 1 {
		t.Fatalf("outer slot count = %d, want 1", len(outer))
	}
	inner := r.Children(outer[0])
	if len(inner) != 1 {
		t.Fatalf("inner slot count = %d, want 1", len(inner))
	}
}

func TestDirtySlotReexecutesWithoutHost(t *testing.T) {
	var inner State[int]
	hostExecutions, slotExecutions := 0, 0
	r, err := Compose(func(s *Scope) {
		s.Child(func(s *Scope) {
			hostExecutions++
			Subcompose(s, SlotIDOf("cell"), struct{}{}, func(s *Scope, _ struct{}) {
				inner = UseState(s, func() int { return 0 })
				inner.Get()
				slotExecutions++
			})
		})
	}, nil)
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}

	if err := inner.Set(1); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := r.Recompose(); err != nil {
		t.Fatalf("recompose failed: %v", err)
	}

	if hostExecutions != 1 {
		t.Fatalf("host executed %d times, want 1", hostExecutions)
	}
	if slotExecutions != 2 {
		t.Fatalf("slot executed %d times, want 2", slotExecutions)
	}
}

func TestSlotIDOfStringIsStable(t *testing.T) {
	if SlotIDOf("panel") != SlotIDOf("panel") {
		t.Fatal("same string produced different slot IDs")
	}
	if SlotIDOf("panel") == SlotIDOf("overlay") {
		t.Fatal("distinct strings collided")
	}
	if SlotIDOf(7) != SlotID(7) {
		t.Fatalf("numeric slot ID = %d, want 7", SlotIDOf(7))
	}
}
