package compose

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLastTraceRequiresTracing(t *testing.T) {
	r, err := Compose(func(s *Scope) {
		labelNode(s, "a", nil)
	}, nil)
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	if _, ok := r.LastTrace(); ok {
		t.Fatal("trace reported without WithTracing")
	}
}

func TestTracingRecordsPassActivity(t *testing.T) {
	var show State[bool]
	r, err := Compose(func(s *Scope) {
		show = UseState(s, func() bool { return true })
		labelNode(s, "static", nil)
		if show.Get() {
			labelNode(s, "conditional", nil)
		}
	}, nil, WithTracing())
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}

	trace, ok := r.LastTrace()
	if !ok {
		t.Fatal("no trace after initial pass")
	}
	if trace.Kind != PassInitial {
		t.Fatalf("trace kind = %q, want %q", trace.Kind, PassInitial)
	}
	if trace.PassID == "" {
		t.Fatal("trace missing pass id")
	}
	// Root plus both labels ran.
	if len(trace.Executed) != 3 {
		t.Fatalf("executed = %d nodes, want 3", len(trace.Executed))
	}
	if len(trace.Skipped) != 0 || len(trace.Unmounted) != 0 {
		t.Fatalf("unexpected skips or unmounts on initial pass: %+v", trace)
	}

	if err := show.Set(false); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := r.Recompose(); err != nil {
		t.Fatalf("recompose failed: %v", err)
	}

	trace, ok = r.LastTrace()
	if !ok {
		t.Fatal("no trace after incremental pass")
	}
	if trace.Kind != PassIncremental {
		t.Fatalf("trace kind = %q, want %q", trace.Kind, PassIncremental)
	}
	// Root re-ran, the static label's inputs were unchanged, and the
	// conditional label went away.
	if len(trace.Executed) != 1 {
		t.Fatalf("executed = %d nodes, want 1", len(trace.Executed))
	}
	if len(trace.Skipped) != 1 {
		t.Fatalf("skipped = %d nodes, want 1", len(trace.Skipped))
	}
	if len(trace.Unmounted) != 1 {
		t.Fatalf("unmounted = %d nodes, want 1", len(trace.Unmounted))
	}
}

func TestPassTraceJSONRoundTrip(t *testing.T) {
	trace := PassTrace{
		PassID:   "p-1",
		Kind:     PassIncremental,
		Executed: []string{"000000000000000a"},
		Skipped:  []string{"000000000000000b"},
	}
	payload, err := trace.ToJSON()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	decoded, err := PassTraceFromJSON(payload)
	if err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if diff := cmp.Diff(trace, decoded); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestPassLoggerObservesPasses(t *testing.T) {
	var events []PassLogEvent
	logger := PassLoggerFunc(func(event PassLogEvent) {
		events = append(events, event)
	})

	var tick State[int]
	r, err := Compose(func(s *Scope) {
		tick = UseState(s, func() int { return 0 })
		tick.Get()
		labelNode(s, "a", nil)
	}, nil, WithPassLogger(logger))
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	if err := tick.Set(1); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := r.Recompose(); err != nil {
		t.Fatalf("recompose failed: %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("logged %d passes, want 2", len(events))
	}
	if events[0].Kind != PassInitial || events[1].Kind != PassIncremental {
		t.Fatalf("pass kinds = %q, %q", events[0].Kind, events[1].Kind)
	}
	for i, event := range events {
		if event.PassID == "" {
			t.Fatalf("pass %d missing id", i)
		}
		if event.Executed == 0 {
			t.Fatalf("pass %d reported zero executions", i)
		}
		if event.Err != nil {
			t.Fatalf("pass %d reported error: %v", i, event.Err)
		}
	}
}
