package compose

import (
	"strings"
	"testing"
)

func TestWriteTreeShowsPayloadsAndGroups(t *testing.T) {
	r, err := Compose(func(s *Scope) {
		labelNode(s, "header", nil)
		s.Child(func(s *Scope) {
			labelNode(s, "body", nil)
		})
	}, nil)
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}

	var buf strings.Builder
	if err := r.WriteTree(&buf); err != nil {
		t.Fatalf("write tree failed: %v", err)
	}
	out := buf.String()

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("line count = %d, want 5:\n%s", len(lines), out)
	}
	if lines[0] != "Root" {
		t.Fatalf("first line = %q, want \"Root\"", lines[0])
	}
	if !strings.Contains(out, "{header}") {
		t.Fatalf("missing header payload:\n%s", out)
	}
	if !strings.Contains(out, "{body}") {
		t.Fatalf("missing body payload:\n%s", out)
	}
	if strings.Count(out, "<group>") != 2 {
		t.Fatalf("expected root and child groups in output:\n%s", out)
	}
	if !strings.Contains(out, "├── ") || !strings.Contains(out, "└── ") {
		t.Fatalf("missing tree connectors:\n%s", out)
	}
}

func TestWriteTreeWithCustomDisplay(t *testing.T) {
	r, err := Compose(func(s *Scope) {
		labelNode(s, "only", nil)
	}, nil)
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}

	var buf strings.Builder
	err = r.WriteTreeWith(&buf, func(payload any, ok bool) string {
		if !ok {
			return "group"
		}
		return "node:" + derefPayload(payload).(label).Text
	})
	if err != nil {
		t.Fatalf("write tree failed: %v", err)
	}
	if !strings.Contains(buf.String(), "node:only") {
		t.Fatalf("custom display not applied:\n%s", buf.String())
	}
}
