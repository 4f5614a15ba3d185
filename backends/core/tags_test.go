package core

import (
	"strings"
	"testing"
	"time"
)

func TestTagSetAsMap(t *testing.T) {
	ts := TagSet{
		CreatedBy: "host-1",
		CreatedAt: time.Date(2025, 1, 15, 10, 30, 0, 0, time.FixedZone("CET", 3600)),
	}
	m := ts.AsMap()

	expected := map[string]string{
		"lemma-managed":    "true",
		"lemma-created-by": "host-1",
		"lemma-created-at": "2025-01-15T09:30:00Z",
	}

	if len(m) != len(expected) {
		t.Fatalf("expected %d keys, got %d", len(expected), len(m))
	}
	for k, v := range expected {
		if m[k] != v {
			t.Errorf("key %q: expected %q, got %q", k, v, m[k])
		}
	}
}

func TestTagSetTruncatesHost(t *testing.T) {
	ts := TagSet{CreatedBy: strings.Repeat("h", 300), CreatedAt: time.Now()}
	if got := len(ts.AsMap()["lemma-created-by"]); got != 256 {
		t.Errorf("expected tag value of 256 bytes, got %d", got)
	}
}

func TestDefaultHostID(t *testing.T) {
	if DefaultHostID() == "" {
		t.Error("expected non-empty host id")
	}
}
