package payload

import (
	"strings"
	"testing"
)

func TestDetectionBoundaries(t *testing.T) {
	t.Parallel()
	bs := DetectionBoundaries()
	if len(bs) == 0 {
		t.Fatal("DetectionBoundaries() returned empty slice")
	}
	if bs[0].Prefix != "" || bs[0].Suffix != "" {
		t.Errorf("first boundary = %+v, want bare numeric context", bs[0])
	}
	seen := make(map[string]bool)
	for _, b := range bs {
		key := b.Prefix + "|" + b.Suffix
		if seen[key] {
			t.Errorf("duplicate boundary %q", key)
		}
		seen[key] = true
		if b.Comment == "" {
			t.Errorf("boundary %q has no description", key)
		}
	}
}

func TestBreakers_UnbalanceQuery(t *testing.T) {
	t.Parallel()
	for _, br := range Breakers() {
		if !strings.ContainsAny(br, "'\"`\\)") {
			t.Errorf("breaker %q contains no quote, paren, or escape", br)
		}
	}
}

func TestConditions(t *testing.T) {
	t.Parallel()
	tc, fc := Conditions()
	if tc == fc {
		t.Fatal("true and false conditions must differ")
	}
}
