package core

import (
	"regexp"
	"testing"
	"time"
)

var (
	namePattern = regexp.MustCompile(`^lemma-[0-9]{8}-[0-9a-f]{16}$`)
	keyPattern  = regexp.MustCompile(`^[0-9a-f]{64}$`)
)

func TestGenerateInstanceNameUnique(t *testing.T) {
	seen := make(map[string]bool, 10000)
	for range 10000 {
		name := GenerateInstanceName()
		if !namePattern.MatchString(name) {
			t.Fatalf("unexpected name format: %q", name)
		}
		if seen[name] {
			t.Fatalf("duplicate name: %q", name)
		}
		seen[name] = true
	}
}

func TestInstanceNameUsesUTCDate(t *testing.T) {
	now := time.Date(2024, 12, 31, 23, 30, 0, 0, time.FixedZone("X", -2*3600))
	name := instanceName(now)
	if name[:15] != "lemma-20250101-" {
		t.Errorf("expected UTC date prefix, got %q", name)
	}
}

func TestGenerateSecretKey(t *testing.T) {
	seen := make(map[string]bool, 10000)
	for range 10000 {
		key := GenerateSecretKey()
		if !keyPattern.MatchString(key) {
			t.Fatalf("unexpected key format: %q", key)
		}
		if seen[key] {
			t.Fatalf("duplicate key: %q", key)
		}
		seen[key] = true
	}
}
