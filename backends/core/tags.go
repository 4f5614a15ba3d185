package core

import (
	"os"
	"time"
)

// TagSet holds the standard lemma tags for a cloud resource.
type TagSet struct {
	CreatedBy string
	CreatedAt time.Time
}

// AsMap returns tags as map[string]string.
func (ts TagSet) AsMap() map[string]string {
	return map[string]string{
		"lemma-managed":    "true",
		"lemma-created-by": truncate(ts.CreatedBy, 256),
		"lemma-created-at": ts.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// NewTagSet returns tags describing a resource created now from this host.
func NewTagSet() TagSet {
	return TagSet{
		CreatedBy: DefaultHostID(),
		CreatedAt: time.Now(),
	}
}

// DefaultHostID returns the hostname or "unknown" if unavailable.
func DefaultHostID() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "unknown"
	}
	return h
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
