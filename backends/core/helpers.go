package core

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/dadevel/lemma/api"
)

// GenerateInstanceName returns a new instance name of the form
// lemma-YYYYMMDD-<16 hex chars>. The date is in UTC.
func GenerateInstanceName() string {
	return instanceName(time.Now())
}

func instanceName(now time.Time) string {
	return api.NamePrefix + now.UTC().Format("20060102") + "-" + randomHex(8)
}

// GenerateSecretKey generates a random 64-character hex key (256 bits).
func GenerateSecretKey() string {
	return randomHex(32)
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
