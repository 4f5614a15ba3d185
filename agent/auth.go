package agent

import (
	"crypto/subtle"
	"errors"
	"strings"
)

var errUnauthorized = errors.New("go away")

// checkBearer validates the Authorization header of a function URL request.
// Header names arrive lowercased from the function URL frontend but are
// matched case-insensitively anyway.
func checkBearer(headers map[string]string, key string) error {
	var auth string
	for name, value := range headers {
		if strings.EqualFold(name, "authorization") {
			auth = value
			break
		}
	}
	provided := []byte(strings.ToLower(auth))
	expected := []byte("bearer " + strings.ToLower(key))
	if subtle.ConstantTimeCompare(provided, expected) != 1 {
		return errUnauthorized
	}
	return nil
}
