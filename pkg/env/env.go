package env

import (
	"os"
	"strings"
)

// First returns the first non-blank value among keys, or fallback.
// Platform variables such as PORT are read this way so they can
// override the prefixed config.
func First(fallback string, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return fallback
}
