// Package raw reads environment variables without logging
// the logger bootstraps from it, so it must not import the logger
package raw

import (
	"os"
	"strconv"
	"strings"
)

// Conf is a prefixed view over the environment
type Conf struct{ prefix string }

// New returns the unprefixed view
func New() Conf { return Conf{} }

// Prefix narrows the view, e.g. Prefix("LOG_")
func (c Conf) Prefix(p string) Conf { return Conf{prefix: c.prefix + p} }

// Get returns the trimmed value of key or def when unset or blank
func (c Conf) Get(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(c.prefix + key)); v != "" {
		return v
	}
	return def
}

// GetBool parses key with strconv.ParseBool plus "yes"; anything unparsable is def
func (c Conf) GetBool(key string, def bool) bool {
	v := strings.ToLower(c.Get(key, ""))
	if v == "yes" {
		return true
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return def
}
