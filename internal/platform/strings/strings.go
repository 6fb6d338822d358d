// Package strings holds path helpers shared by the module kit
package strings

import std "strings"

// MustPrefix turns " toi/ " into "/toi"; it panics when nothing but slashes is left
func MustPrefix(s string) string {
	s = "/" + std.Trim(std.TrimSpace(s), " /")
	if s == "/" {
		panic("root path is required")
	}
	return s
}
