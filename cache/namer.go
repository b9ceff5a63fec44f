package cache

import (
	"regexp"
	"strings"
)

// namespaceSeparator joins the instance name and the caller's key.
const namespaceSeparator = "::"

// keyNamer prefixes keys with the owning instance name. Global keys skip the
// prefix and are shared across instances on the same backend.
type keyNamer struct {
	name string
}

// real returns the namespaced storage key.
func (n keyNamer) real(key string) string {
	return n.name + namespaceSeparator + key
}

// global returns the key untouched.
func (n keyNamer) global(key string) string {
	return key
}

// storageKey applies or skips the prefix according to the global flag.
func (n keyNamer) storageKey(key string, global bool) string {
	if global {
		return n.global(key)
	}
	return n.real(key)
}

// compilePattern converts a glob pattern to an anchored regexp. Only the *
// and ? metacharacters are understood; character classes are not supported.
// All other runes match literally.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			sb.WriteString("(.*)")
		case '?':
			sb.WriteString("(.?)")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return regexp.Compile(sb.String())
}
