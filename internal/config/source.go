package config

import (
	"os"
	"strings"
)

// Source is an immutable view of the process environment, captured once at
// startup. A missing key is a valid state and always reads as "".
type Source struct {
	values map[string]string
}

// FromEnv captures the current process environment.
func FromEnv() Source {
	return FromEnviron(os.Environ())
}

// FromEnviron builds a Source from KEY=VALUE pairs. Malformed entries are skipped.
func FromEnviron(environ []string) Source {
	m := make(map[string]string, len(environ))
	for _, pair := range environ {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		m[k] = v
	}
	return Source{values: m}
}

// FromMap copies m into a new Source.
func FromMap(m map[string]string) Source {
	values := make(map[string]string, len(m))
	for k, v := range m {
		values[k] = v
	}
	return Source{values: values}
}

// Lookup returns the value for key and whether it was present at all.
func (s Source) Lookup(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Get returns the value for key, or "" when absent.
func (s Source) Get(key string) string {
	return s.values[key]
}

// FirstNonEmpty returns the value of the first key that is set to a
// non-empty value.
func (s Source) FirstNonEmpty(keys ...string) string {
	for _, k := range keys {
		if v := s.values[k]; v != "" {
			return v
		}
	}
	return ""
}
