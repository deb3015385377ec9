// Package idgen provides pluggable ID generation.
//
// Anything that mints identifiers (capture jobs, conversion node IDs,
// event and audit rows) takes a Generator, so the strategy is picked where
// the component is constructed. Jobs and audit rows use prefixed UUIDv7
// so rows sort by creation time; per-conversion node IDs use NanoID
// because thousands of them end up inside the exported document, where
// 36-character UUIDs would bloat the payload.
package idgen

import (
	"crypto/rand"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

const nanoAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NanoID returns a Generator producing base-36 IDs of the given length.
// Short and URL-safe; collision odds depend on length, so keep it for
// IDs scoped to a single conversion or similar bounded namespaces.
func NanoID(length int) Generator {
	return func() string {
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			panic("idgen: crypto/rand failed: " + err.Error())
		}
		out := make([]byte, length)
		for i, b := range buf {
			out[i] = nanoAlphabet[int(b)%len(nanoAlphabet)]
		}
		return string(out)
	}
}

// UUIDv7 returns a Generator producing RFC 9562 UUID v7 strings,
// time-sortable and globally unique.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends a fixed type tag to every ID ("job_", "node_", "evt_").
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Default is UUIDv7. Prefixed variants compose on top.
var Default Generator = UUIDv7()

// New produces an ID using the Default generator.
func New() string {
	return Default()
}
