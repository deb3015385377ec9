// Package pattern detects repeated visual structures in a normalized
// capture tree.
//
// A Registry is fed every node of a single traversal through Observe, which
// files the node under a coarse structural fingerprint and counts
// occurrences. Once a fingerprint has been seen twice the caller may
// Promote a master node for it; later observations of the same fingerprint
// then return that master so the caller can emit instances instead of
// duplicating the subtree. The registry never promotes on its own —
// materializing a reusable definition is a scene-graph side effect that
// belongs to the caller.
//
// A Registry accumulates for the lifetime of one import run and is not safe
// for concurrent use; create one per run and let it go out of scope.
package pattern

import (
	"github.com/stickerverse/figmacionvert-v3-sub010/capture"
)

// RepeatThreshold is the occurrence count at which a fingerprint is
// considered a repeated pattern.
const RepeatThreshold = 2

// entry tracks one fingerprint. The master doubles as the signature-index
// target once promoted, so the two lookup paths can never disagree.
type entry struct {
	count  int
	master *capture.Node
}

// Registry tracks components, signatures, and structural fingerprints
// during one import traversal.
type Registry struct {
	components   map[string]*capture.Node
	signatures   map[string]*capture.Node
	fingerprints map[string]*entry
	byNode       map[string]string // node id → fingerprint
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		components:   make(map[string]*capture.Node),
		signatures:   make(map[string]*capture.Node),
		fingerprints: make(map[string]*entry),
		byNode:       make(map[string]string),
	}
}

// RegisterComponent stores a materialized definition under id.
// Last write wins on collision.
func (r *Registry) RegisterComponent(id string, node *capture.Node) {
	if id == "" {
		return
	}
	r.components[id] = node
}

// Component returns the component registered under id, or nil.
func (r *Registry) Component(id string) *capture.Node {
	return r.components[id]
}

// HasComponent reports whether id is registered.
func (r *Registry) HasComponent(id string) bool {
	_, ok := r.components[id]
	return ok
}

// RegisterSignature stores a caller-controlled secondary index entry.
// An empty signature is a no-op.
func (r *Registry) RegisterSignature(signature string, node *capture.Node) {
	if signature == "" {
		return
	}
	r.signatures[signature] = node
}

// BySignature returns the node registered under signature, or nil.
// Promoted fingerprints are reachable here as well.
func (r *Registry) BySignature(signature string) *capture.Node {
	if signature == "" {
		return nil
	}
	return r.signatures[signature]
}

// Observe files node under its structural fingerprint and records the
// nodeID → fingerprint association (overwriting any prior one for that id).
//
// The first occurrence of a fingerprint returns nil — no master can exist
// yet. Every later occurrence increments the counter; once the counter has
// reached RepeatThreshold AND a master has been promoted, the master is
// returned. Callers are expected to Promote after the second occurrence and
// before any third, so repeats from then on resolve to the master.
func (r *Registry) Observe(nodeID string, node *capture.Node) *capture.Node {
	fp := Fingerprint(node)
	r.byNode[nodeID] = fp

	e, ok := r.fingerprints[fp]
	if !ok {
		r.fingerprints[fp] = &entry{count: 1}
		return nil
	}
	e.count++
	if e.count >= RepeatThreshold && e.master != nil {
		return e.master
	}
	return nil
}

// Promote sets the master node for a fingerprint that has been observed at
// least once. Unseen fingerprints are ignored. The fingerprint itself is
// also registered as a signature pointing at the master, unifying the two
// indexes. May be called again; the last master wins.
func (r *Registry) Promote(fingerprint string, master *capture.Node) {
	e, ok := r.fingerprints[fingerprint]
	if !ok {
		return
	}
	e.master = master
	r.RegisterSignature(fingerprint, master)
}

// FingerprintOf returns the fingerprint recorded for a node id by Observe,
// or "".
func (r *Registry) FingerprintOf(nodeID string) string {
	return r.byNode[nodeID]
}

// MasterFor returns the promoted master for a fingerprint, or nil.
func (r *Registry) MasterFor(fingerprint string) *capture.Node {
	e, ok := r.fingerprints[fingerprint]
	if !ok {
		return nil
	}
	return e.master
}

// Stats is a monitoring snapshot of registry occupancy.
type Stats struct {
	Components       int `json:"components"`
	Signatures       int `json:"signatures"`
	Fingerprints     int `json:"fingerprints"`
	RepeatedPatterns int `json:"repeatedPatterns"`
}

// Stats counts registered components, signatures, tracked fingerprints, and
// fingerprints whose occurrence count has reached RepeatThreshold.
func (r *Registry) Stats() Stats {
	s := Stats{
		Components:   len(r.components),
		Signatures:   len(r.signatures),
		Fingerprints: len(r.fingerprints),
	}
	for _, e := range r.fingerprints {
		if e.count >= RepeatThreshold {
			s.RepeatedPatterns++
		}
	}
	return s
}
