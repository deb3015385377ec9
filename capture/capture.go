// Package capture defines the data model for captured web-page documents.
//
// A capture is an ordered tree of Nodes produced by the browser-side
// extension. The model is deliberately forgiving: every optional field has a
// safe zero value, decoding never fails on structurally odd payloads, and
// downstream consumers (normalize, pattern, convert) treat missing data as
// absent rather than invalid. A malformed capture degrades to an empty or
// partial tree — it never aborts an import.
//
// Usage:
//
//	var node capture.Node
//	_ = json.Unmarshal(payload, &node)
//	depth := capture.Depth(&node)
package capture

import "strings"

// Depth returns the maximum root-to-leaf node count. A non-nil leaf has
// depth 1; a nil root has depth 0. Pseudo-element slots do not contribute.
func Depth(n *Node) int {
	if n == nil {
		return 0
	}
	max := 0
	for _, c := range n.Children {
		if d := Depth(c); d > max {
			max = d
		}
	}
	return max + 1
}

// FirstText returns the first non-empty text content found by depth-first
// search starting at n, with whitespace runs collapsed to single spaces.
// Returns "" when the subtree carries no text.
func FirstText(n *Node) string {
	if n == nil {
		return ""
	}
	if t := CollapseSpace(n.Characters); t != "" {
		return t
	}
	for _, c := range n.Children {
		if t := FirstText(c); t != "" {
			return t
		}
	}
	return ""
}

// CollapseSpace trims s and collapses internal whitespace runs to single
// spaces.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
