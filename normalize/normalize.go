// Package normalize rewrites a raw captured document tree into a clean,
// presentation-oriented hierarchy.
//
// The pass works post-order (children before parent) and applies four rules
// per node: pseudo-element normalization, professional naming, empty-wrapper
// removal, and single-child wrapper collapse. Sibling order is always
// preserved, removal and collapse never touch unrelated subtrees, and the
// pass is total — malformed input degrades, it never errors.
//
// Usage:
//
//	root, report := normalize.Tree(capturedRoot)
//	slog.Info("normalized", "removed", report.RemovedNodes, "depth", report.MaxDepthAfter)
package normalize

import (
	"github.com/stickerverse/figmacionvert-v3-sub010/capture"
)

// Report summarizes one normalization run.
type Report struct {
	RemovedNodes      int `json:"removedNodes"`
	CollapsedWrappers int `json:"collapsedWrappers"`
	RenamedNodes      int `json:"renamedNodes"`
	MaxDepthBefore    int `json:"maxDepthBefore"`
	MaxDepthAfter     int `json:"maxDepthAfter"`
}

// Tree normalizes root and returns the new root plus a report. The input
// tree is rewritten in place; the returned root may be the input node, one
// of its descendants (wrapper collapse), or nil when the whole tree proved
// structurally insignificant. A nil input returns nil with zero depths.
func Tree(root *capture.Node) (*capture.Node, Report) {
	var rep Report
	rep.MaxDepthBefore = capture.Depth(root)
	rep.MaxDepthAfter = rep.MaxDepthBefore
	if root == nil {
		return nil, rep
	}

	out := normalizeNode(root, &rep)
	var newRoot *capture.Node
	if len(out) > 0 {
		newRoot = out[0]
	}
	rep.MaxDepthAfter = capture.Depth(newRoot)
	return newRoot, rep
}

// normalizeNode returns the node's replacement in its parent's child list:
// the node itself, its sole child, or nothing.
func normalizeNode(n *capture.Node, rep *Report) []*capture.Node {
	// Children first, flattened in order.
	kept := n.Children[:0]
	for _, c := range n.Children {
		kept = append(kept, normalizeNode(c, rep)...)
	}
	n.Children = kept

	// Pseudo-element slots hold at most one node; a slot whose occupant
	// normalizes away is cleared.
	if n.Before != nil {
		n.Before = firstOrNil(normalizeNode(n.Before, rep))
	}
	if n.After != nil {
		n.After = firstOrNil(normalizeNode(n.After, rep))
	}

	if isGenericName(n.Name) {
		if derived, ok := deriveName(n); ok {
			n.Name = derived
			rep.RenamedNodes++
		}
	}

	plain := n.Kind == capture.KindContainer &&
		n.Before == nil && n.After == nil &&
		isGenericTag(n.HTMLTag) &&
		!meaningfullyIdentified(n) &&
		!visuallySignificant(n)

	if plain && len(n.Children) == 0 {
		rep.RemovedNodes++
		return nil
	}

	if plain && len(n.Children) == 1 {
		child := n.Children[0]
		// The child's relative offsets were computed against this
		// node's coordinate frame, which no longer exists. Absolute
		// coordinates are maintained elsewhere in the capture format
		// and stay valid.
		child.RelativeX = nil
		child.RelativeY = nil
		rep.CollapsedWrappers++
		rep.RemovedNodes++
		return []*capture.Node{child}
	}

	return []*capture.Node{n}
}

func firstOrNil(nodes []*capture.Node) *capture.Node {
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

// isGenericTag reports whether tag belongs to the fixed set of structurally
// meaningless markup tags eligible for pruning.
func isGenericTag(tag string) bool {
	return tag == "div" || tag == "span"
}
