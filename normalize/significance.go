package normalize

import (
	"strings"

	"github.com/stickerverse/figmacionvert-v3-sub010/capture"
)

// minVisibleAlpha is the combined paint-opacity × color-alpha below which a
// solid paint is treated as invisible.
const minVisibleAlpha = 0.001

// opaqueThreshold: opacity below this is an intentional transparency
// wrapper, not floating-point noise around 1.0.
const opaqueThreshold = 0.999

// meaningfullyIdentified reports whether the node carries identity the
// author (or tooling) attached deliberately. Identified nodes are never
// pruned even when invisible.
func meaningfullyIdentified(n *capture.Node) bool {
	return n.AriaLabel != "" ||
		n.CSSID != "" ||
		len(n.DataAttrs) > 0 ||
		len(n.Interactions) > 0 ||
		n.IsComponent || n.IsInstance
}

// visuallySignificant reports whether removing the node would change
// rendered output.
func visuallySignificant(n *capture.Node) bool {
	switch n.Kind {
	case capture.KindText, capture.KindImage, capture.KindVector:
		return true
	}
	if strings.TrimSpace(n.SVG) != "" {
		return true
	}
	for _, f := range n.Fills {
		switch f.Type {
		case capture.PaintImage, capture.PaintGradient:
			// Image and gradient paints count regardless of opacity.
			return true
		default:
			if f.Alpha() > minVisibleAlpha {
				return true
			}
		}
	}
	for _, s := range n.Strokes {
		if s.Weight > 0 && s.Alpha() > minVisibleAlpha {
			return true
		}
	}
	for _, e := range n.Effects {
		if e.On() {
			return true
		}
	}
	if n.Opacity != nil && *n.Opacity < opaqueThreshold {
		return true
	}
	if clips(n) {
		return true
	}
	if cssSet(n.Transform) || cssSet(n.Filter) || cssSet(n.Perspective) {
		return true
	}
	return false
}

// clips reports whether the node restricts painting of its descendants.
func clips(n *capture.Node) bool {
	return overflowHides(n.OverflowX) || overflowHides(n.OverflowY) ||
		cssSet(n.ClipPath) || n.Mask || len(n.BackdropBlur) > 0
}

func overflowHides(v string) bool {
	return v != "" && v != "visible"
}

// cssSet reports whether a CSS-valued property is present; "none" is the
// computed-style spelling of absent.
func cssSet(v string) bool {
	return v != "" && v != "none"
}
