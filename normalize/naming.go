package normalize

import (
	"strings"

	"github.com/stickerverse/figmacionvert-v3-sub010/capture"
)

// previewLimit caps derived text previews, in runes.
const previewLimit = 42

// genericNames are boilerplate labels that carry no design intent; a node
// named one of these (or nothing) is a candidate for renaming.
var genericNames = map[string]bool{
	"frame":     true,
	"group":     true,
	"div":       true,
	"span":      true,
	"container": true,
	"wrapper":   true,
	"svg":       true,
	"image":     true,
	"text":      true,
}

// semanticTags maps landmark markup tags to display names.
var semanticTags = map[string]string{
	"header":  "Header",
	"nav":     "Navigation",
	"main":    "Main",
	"footer":  "Footer",
	"section": "Section",
	"article": "Article",
	"aside":   "Aside",
}

func isGenericName(name string) bool {
	return name == "" || genericNames[strings.ToLower(name)]
}

// deriveName attempts to produce a professional layer name for a node with
// a generic name. Priority: semantic landmark tag, aria label, image alt,
// CSS id, button/link text, plain text content. Returns ok=false when no
// rule applies; the caller then leaves the name untouched.
func deriveName(n *capture.Node) (string, bool) {
	if label, ok := semanticTags[n.HTMLTag]; ok {
		return label, true
	}
	if n.AriaLabel != "" {
		return n.AriaLabel, true
	}
	if n.Kind == capture.KindImage {
		if alt := capture.CollapseSpace(n.Attributes["alt"]); alt != "" {
			return "Image: " + alt, true
		}
	}
	if n.CSSID != "" {
		return "#" + n.CSSID, true
	}

	// Button/link naming outranks the plain text preview: a text node
	// inside (or rendered as) a button reads better as "Button: Buy now"
	// than as its raw characters.
	switch n.HTMLTag {
	case "button":
		if t := textPreview(n); t != "" {
			return "Button: " + t, true
		}
	case "a":
		if t := textPreview(n); t != "" {
			return "Link: " + t, true
		}
	}

	if n.Kind == capture.KindText {
		if t := textPreview(n); t != "" {
			return t, true
		}
	}
	return "", false
}

// textPreview finds the first non-empty text in the subtree and truncates
// it for use as a layer name.
func textPreview(n *capture.Node) string {
	t := capture.FirstText(n)
	if t == "" {
		return ""
	}
	runes := []rune(t)
	if len(runes) > previewLimit {
		return string(runes[:previewLimit]) + "…"
	}
	return t
}
