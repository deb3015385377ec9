// Package tokens builds and bounds the design-token catalog of an import.
//
// Capture-side tokens (colors, typography, spacing) are merged with colors
// observed directly on the normalized tree, ranked by usage, and capped so
// that a noisy page cannot flood the plugin with hundreds of one-off
// styles. Materialization into actual style resources goes through a
// caller-supplied Creator and is guarded by the context deadline — a slow
// style backend produces a partial catalog, never a stuck import.
package tokens

import (
	"fmt"
	"sort"

	"github.com/stickerverse/figmacionvert-v3-sub010/archive"
	"github.com/stickerverse/figmacionvert-v3-sub010/capture"
)

// Category caps, standard and aggressive.
const (
	MaxColors     = 30
	MaxTypography = 20
	MaxSpacing    = 25

	AggressiveMaxColors     = 15
	AggressiveMaxTypography = 10
	AggressiveMaxSpacing    = 10
)

// Collect derives color tokens from the fills and strokes of a normalized
// tree, keyed by hex value with usage counts. Image and gradient paints
// carry no single color and are skipped.
func Collect(root *capture.Node) archive.DesignTokens {
	usage := map[string]int{}
	var walk func(n *capture.Node)
	walk = func(n *capture.Node) {
		if n == nil {
			return
		}
		for _, f := range n.Fills {
			if f.Type == capture.PaintSolid && f.Color != nil && f.Alpha() > 0 {
				usage[hex(*f.Color)]++
			}
		}
		for _, s := range n.Strokes {
			if s.Color != nil && s.Weight > 0 && s.Alpha() > 0 {
				usage[hex(*s.Color)]++
			}
		}
		for _, c := range n.Children {
			walk(c)
		}
		walk(n.Before)
		walk(n.After)
	}
	walk(root)

	out := archive.DesignTokens{}
	if len(usage) > 0 {
		out.Colors = make(map[string]archive.Token, len(usage))
		for k, n := range usage {
			out.Colors[k] = archive.MakeToken(k, n)
		}
	}
	return out
}

// Merge overlays derived tokens onto capture-side tokens. Capture-side
// entries win on key collision — the extension saw the live page and its
// naming is richer than a raw hex key.
func Merge(captured, derived archive.DesignTokens) archive.DesignTokens {
	out := archive.DesignTokens{
		Colors:     mergeCategory(captured.Colors, derived.Colors),
		Typography: mergeCategory(captured.Typography, derived.Typography),
		Spacing:    mergeCategory(captured.Spacing, derived.Spacing),
	}
	return out
}

func mergeCategory(primary, secondary map[string]archive.Token) map[string]archive.Token {
	if len(primary) == 0 && len(secondary) == 0 {
		return nil
	}
	out := make(map[string]archive.Token, len(primary)+len(secondary))
	for k, v := range secondary {
		out[k] = v
	}
	for k, v := range primary {
		out[k] = v
	}
	return out
}

// Cap bounds every category to its limit, keeping the most used entries.
// Ties break on name so the result is deterministic.
func Cap(t archive.DesignTokens, aggressive bool) archive.DesignTokens {
	colors, typo, spacing := MaxColors, MaxTypography, MaxSpacing
	if aggressive {
		colors, typo, spacing = AggressiveMaxColors, AggressiveMaxTypography, AggressiveMaxSpacing
	}
	return archive.DesignTokens{
		Colors:     top(t.Colors, colors),
		Typography: top(t.Typography, typo),
		Spacing:    top(t.Spacing, spacing),
	}
}

func top(cat map[string]archive.Token, limit int) map[string]archive.Token {
	if cat == nil {
		return nil
	}
	if len(cat) <= limit {
		return cat
	}
	names := rank(cat)
	out := make(map[string]archive.Token, limit)
	for _, name := range names[:limit] {
		out[name] = cat[name]
	}
	return out
}

// rank orders token names by usage descending, then name ascending.
func rank(cat map[string]archive.Token) []string {
	names := make([]string, 0, len(cat))
	for k := range cat {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := cat[names[i]], cat[names[j]]
		if a.Usage != b.Usage {
			return a.Usage > b.Usage
		}
		return names[i] < names[j]
	})
	return names
}

func hex(c capture.Color) string {
	r := int(c.R*255 + 0.5)
	g := int(c.G*255 + 0.5)
	b := int(c.B*255 + 0.5)
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}
