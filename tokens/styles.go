package tokens

import (
	"context"
	"fmt"
	"strings"

	"github.com/stickerverse/figmacionvert-v3-sub010/archive"
)

// DefaultFamily is the substitute for fonts the plugin cannot load.
const DefaultFamily = "Inter"

// Style is one style resource to materialize in the host document.
type Style struct {
	Category string        `json:"category"` // colors, typography, spacing
	Name     string        `json:"name"`
	Token    archive.Token `json:"token"`
}

// Creator materializes one style resource. Implementations live on the
// plugin side of the bridge; the importer only sequences the calls.
type Creator interface {
	CreateStyle(ctx context.Context, s Style) error
}

// CreatorFunc adapts a function to the Creator interface.
type CreatorFunc func(ctx context.Context, s Style) error

func (f CreatorFunc) CreateStyle(ctx context.Context, s Style) error {
	return f(ctx, s)
}

// MaterializeResult reports how far a materialization batch got.
type MaterializeResult struct {
	Created   int `json:"created"`
	Failed    int `json:"failed"`
	Remaining int `json:"remaining"` // cut off by the deadline
}

// Materialize creates every catalog entry through c in deterministic order
// (category by category, usage rank within each). The context deadline is
// the batch budget: once it expires the remaining entries are counted and
// skipped rather than attempted. Individual creation failures are counted
// and do not stop the batch.
func Materialize(ctx context.Context, c Creator, cat archive.DesignTokens) MaterializeResult {
	var res MaterializeResult
	batch := flatten(cat)
	for i, s := range batch {
		select {
		case <-ctx.Done():
			res.Remaining = len(batch) - i
			return res
		default:
		}
		if err := c.CreateStyle(ctx, s); err != nil {
			res.Failed++
			continue
		}
		res.Created++
	}
	return res
}

func flatten(cat archive.DesignTokens) []Style {
	var out []Style
	add := func(category string, m map[string]archive.Token) {
		for _, name := range rank(m) {
			out = append(out, Style{Category: category, Name: name, Token: m[name]})
		}
	}
	add("colors", cat.Colors)
	add("typography", cat.Typography)
	add("spacing", cat.Spacing)
	return out
}

// ResolveFont matches a requested family against the manifest font
// inventory, falling back to DefaultFamily when the capture never loaded
// the face. Matching is case-insensitive on the family name.
func ResolveFont(inventory []archive.FontRef, family string) archive.FontRef {
	want := strings.ToLower(strings.TrimSpace(family))
	for _, f := range inventory {
		if strings.ToLower(f.Family) == want && want != "" {
			return f
		}
	}
	return archive.FontRef{Family: DefaultFamily, Style: "Regular"}
}

// StyleName renders a catalog entry as a display name for the host
// document, e.g. "colors/#1a2b3c".
func StyleName(s Style) string {
	return fmt.Sprintf("%s/%s", s.Category, s.Name)
}
