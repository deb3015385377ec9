package capture

import (
	"encoding/json"
	"strings"
)

// UnmarshalJSON decodes a captured node leniently. The fast path is a
// strict decode; when any field carries an unexpected type the node is
// re-read field by field and only the offending fields are dropped.
// Decoding never returns an error for syntactically valid JSON: malformed
// optional fields coerce to their zero values and a non-array children
// field coerces to an empty sequence.
func (n *Node) UnmarshalJSON(data []byte) error {
	type plain Node
	var p plain
	if err := json.Unmarshal(data, &p); err == nil {
		*n = Node(p)
		n.applyDefaults()
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		// Not an object at all (string, number, array). Degrade to an
		// empty container rather than failing the whole tree.
		*n = Node{}
		n.applyDefaults()
		return nil
	}

	// Start over from a zero node: the failed strict pass may have left
	// partially decoded values behind (json allocates pointer fields before
	// discovering the value inside has the wrong type).
	p = plain{}

	take := func(key string, dst any) bool {
		raw, ok := fields[key]
		if !ok {
			return false
		}
		return json.Unmarshal(raw, dst) == nil
	}

	// Pointer fields go through a temporary so a malformed value reads as
	// absent instead of as a pointer to zero.
	var opacity, relX, relY float64

	take("kind", &p.Kind)
	take("name", &p.Name)
	take("htmlTag", &p.HTMLTag)
	take("children", &p.Children)
	take("fills", &p.Fills)
	take("strokes", &p.Strokes)
	take("effects", &p.Effects)
	if take("opacity", &opacity) {
		p.Opacity = &opacity
	}
	take("overflowX", &p.OverflowX)
	take("overflowY", &p.OverflowY)
	take("clipPath", &p.ClipPath)
	take("mask", &p.Mask)
	take("backdropFilters", &p.BackdropBlur)
	take("transform", &p.Transform)
	take("filter", &p.Filter)
	take("perspective", &p.Perspective)
	take("cornerRadius", &p.CornerRadius)
	take("svg", &p.SVG)
	take("ariaLabel", &p.AriaLabel)
	take("cssId", &p.CSSID)
	take("attributes", &p.Attributes)
	take("dataAttributes", &p.DataAttrs)
	take("interactions", &p.Interactions)
	take("isComponent", &p.IsComponent)
	take("isInstance", &p.IsInstance)
	take("width", &p.Width)
	take("height", &p.Height)
	if take("relativeX", &relX) {
		p.RelativeX = &relX
	}
	if take("relativeY", &relY) {
		p.RelativeY = &relY
	}
	take("layoutMode", &p.LayoutMode)
	take("characters", &p.Characters)
	take("before", &p.Before)
	take("after", &p.After)

	*n = Node(p)
	n.applyDefaults()
	return nil
}

func (n *Node) applyDefaults() {
	if n.Kind == "" {
		n.Kind = KindContainer
	}
	n.HTMLTag = strings.ToLower(n.HTMLTag)
	if n.Children == nil {
		n.Children = []*Node{}
	}
}

// UnmarshalJSON accepts either a channel object {"r":..,"g":..,"b":..,"a":..}
// or a CSS color string ("#rrggbb", "rgba(..)"). Unparseable input decodes
// to opaque black, keeping the paint visible rather than silently pruning
// the node that carries it.
func (c *Color) UnmarshalJSON(data []byte) error {
	var obj struct {
		R *float64 `json:"r"`
		G *float64 `json:"g"`
		B *float64 `json:"b"`
		A *float64 `json:"a"`
	}
	if err := json.Unmarshal(data, &obj); err == nil && (obj.R != nil || obj.G != nil || obj.B != nil || obj.A != nil) {
		c.R = deref(obj.R, 0)
		c.G = deref(obj.G, 0)
		c.B = deref(obj.B, 0)
		c.A = deref(obj.A, 1)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if parsed, ok := ParseCSSColor(s); ok {
			*c = parsed
			return nil
		}
	}

	*c = Color{A: 1}
	return nil
}

func deref(p *float64, fallback float64) float64 {
	if p == nil {
		return fallback
	}
	return *p
}
