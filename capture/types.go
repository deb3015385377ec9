package capture

// Node kinds produced by the browser-side extractor.
const (
	KindContainer = "container"
	KindText      = "text"
	KindImage     = "image"
	KindVector    = "vector"
)

// Paint fill types.
const (
	PaintSolid    = "solid"
	PaintImage    = "image"
	PaintGradient = "gradient"
)

// Node is one element of a captured document tree.
//
// Children are in document order; order is semantically meaningful for
// layout and is never reordered by any consumer. Pointer-valued numeric
// fields distinguish "absent" from zero where the distinction matters
// (opacity, relative offsets).
type Node struct {
	Kind     string  `json:"kind"`
	Name     string  `json:"name,omitempty"`
	HTMLTag  string  `json:"htmlTag,omitempty"`
	Children []*Node `json:"children"`

	// Visual attributes.
	Fills        []Paint  `json:"fills,omitempty"`
	Strokes      []Stroke `json:"strokes,omitempty"`
	Effects      []Effect `json:"effects,omitempty"`
	Opacity      *float64 `json:"opacity,omitempty"`
	OverflowX    string   `json:"overflowX,omitempty"`
	OverflowY    string   `json:"overflowY,omitempty"`
	ClipPath     string   `json:"clipPath,omitempty"`
	Mask         bool     `json:"mask,omitempty"`
	BackdropBlur []string `json:"backdropFilters,omitempty"`
	Transform    string   `json:"transform,omitempty"`
	Filter       string   `json:"filter,omitempty"`
	Perspective  string   `json:"perspective,omitempty"`
	CornerRadius float64  `json:"cornerRadius,omitempty"`
	SVG          string   `json:"svg,omitempty"`

	// Identification attributes.
	AriaLabel    string            `json:"ariaLabel,omitempty"`
	CSSID        string            `json:"cssId,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	DataAttrs    map[string]string `json:"dataAttributes,omitempty"`
	Interactions []string          `json:"interactions,omitempty"`
	IsComponent  bool              `json:"isComponent,omitempty"`
	IsInstance   bool              `json:"isInstance,omitempty"`

	// Layout attributes.
	Width      float64  `json:"width,omitempty"`
	Height     float64  `json:"height,omitempty"`
	RelativeX  *float64 `json:"relativeX,omitempty"`
	RelativeY  *float64 `json:"relativeY,omitempty"`
	LayoutMode string   `json:"layoutMode,omitempty"`

	// Text content, set when Kind is text.
	Characters string `json:"characters,omitempty"`

	// Pseudo-element slots; each holds at most one node.
	Before *Node `json:"before,omitempty"`
	After  *Node `json:"after,omitempty"`
}

// Paint is one fill descriptor.
type Paint struct {
	Type    string   `json:"type"`
	Opacity *float64 `json:"opacity,omitempty"`
	Color   *Color   `json:"color,omitempty"`
}

// Alpha returns paint opacity multiplied by color alpha. Absent opacity
// means fully opaque; absent color contributes alpha 1 (image and gradient
// paints carry no color).
func (p Paint) Alpha() float64 {
	a := 1.0
	if p.Opacity != nil {
		a = *p.Opacity
	}
	if p.Color != nil {
		a *= p.Color.A
	}
	return a
}

// Stroke is one border descriptor.
type Stroke struct {
	Weight  float64  `json:"weight"`
	Opacity *float64 `json:"opacity,omitempty"`
	Color   *Color   `json:"color,omitempty"`
}

// Alpha returns stroke opacity multiplied by color alpha.
func (s Stroke) Alpha() float64 {
	a := 1.0
	if s.Opacity != nil {
		a = *s.Opacity
	}
	if s.Color != nil {
		a *= s.Color.A
	}
	return a
}

// Effect is one shadow/blur descriptor.
type Effect struct {
	Type    string `json:"type,omitempty"`
	Visible *bool  `json:"visible,omitempty"`
}

// On reports whether the effect is visible. Absent flag means visible.
func (e Effect) On() bool {
	return e.Visible == nil || *e.Visible
}

// Color is an RGBA color with channels in [0, 1].
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
	A float64 `json:"a"`
}
