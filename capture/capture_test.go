package capture

import (
	"encoding/json"
	"testing"
)

func TestDecodeDefaults(t *testing.T) {
	var n Node
	if err := json.Unmarshal([]byte(`{}`), &n); err != nil {
		t.Fatal(err)
	}
	if n.Kind != KindContainer {
		t.Errorf("kind: got %q, want %q", n.Kind, KindContainer)
	}
	if n.Children == nil {
		t.Error("children: got nil, want empty slice")
	}
}

func TestDecodeLenient(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"children not an array", `{"kind":"container","children":"oops"}`},
		{"children is a number", `{"children":42}`},
		{"opacity is a string", `{"opacity":"half","children":[]}`},
		{"node is a string", `"not an object"`},
		{"attributes wrong type", `{"attributes":[1,2,3]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n Node
			if err := json.Unmarshal([]byte(tt.in), &n); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if n.Children == nil {
				t.Error("children not materialized")
			}
			if n.Kind == "" {
				t.Error("kind not defaulted")
			}
		})
	}
}

func TestDecodeLenientKeepsGoodFields(t *testing.T) {
	in := `{"kind":"text","characters":"Hello","opacity":"bad","htmlTag":"SPAN"}`
	var n Node
	if err := json.Unmarshal([]byte(in), &n); err != nil {
		t.Fatal(err)
	}
	if n.Kind != KindText || n.Characters != "Hello" {
		t.Errorf("good fields lost: %+v", n)
	}
	if n.Opacity != nil {
		t.Errorf("bad opacity kept: %v", *n.Opacity)
	}
	if n.HTMLTag != "span" {
		t.Errorf("htmlTag not lowercased: %q", n.HTMLTag)
	}
}

func TestDecodeLenientMalformedOffsets(t *testing.T) {
	in := `{"kind":"container","relativeX":"left","relativeY":{},"opacity":[1],"width":120}`
	var n Node
	if err := json.Unmarshal([]byte(in), &n); err != nil {
		t.Fatal(err)
	}
	if n.RelativeX != nil {
		t.Errorf("bad relativeX kept: %v", *n.RelativeX)
	}
	if n.RelativeY != nil {
		t.Errorf("bad relativeY kept: %v", *n.RelativeY)
	}
	if n.Opacity != nil {
		t.Errorf("bad opacity kept: %v", *n.Opacity)
	}
	if n.Width != 120 {
		t.Errorf("width: got %v, want 120", n.Width)
	}
}

func TestDecodeNested(t *testing.T) {
	in := `{"kind":"container","children":[
		{"kind":"text","characters":"a"},
		{"children":"broken"},
		{"kind":"image","before":{"kind":"text","characters":"::before"}}
	]}`
	var n Node
	if err := json.Unmarshal([]byte(in), &n); err != nil {
		t.Fatal(err)
	}
	if len(n.Children) != 3 {
		t.Fatalf("children: got %d, want 3", len(n.Children))
	}
	if n.Children[1].Kind != KindContainer || len(n.Children[1].Children) != 0 {
		t.Errorf("broken child not coerced: %+v", n.Children[1])
	}
	if n.Children[2].Before == nil || n.Children[2].Before.Characters != "::before" {
		t.Error("pseudo-element slot lost")
	}
}

func TestDepth(t *testing.T) {
	leaf := &Node{}
	mid := &Node{Children: []*Node{leaf}}
	root := &Node{Children: []*Node{mid, {}}}

	tests := []struct {
		node *Node
		want int
	}{
		{nil, 0},
		{leaf, 1},
		{mid, 2},
		{root, 3},
	}
	for _, tt := range tests {
		if got := Depth(tt.node); got != tt.want {
			t.Errorf("Depth: got %d, want %d", got, tt.want)
		}
	}
}

func TestFirstText(t *testing.T) {
	root := &Node{
		Children: []*Node{
			{Kind: KindContainer},
			{Kind: KindContainer, Children: []*Node{
				{Kind: KindText, Characters: "  deep \n text  "},
			}},
			{Kind: KindText, Characters: "later"},
		},
	}
	if got := FirstText(root); got != "deep text" {
		t.Errorf("FirstText: got %q, want %q", got, "deep text")
	}
	if got := FirstText(nil); got != "" {
		t.Errorf("FirstText(nil): got %q", got)
	}
}

func TestPaintAlpha(t *testing.T) {
	half := 0.5
	tests := []struct {
		paint Paint
		want  float64
	}{
		{Paint{Type: PaintSolid}, 1},
		{Paint{Type: PaintSolid, Opacity: &half}, 0.5},
		{Paint{Type: PaintSolid, Color: &Color{A: 0.5}}, 0.5},
		{Paint{Type: PaintSolid, Opacity: &half, Color: &Color{A: 0.5}}, 0.25},
	}
	for _, tt := range tests {
		if got := tt.paint.Alpha(); got != tt.want {
			t.Errorf("Alpha: got %v, want %v", got, tt.want)
		}
	}
}
