package compact

import (
	"strings"
	"testing"

	"github.com/stickerverse/figmacionvert-v3-sub010/archive"
	"github.com/stickerverse/figmacionvert-v3-sub010/capture"
)

// blob returns a base64-looking string whose decoded size is kb kilobytes.
func blob(kb int) string {
	return strings.Repeat("A", kb*1024*4/3)
}

func chain(depth int) *capture.Node {
	root := &capture.Node{Kind: capture.KindContainer, Name: "root"}
	cur := root
	for i := 1; i < depth; i++ {
		next := &capture.Node{Kind: capture.KindContainer}
		cur.Children = []*capture.Node{next}
		cur = next
	}
	return root
}

func treeDepth(n *capture.Node) int {
	if n == nil {
		return 0
	}
	max := 0
	for _, c := range n.Children {
		if d := treeDepth(c); d > max {
			max = d
		}
	}
	return max + 1
}

func TestUnderTargetUntouched(t *testing.T) {
	p := &archive.Payload{
		Tree: chain(20),
		Assets: archive.Assets{
			Images: map[string]archive.ImageAsset{"big": {Base64: blob(100)}},
		},
		Screenshot: blob(50),
	}
	before := EstimateSize(p)

	res := Run(p, Options{})

	if res.Compacted {
		t.Fatalf("payload under target was compacted: %+v", res)
	}
	if res.FinalBytes != before {
		t.Fatalf("FinalBytes = %d, want %d", res.FinalBytes, before)
	}
	if _, ok := p.Assets.Images["big"]; !ok {
		t.Fatal("asset evicted from a payload under target")
	}
	if treeDepth(p.Tree) != 20 {
		t.Fatalf("tree depth changed to %d", treeDepth(p.Tree))
	}
}

func TestStandardPassEvictsBySize(t *testing.T) {
	p := &archive.Payload{
		Tree: chain(3),
		Assets: archive.Assets{
			Images: map[string]archive.ImageAsset{
				"small": {Base64: blob(50)},
				"big":   {Base64: blob(2048)},
			},
			SVGs: map[string]archive.SVGAsset{
				"icon":   {Code: strings.Repeat("p", 10*1024)},
				"poster": {Code: strings.Repeat("p", 40*1024)},
			},
		},
	}

	res := Run(p, Options{TargetMB: 1})

	if !res.Compacted {
		t.Fatal("oversized payload not compacted")
	}
	if _, ok := p.Assets.Images["big"]; ok {
		t.Error("2 MB image survived the 75 KB limit")
	}
	if _, ok := p.Assets.Images["small"]; !ok {
		t.Error("50 KB image evicted under the 75 KB limit")
	}
	if _, ok := p.Assets.SVGs["poster"]; ok {
		t.Error("40 KB svg survived the 30 KB limit")
	}
	if _, ok := p.Assets.SVGs["icon"]; !ok {
		t.Error("10 KB svg evicted under the 30 KB limit")
	}
	if res.RemovedImages != 1 || res.RemovedSVGs != 1 {
		t.Errorf("removed images=%d svgs=%d, want 1 and 1", res.RemovedImages, res.RemovedSVGs)
	}
}

func TestDepthTruncation(t *testing.T) {
	p := &archive.Payload{
		Tree:   chain(15),
		Assets: archive.Assets{Images: map[string]archive.ImageAsset{"big": {Base64: blob(2048)}}},
	}

	res := Run(p, Options{TargetMB: 1})

	// Depth counts nodes; the cap clears children at level 10, so the
	// deepest surviving node sits 11 nodes from the root.
	if got := treeDepth(p.Tree); got != 11 {
		t.Fatalf("tree depth after standard pass = %d, want 11", got)
	}
	if res.TruncatedNodes == 0 {
		t.Error("no truncation recorded for a 15-deep chain")
	}
}

func TestAggressiveStripsOptional(t *testing.T) {
	p := &archive.Payload{
		Tree:       chain(15),
		Screenshot: blob(50),
		Snapshot:   "<html></html>",
		Components: archive.Components{
			Definitions: map[string]*capture.Node{"card": chain(2)},
		},
		CSSVariables: map[string]string{"--brand": "#ff0000"},
		Assets: archive.Assets{
			Images: map[string]archive.ImageAsset{
				"mid": {Base64: blob(50)},
				"big": {Base64: blob(2048)},
			},
		},
	}

	res := Run(p, Options{TargetMB: 1, Aggressive: true})

	if !res.Aggressive {
		t.Fatal("aggressive pass not recorded")
	}
	if p.Screenshot != "" || p.Snapshot != "" {
		t.Error("screenshot or snapshot survived the aggressive pass")
	}
	if len(p.Components.Definitions) != 0 {
		t.Error("component definitions survived the aggressive pass")
	}
	if p.CSSVariables != nil {
		t.Error("css variables survived the aggressive pass")
	}
	if _, ok := p.Assets.Images["mid"]; ok {
		t.Error("50 KB image survived the 25 KB aggressive limit")
	}
	if got := treeDepth(p.Tree); got != 7 {
		t.Errorf("tree depth after aggressive pass = %d, want 7", got)
	}
}

func TestAutoEscalatesWhenStillOverTarget(t *testing.T) {
	// Thirty 50 KB images pass the standard 75 KB limit but together stay
	// over the 1 MB target, so the aggressive pass must follow and evict
	// them under its 25 KB limit.
	images := map[string]archive.ImageAsset{}
	for i := 0; i < 30; i++ {
		images["img"+strings.Repeat("x", i)] = archive.ImageAsset{Base64: blob(50)}
	}
	p := &archive.Payload{
		Tree:   chain(3),
		Assets: archive.Assets{Images: images},
	}

	res := Run(p, Options{TargetMB: 1})

	if !res.Aggressive {
		t.Fatal("standard pass left payload over target but aggressive never ran")
	}
	if len(p.Assets.Images) != 0 {
		t.Errorf("%d images survived both passes", len(p.Assets.Images))
	}
	if res.RemovedImages != 30 {
		t.Errorf("RemovedImages = %d, want 30", res.RemovedImages)
	}
}

func TestNeverGrows(t *testing.T) {
	p := &archive.Payload{
		Tree: chain(30),
		Assets: archive.Assets{
			Images: map[string]archive.ImageAsset{"big": {Base64: blob(2048)}},
			SVGs:   map[string]archive.SVGAsset{"poster": {Code: strings.Repeat("p", 64*1024)}},
		},
		Screenshot: blob(500),
	}

	res := Run(p, Options{TargetMB: 1})

	if res.FinalBytes > res.OriginalBytes {
		t.Fatalf("compaction grew payload: %d -> %d", res.OriginalBytes, res.FinalBytes)
	}
}
