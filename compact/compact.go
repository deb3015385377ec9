// Package compact shrinks an oversized capture payload until the plugin
// bridge can carry it.
//
// Large pages produce payloads in the hundreds of megabytes, dominated by
// base64 image assets and deeply nested trees. Compaction evicts oversized
// assets, caps the design-token catalog, and truncates tree depth; the
// aggressive pass additionally drops the screenshot, pre-detected component
// definitions, and optional metadata. Compaction only ever removes data, so
// the estimated size is monotonically non-increasing across passes.
package compact

import (
	"encoding/json"

	"github.com/stickerverse/figmacionvert-v3-sub010/archive"
	"github.com/stickerverse/figmacionvert-v3-sub010/capture"
	"github.com/stickerverse/figmacionvert-v3-sub010/tokens"
)

const (
	// DefaultTargetMB is the payload size the plugin bridge comfortably
	// transfers.
	DefaultTargetMB = 150

	// hardLimitMB forces the aggressive pass regardless of options.
	hardLimitMB = 250

	// Asset eviction thresholds, in KB of decoded size.
	maxImageKB           = 75
	maxSVGKB             = 30
	aggressiveMaxImageKB = 25
	aggressiveMaxSVGKB   = 10

	// Tree depth caps.
	maxDepth           = 10
	aggressiveMaxDepth = 6
)

// Options tunes a compaction run.
type Options struct {
	// TargetMB is the size below which no compaction happens.
	// Default: DefaultTargetMB.
	TargetMB int

	// Aggressive forces the aggressive pass even under the hard limit.
	Aggressive bool
}

// Result reports what one Run did to the payload.
type Result struct {
	OriginalBytes  int  `json:"originalBytes"`
	FinalBytes     int  `json:"finalBytes"`
	RemovedImages  int  `json:"removedImages"`
	RemovedSVGs    int  `json:"removedSvgs"`
	TruncatedNodes int  `json:"truncatedNodes"`
	Aggressive     bool `json:"aggressive"`
	Compacted      bool `json:"compacted"`
}

// EstimateSize returns the compact JSON encoding size of the payload in
// bytes. Encoding a value assembled from decoded JSON cannot fail; a zero
// is returned on the impossible path rather than an error.
func EstimateSize(p *archive.Payload) int {
	data, err := json.Marshal(p)
	if err != nil {
		return 0
	}
	return len(data)
}

// Run compacts the payload in place. Payloads already under target are
// left untouched. The aggressive pass triggers on Options.Aggressive or
// when the payload exceeds the hard limit; if the standard pass leaves the
// payload over target the aggressive pass runs after it.
func Run(p *archive.Payload, opts Options) Result {
	target := opts.TargetMB
	if target <= 0 {
		target = DefaultTargetMB
	}
	targetBytes := target << 20

	res := Result{OriginalBytes: EstimateSize(p)}
	res.FinalBytes = res.OriginalBytes
	if res.OriginalBytes <= targetBytes {
		return res
	}

	res.Compacted = true
	aggressive := opts.Aggressive || res.OriginalBytes > hardLimitMB<<20
	apply(p, aggressive, &res)
	res.FinalBytes = EstimateSize(p)

	if !aggressive && res.FinalBytes > targetBytes {
		apply(p, true, &res)
		res.FinalBytes = EstimateSize(p)
	}
	res.Aggressive = res.Aggressive || aggressive
	return res
}

func apply(p *archive.Payload, aggressive bool, res *Result) {
	imageKB, svgKB, depth := maxImageKB, maxSVGKB, maxDepth
	if aggressive {
		imageKB, svgKB, depth = aggressiveMaxImageKB, aggressiveMaxSVGKB, aggressiveMaxDepth
		res.Aggressive = true
	}

	res.RemovedImages += evictImages(p.Assets.Images, imageKB)
	res.RemovedSVGs += evictSVGs(p.Assets.SVGs, svgKB)
	p.Tokens = tokens.Cap(p.Tokens, aggressive)
	res.TruncatedNodes += truncateDepth(p.Tree, depth, 0)

	if aggressive {
		p.Screenshot = ""
		p.Snapshot = ""
		if p.Components.Definitions != nil {
			p.Components.Definitions = map[string]*capture.Node{}
		}
		p.CSSVariables = nil
		p.Variants = nil
		p.Summary = nil
	}
}

// evictImages removes raster assets whose decoded size exceeds maxKB.
// Base64 decodes to roughly 3/4 of its encoded length.
func evictImages(images map[string]archive.ImageAsset, maxKB int) int {
	removed := 0
	for hash, a := range images {
		decodedKB := float64(len(a.Base64)) * 0.75 / 1024
		if decodedKB > float64(maxKB) {
			delete(images, hash)
			removed++
		}
	}
	return removed
}

func evictSVGs(svgs map[string]archive.SVGAsset, maxKB int) int {
	removed := 0
	for hash, a := range svgs {
		if float64(len(a.Code))/1024 > float64(maxKB) {
			delete(svgs, hash)
			removed++
		}
	}
	return removed
}

// truncateDepth clears the children of every node at the depth cap,
// bounding the tree. Returns the number of nodes whose subtrees were cut.
func truncateDepth(n *capture.Node, max, depth int) int {
	if n == nil {
		return 0
	}
	if depth >= max {
		if len(n.Children) == 0 {
			return 0
		}
		n.Children = []*capture.Node{}
		return 1
	}
	cut := 0
	for _, c := range n.Children {
		cut += truncateDepth(c, max, depth+1)
	}
	return cut
}
