package pattern

import (
	"math"
	"strconv"
	"strings"

	"github.com/stickerverse/figmacionvert-v3-sub010/capture"
)

// maxChildSeq is the child count above which the child-kind sequence is
// omitted from the fingerprint; long lists make the key too specific to
// ever repeat.
const maxChildSeq = 10

// sizeBucket rounds dimensions to the nearest 10 units so near-identical
// cards land on the same fingerprint.
const sizeBucket = 10

// Fingerprint derives a coarse structural key from a node: kind, child
// count, child-kind sequence (small lists only), layout mode, bucketed
// dimensions, fill-type summary, corner-radius presence, and whether any
// direct child is text or image. Two nodes sharing a fingerprint are
// interchangeable for pattern detection — equality is intentionally lossy,
// not structural. Deterministic and side-effect free; a nil node yields a
// stable sentinel key.
func Fingerprint(n *capture.Node) string {
	if n == nil {
		return "nil"
	}

	var b strings.Builder
	b.WriteString(kindOf(n))
	b.WriteString("|c")
	b.WriteString(strconv.Itoa(len(n.Children)))

	if len(n.Children) > 0 && len(n.Children) <= maxChildSeq {
		b.WriteString("|s:")
		for i, c := range n.Children {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(kindOf(c))
		}
	}

	b.WriteString("|l:")
	b.WriteString(n.LayoutMode)

	b.WriteString("|w")
	b.WriteString(strconv.Itoa(bucket(n.Width)))
	b.WriteString("|h")
	b.WriteString(strconv.Itoa(bucket(n.Height)))

	b.WriteString("|f:")
	for i, f := range n.Fills {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(f.Type)
	}

	if n.CornerRadius > 0 {
		b.WriteString("|r")
	}

	hasText, hasImage := false, false
	for _, c := range n.Children {
		switch kindOf(c) {
		case capture.KindText:
			hasText = true
		case capture.KindImage:
			hasImage = true
		}
	}
	if hasText {
		b.WriteString("|t")
	}
	if hasImage {
		b.WriteString("|i")
	}

	return b.String()
}

func kindOf(n *capture.Node) string {
	if n == nil || n.Kind == "" {
		return capture.KindContainer
	}
	return n.Kind
}

func bucket(v float64) int {
	return int(math.Round(v/sizeBucket)) * sizeBucket
}
