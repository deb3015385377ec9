package pattern

import (
	"testing"

	"github.com/stickerverse/figmacionvert-v3-sub010/capture"
)

func card(w, h float64) *capture.Node {
	return &capture.Node{
		Kind:       capture.KindContainer,
		Width:      w,
		Height:     h,
		LayoutMode: "vertical",
		Fills:      []capture.Paint{{Type: capture.PaintSolid, Color: &capture.Color{A: 1}}},
		Children: []*capture.Node{
			{Kind: capture.KindImage},
			{Kind: capture.KindText, Characters: "title"},
		},
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	a, b := card(200, 120), card(200, 120)
	b.Children[1].Characters = "completely different title"
	if Fingerprint(a) != Fingerprint(b) {
		t.Error("structurally equal nodes should share a fingerprint")
	}
}

func TestFingerprintBuckets(t *testing.T) {
	// Within the same 10-unit bucket.
	if Fingerprint(card(200, 120)) != Fingerprint(card(202, 118)) {
		t.Error("near-equal sizes should bucket together")
	}
	// 200 vs 230 land in different buckets.
	if Fingerprint(card(200, 120)) == Fingerprint(card(230, 120)) {
		t.Error("distinct sizes should differ")
	}
}

func TestFingerprintFactors(t *testing.T) {
	base := card(200, 120)
	mutations := []struct {
		name string
		mut  func(*capture.Node)
	}{
		{"kind", func(n *capture.Node) { n.Kind = capture.KindVector }},
		{"child count", func(n *capture.Node) { n.Children = n.Children[:1] }},
		{"child kinds", func(n *capture.Node) { n.Children[0].Kind = capture.KindVector }},
		{"layout mode", func(n *capture.Node) { n.LayoutMode = "horizontal" }},
		{"width", func(n *capture.Node) { n.Width = 400 }},
		{"fill types", func(n *capture.Node) { n.Fills[0].Type = capture.PaintGradient }},
		{"corner radius", func(n *capture.Node) { n.CornerRadius = 8 }},
	}
	want := Fingerprint(base)
	for _, tt := range mutations {
		t.Run(tt.name, func(t *testing.T) {
			n := card(200, 120)
			tt.mut(n)
			if Fingerprint(n) == want {
				t.Errorf("changing %s did not change the fingerprint", tt.name)
			}
		})
	}
}

func TestFingerprintChildSeqOmittedWhenLarge(t *testing.T) {
	many := func(kind string) *capture.Node {
		n := &capture.Node{Kind: capture.KindContainer}
		for i := 0; i < maxChildSeq+1; i++ {
			n.Children = append(n.Children, &capture.Node{Kind: capture.KindContainer})
		}
		n.Children[4].Kind = kind
		return n
	}
	// With 11 children the kind sequence no longer differentiates, but the
	// text/image child flags still do.
	if Fingerprint(many(capture.KindContainer)) != Fingerprint(many(capture.KindVector)) {
		t.Error("child sequence should be dropped above the threshold")
	}
	if Fingerprint(many(capture.KindContainer)) == Fingerprint(many(capture.KindText)) {
		t.Error("text-child presence must survive the sequence cutoff")
	}
}

func TestObservePromotionProtocol(t *testing.T) {
	r := New()
	first, second, third := card(200, 120), card(200, 120), card(200, 120)

	if got := r.Observe("n1", first); got != nil {
		t.Fatalf("first observation returned %v", got)
	}
	if got := r.Observe("n2", second); got != nil {
		t.Fatalf("second observation returned %v before promotion", got)
	}

	fp := r.FingerprintOf("n2")
	if fp == "" || fp != r.FingerprintOf("n1") {
		t.Fatalf("fingerprint association broken: %q vs %q", r.FingerprintOf("n1"), fp)
	}

	r.Promote(fp, first)
	if got := r.Observe("n3", third); got != first {
		t.Fatalf("third observation: got %v, want master", got)
	}
	if r.MasterFor(fp) != first {
		t.Error("MasterFor lost the master")
	}
	// Promotion also lands in the signature index.
	if r.BySignature(fp) != first {
		t.Error("fingerprint not reachable as signature")
	}
}

func TestObserveCountsWithoutPromotion(t *testing.T) {
	r := New()
	for i := 0; i < 5; i++ {
		if got := r.Observe("n", card(100, 100)); got != nil {
			t.Fatalf("observation %d returned %v with no master", i, got)
		}
	}
	if s := r.Stats(); s.RepeatedPatterns != 1 {
		t.Errorf("RepeatedPatterns = %d, want 1", s.RepeatedPatterns)
	}
}

func TestPromoteUnseenIsNoop(t *testing.T) {
	r := New()
	r.Promote("never-observed", card(1, 1))
	if r.MasterFor("never-observed") != nil {
		t.Error("promote created an entry")
	}
	if r.BySignature("never-observed") != nil {
		t.Error("promote registered a signature for an unseen fingerprint")
	}
}

func TestPromoteLastWins(t *testing.T) {
	r := New()
	a, b := card(1, 1), card(1, 1)
	fp := Fingerprint(a)
	r.Observe("n1", a)
	r.Promote(fp, a)
	r.Promote(fp, b)
	if r.MasterFor(fp) != b {
		t.Error("last promotion should win")
	}
}

func TestComponentStore(t *testing.T) {
	r := New()
	a, b := card(1, 1), card(2, 2)
	r.RegisterComponent("comp-1", a)
	if !r.HasComponent("comp-1") || r.Component("comp-1") != a {
		t.Fatal("component lookup failed")
	}
	r.RegisterComponent("comp-1", b)
	if r.Component("comp-1") != b {
		t.Error("last write should win")
	}
	if r.HasComponent("missing") || r.Component("missing") != nil {
		t.Error("missing component should be absent")
	}
}

func TestSignatureIndex(t *testing.T) {
	r := New()
	n := card(1, 1)
	r.RegisterSignature("", n)
	if r.BySignature("") != nil {
		t.Error("empty signature must be a no-op")
	}
	r.RegisterSignature("hero-card", n)
	if r.BySignature("hero-card") != n {
		t.Error("signature lookup failed")
	}
}

func TestStats(t *testing.T) {
	r := New()
	r.RegisterComponent("c1", card(1, 1))
	r.RegisterSignature("sig", card(1, 1))
	r.Observe("n1", card(100, 100))
	r.Observe("n2", card(100, 100))
	r.Observe("n3", card(500, 500))

	s := r.Stats()
	if s.Components != 1 || s.Signatures != 1 {
		t.Errorf("stats: %+v", s)
	}
	if s.Fingerprints != 2 {
		t.Errorf("Fingerprints = %d, want 2", s.Fingerprints)
	}
	if s.RepeatedPatterns != 1 {
		t.Errorf("RepeatedPatterns = %d, want 1", s.RepeatedPatterns)
	}
}
