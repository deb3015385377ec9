// Package convert turns a captured web page payload into an import-ready
// document for a design tool plugin.
//
// The pipeline compacts oversized payloads, normalizes the capture tree,
// detects repeated structures so they can be emitted as component
// definitions plus instances, merges captured design tokens with tokens
// derived from the tree, and digests the HTML snapshot into markdown for
// annotation.
//
// Usage:
//
//	svc := convert.New(convert.Config{})
//	prep, err := svc.Convert(ctx, payload)
//	fmt.Println(prep.Report.RemovedNodes, prep.Patterns.RepeatedPatterns)
package convert

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/stickerverse/figmacionvert-v3-sub010/archive"
	"github.com/stickerverse/figmacionvert-v3-sub010/capture"
	"github.com/stickerverse/figmacionvert-v3-sub010/compact"
	"github.com/stickerverse/figmacionvert-v3-sub010/normalize"
	"github.com/stickerverse/figmacionvert-v3-sub010/pattern"
	"github.com/stickerverse/figmacionvert-v3-sub010/tokens"
)

// ErrNoTree is returned when the payload carries no capture tree.
var ErrNoTree = errors.New("convert: payload has no tree")

// Service is the conversion engine.
type Service struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Service with the given configuration.
func New(cfg Config) *Service {
	cfg.defaults()
	return &Service{
		cfg:    cfg,
		logger: cfg.Logger,
	}
}

// Convert prepares a payload for import. The payload is mutated: compaction
// strips oversized assets in place and the returned tree aliases (part of)
// the payload tree.
func (s *Service) Convert(ctx context.Context, p *archive.Payload) (*Prepared, error) {
	if p == nil || p.Tree == nil {
		return nil, ErrNoTree
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	comp := compact.Run(p, compact.Options{
		TargetMB:   s.cfg.TargetMB,
		Aggressive: s.cfg.Aggressive,
	})

	tree, report := normalize.Tree(p.Tree)

	reg := pattern.New()
	for id, def := range p.Components.Definitions {
		reg.RegisterComponent(id, def)
	}
	roles, nodeIndex := s.detectPatterns(reg, tree)

	catalog := tokens.Cap(tokens.Merge(p.Tokens, tokens.Collect(tree)), false)

	var digest archive.Digest
	if p.Snapshot != "" {
		digest = archive.DigestSnapshot(p.Snapshot)
	}

	prep := &Prepared{
		Tree:       tree,
		Report:     report,
		Roles:      roles,
		Nodes:      nodeIndex,
		Patterns:   reg.Stats(),
		Tokens:     catalog,
		Digest:     digest,
		Compaction: comp,
	}

	s.logger.Info("payload converted",
		"duration", time.Since(start).Round(time.Millisecond),
		"removed_nodes", report.RemovedNodes,
		"collapsed_wrappers", report.CollapsedWrappers,
		"repeated_patterns", prep.Patterns.RepeatedPatterns,
		"compacted", comp.Compacted,
	)
	return prep, nil
}

// detectPatterns walks the tree depth-first, files every multi-child
// container with the registry, and promotes the first occurrence of a
// fingerprint as the definition once a second one appears. Later repeats
// become instances of that definition.
func (s *Service) detectPatterns(reg *pattern.Registry, root *capture.Node) (map[string]Role, map[string]*capture.Node) {
	roles := map[string]Role{}
	index := map[string]*capture.Node{}
	firstID := map[string]string{}
	count := map[string]int{}

	var walk func(n *capture.Node)
	walk = func(n *capture.Node) {
		if n == nil {
			return
		}
		if len(n.Children) > 0 {
			id := s.cfg.IDs()
			index[id] = n
			reg.Observe(id, n)
			fp := reg.FingerprintOf(id)
			count[fp]++
			switch count[fp] {
			case 1:
				firstID[fp] = id
				roles[id] = RoleElement
			case pattern.RepeatThreshold:
				first := index[firstID[fp]]
				reg.Promote(fp, first)
				first.IsComponent = true
				roles[firstID[fp]] = RoleDefinition
				n.IsInstance = true
				roles[id] = RoleInstance
			default:
				n.IsInstance = true
				roles[id] = RoleInstance
			}
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	return roles, index
}

// Inspect summarizes a payload without converting it.
func (s *Service) Inspect(p *archive.Payload) Summary {
	sum := Summary{EstimatedBytes: compact.EstimateSize(p)}
	if p == nil {
		return sum
	}
	sum.Images = len(p.Assets.Images)
	sum.SVGs = len(p.Assets.SVGs)
	sum.Components = len(p.Components.Definitions)

	var walk func(n *capture.Node, depth int)
	walk = func(n *capture.Node, depth int) {
		if n == nil {
			return
		}
		sum.Nodes++
		if depth > sum.Depth {
			sum.Depth = depth
		}
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	walk(p.Tree, 1)
	return sum
}
