package convert

import (
	"log/slog"

	"github.com/stickerverse/figmacionvert-v3-sub010/archive"
	"github.com/stickerverse/figmacionvert-v3-sub010/capture"
	"github.com/stickerverse/figmacionvert-v3-sub010/compact"
	"github.com/stickerverse/figmacionvert-v3-sub010/idgen"
	"github.com/stickerverse/figmacionvert-v3-sub010/normalize"
	"github.com/stickerverse/figmacionvert-v3-sub010/pattern"
)

// Config configures the conversion service.
type Config struct {
	// TargetMB is the compaction target (default: compact.DefaultTargetMB).
	TargetMB int `json:"target_mb" yaml:"target_mb"`

	// Aggressive forces aggressive compaction on every payload.
	Aggressive bool `json:"aggressive" yaml:"aggressive"`

	// IDs mints node identifiers (default: "node_"-prefixed NanoID).
	IDs idgen.Generator `json:"-" yaml:"-"`

	// Logger for progress and error messages.
	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.TargetMB <= 0 {
		c.TargetMB = compact.DefaultTargetMB
	}
	if c.IDs == nil {
		c.IDs = idgen.Prefixed("node_", idgen.NanoID(12))
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Role classifies a node's place in the pattern structure.
type Role string

const (
	// RoleElement is a plain node with no detected repetition.
	RoleElement Role = "element"
	// RoleDefinition is the first occurrence of a repeated structure,
	// promoted as the reusable master.
	RoleDefinition Role = "definition"
	// RoleInstance is a later occurrence of a promoted structure.
	RoleInstance Role = "instance"
)

// Prepared is the import-ready document produced by Convert.
type Prepared struct {
	Tree       *capture.Node            `json:"tree"`
	Report     normalize.Report         `json:"report"`
	Roles      map[string]Role          `json:"roles"`
	Nodes      map[string]*capture.Node `json:"-"`
	Patterns   pattern.Stats            `json:"patterns"`
	Tokens     archive.DesignTokens     `json:"designTokens"`
	Digest     archive.Digest           `json:"digest"`
	Compaction compact.Result           `json:"compaction"`
}

// Summary is a cheap payload overview used by inspection endpoints.
type Summary struct {
	Nodes          int `json:"nodes"`
	Depth          int `json:"depth"`
	Images         int `json:"images"`
	SVGs           int `json:"svgs"`
	Components     int `json:"components"`
	EstimatedBytes int `json:"estimatedBytes"`
}
