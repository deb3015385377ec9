package archive

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// SchemaVersion is the capture schema this reader understands.
const SchemaVersion = 1

var (
	// ErrBadArchive marks structurally unreadable input (broken zip,
	// unparseable JSON).
	ErrBadArchive = errors.New("unreadable capture archive")

	// ErrUnsupportedVersion is returned for manifests from a newer (or
	// ancient) capture schema.
	ErrUnsupportedVersion = errors.New("unsupported capture schema version")

	// ErrUnsupportedEngine is returned when the capture was produced by a
	// browser engine this importer has no mapping for.
	ErrUnsupportedEngine = errors.New("unsupported capture engine")

	// ErrMissingSchema is returned when the manifest names no schema file
	// or the named file is absent from the archive.
	ErrMissingSchema = errors.New("capture schema file missing")
)

// supportedEngines are the browser engines whose extraction output this
// importer knows how to interpret.
var supportedEngines = map[string]bool{
	"chromium": true,
	"firefox":  true,
	"webkit":   true,
}

// Manifest describes the contents of a capture archive.
type Manifest struct {
	Version    int             `json:"version"`
	Generator  string          `json:"generator"` // e.g. "chromium/124.0.6367"
	CapturedAt time.Time       `json:"capturedAt"`
	Viewport   Viewport        `json:"viewport"`
	Screenshot string          `json:"screenshot,omitempty"` // file reference
	Schema     string          `json:"schema,omitempty"`     // file reference
	Snapshot   string          `json:"snapshot,omitempty"`   // file reference
	Images     []ImageRef      `json:"images,omitempty"`
	Fonts      []FontRef       `json:"fonts,omitempty"`
	Features   map[string]bool `json:"features,omitempty"`
}

// Viewport is the browser viewport the page was captured at.
type Viewport struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Scale  float64 `json:"deviceScaleFactor,omitempty"`
}

// ImageRef is one entry of the manifest image inventory.
type ImageRef struct {
	Hash  string `json:"hash"`
	Name  string `json:"name,omitempty"`
	Bytes int64  `json:"bytes,omitempty"`
}

// FontRef is one entry of the manifest font inventory.
type FontRef struct {
	Family string `json:"family"`
	Style  string `json:"style,omitempty"`
	URL    string `json:"url,omitempty"`
}

// Engine returns the browser engine name from the generator string
// ("chromium/124.0" → "chromium").
func (m Manifest) Engine() string {
	gen := strings.ToLower(strings.TrimSpace(m.Generator))
	if i := strings.IndexByte(gen, '/'); i >= 0 {
		gen = gen[:i]
	}
	return gen
}

// Validate gates the manifest on schema version and capture engine.
func (m Manifest) Validate() error {
	if m.Version != SchemaVersion {
		return fmt.Errorf("archive: %w: got %d, want %d", ErrUnsupportedVersion, m.Version, SchemaVersion)
	}
	if eng := m.Engine(); !supportedEngines[eng] {
		return fmt.Errorf("archive: %w: %q", ErrUnsupportedEngine, eng)
	}
	return nil
}
