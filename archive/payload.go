package archive

import (
	"encoding/json"

	"github.com/stickerverse/figmacionvert-v3-sub010/capture"
)

// Payload is the capture schema body: the document tree plus everything
// the plugin needs to rebuild it visually.
type Payload struct {
	Tree         *capture.Node     `json:"tree,omitempty"`
	Assets       Assets            `json:"assets,omitempty"`
	Tokens       DesignTokens      `json:"designTokens,omitempty"`
	Components   Components        `json:"components,omitempty"`
	Screenshot   string            `json:"screenshot,omitempty"`
	Snapshot     string            `json:"snapshotHtml,omitempty"`
	CSSVariables map[string]string `json:"cssVariables,omitempty"`
	Variants     json.RawMessage   `json:"variants,omitempty"`
	Summary      json.RawMessage   `json:"extractionSummary,omitempty"`
}

// Assets holds binary page assets keyed by content hash.
type Assets struct {
	Images map[string]ImageAsset `json:"images,omitempty"`
	SVGs   map[string]SVGAsset   `json:"svgs,omitempty"`
}

// ImageAsset is one raster asset, base64-encoded.
type ImageAsset struct {
	Base64 string `json:"base64,omitempty"`
	Name   string `json:"name,omitempty"`
	MIME   string `json:"mime,omitempty"`
}

// SVGAsset is one vector asset as source markup.
type SVGAsset struct {
	Code string `json:"svgCode,omitempty"`
	Name string `json:"name,omitempty"`
}

// Components carries pre-detected component definitions from the capture
// side, keyed by component id.
type Components struct {
	Definitions map[string]*capture.Node `json:"definitions"`
}

// DesignTokens are page-level style tokens grouped by category.
type DesignTokens struct {
	Colors     map[string]Token `json:"colors,omitempty"`
	Typography map[string]Token `json:"typography,omitempty"`
	Spacing    map[string]Token `json:"spacing,omitempty"`
}

// Token is one design-token entry. The original object is kept verbatim so
// tokens survive a read → compact → write round trip unchanged; only the
// usage count is lifted out for ranking.
type Token struct {
	Usage int
	raw   json.RawMessage
}

// MakeToken builds a token from a value and usage count, for tokens derived
// on the importer side rather than decoded from a capture.
func MakeToken(value string, usage int) Token {
	raw, _ := json.Marshal(struct {
		Value string `json:"value,omitempty"`
		Usage int    `json:"usage"`
	}{value, usage})
	return Token{Usage: usage, raw: raw}
}

// Value returns the token's "value" field, or "" when absent.
func (t Token) Value() string {
	var probe struct {
		Value string `json:"value"`
	}
	_ = json.Unmarshal(t.raw, &probe)
	return probe.Value
}

func (t *Token) UnmarshalJSON(data []byte) error {
	t.raw = append(t.raw[:0], data...)
	var probe struct {
		Usage int `json:"usage"`
	}
	// Tokens without a usage field rank as 0.
	_ = json.Unmarshal(data, &probe)
	t.Usage = probe.Usage
	return nil
}

func (t Token) MarshalJSON() ([]byte, error) {
	if len(t.raw) == 0 {
		return []byte("null"), nil
	}
	return t.raw, nil
}
