package archive

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stickerverse/figmacionvert-v3-sub010/capture"
)

const minimalSchema = `{
	"tree": {"kind": "container", "htmlTag": "body", "children": [
		{"kind": "text", "characters": "hello"}
	]},
	"assets": {"images": {"abc123": {"base64": "aGVsbG8="}}},
	"designTokens": {"colors": {"primary": {"value": "#ff0000", "usage": 12}}}
}`

func buildZip(t *testing.T, manifest string, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	write := func(name, content string) {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(content))
	}
	if manifest != "" {
		write("manifest.json", manifest)
	}
	for name, content := range files {
		write(name, content)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func validManifest() string {
	return `{"version":1,"generator":"chromium/124.0","viewport":{"width":1440,"height":900},"schema":"schema.json"}`
}

func TestReadZip(t *testing.T) {
	data := buildZip(t, validManifest(), map[string]string{"schema.json": minimalSchema})
	c, err := Read(data)
	if err != nil {
		t.Fatal(err)
	}
	if c.Manifest.Engine() != "chromium" {
		t.Errorf("engine: %q", c.Manifest.Engine())
	}
	if c.Payload.Tree == nil || len(c.Payload.Tree.Children) != 1 {
		t.Fatalf("tree: %+v", c.Payload.Tree)
	}
	if c.Payload.Assets.Images["abc123"].Base64 != "aGVsbG8=" {
		t.Error("image asset lost")
	}
	if c.Payload.Tokens.Colors["primary"].Usage != 12 {
		t.Errorf("token usage: %d", c.Payload.Tokens.Colors["primary"].Usage)
	}
}

func TestZipAndJSONConverge(t *testing.T) {
	fromZip, err := Read(buildZip(t, validManifest(), map[string]string{"schema.json": minimalSchema}))
	if err != nil {
		t.Fatal(err)
	}
	fromJSON, err := Read([]byte(minimalSchema))
	if err != nil {
		t.Fatal(err)
	}
	a, _ := json.Marshal(fromZip.Payload)
	b, _ := json.Marshal(fromJSON.Payload)
	if !bytes.Equal(a, b) {
		t.Errorf("payloads diverge:\nzip:  %s\njson: %s", a, b)
	}
}

func TestManifestGating(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		wantErr  error
	}{
		{
			"future version",
			`{"version":2,"generator":"chromium/130","schema":"schema.json"}`,
			ErrUnsupportedVersion,
		},
		{
			"unknown engine",
			`{"version":1,"generator":"netscape/4.7","schema":"schema.json"}`,
			ErrUnsupportedEngine,
		},
		{
			"no engine at all",
			`{"version":1,"schema":"schema.json"}`,
			ErrUnsupportedEngine,
		},
		{
			"no schema reference",
			`{"version":1,"generator":"firefox/128"}`,
			ErrMissingSchema,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := buildZip(t, tt.manifest, map[string]string{"schema.json": minimalSchema})
			_, err := Read(data)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestMissingSchemaFile(t *testing.T) {
	data := buildZip(t, validManifest(), nil) // schema.json referenced but absent
	_, err := Read(data)
	if !errors.Is(err, ErrMissingSchema) {
		t.Errorf("got %v, want ErrMissingSchema", err)
	}
}

func TestBadInput(t *testing.T) {
	for _, in := range []string{"not json at all", `{"tree": [1,2`} {
		if _, err := Read([]byte(in)); !errors.Is(err, ErrBadArchive) {
			t.Errorf("Read(%q) = %v, want ErrBadArchive", in, err)
		}
	}
}

func TestSnapshotOverride(t *testing.T) {
	manifest := `{"version":1,"generator":"webkit/17","schema":"schema.json","snapshot":"page.html"}`
	data := buildZip(t, manifest, map[string]string{
		"schema.json": minimalSchema,
		"page.html":   "<html><title>Shop</title><body><h1>Shop</h1></body></html>",
	})
	c, err := Read(data)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(c.Payload.Snapshot, "<h1>Shop</h1>") {
		t.Errorf("snapshot: %q", c.Payload.Snapshot)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	in := `{"value":"#abcdef","usage":7,"contrast":"AA"}`
	var tok Token
	if err := json.Unmarshal([]byte(in), &tok); err != nil {
		t.Fatal(err)
	}
	if tok.Usage != 7 {
		t.Errorf("usage: %d", tok.Usage)
	}
	out, err := json.Marshal(tok)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != in {
		t.Errorf("round trip: got %s, want %s", out, in)
	}
}

func TestDigestSnapshot(t *testing.T) {
	snap := `<html><head><title>Pricing | Acme</title><script>evil()</script></head>
	<body><h1>Plans</h1><p>Choose a plan.</p></body></html>`
	d := DigestSnapshot(snap)
	if d.Title != "Pricing | Acme" {
		t.Errorf("title: %q", d.Title)
	}
	if !strings.Contains(d.Markdown, "Plans") {
		t.Errorf("markdown: %q", d.Markdown)
	}
	if strings.Contains(d.Markdown, "evil") {
		t.Error("script content survived sanitization")
	}
	if got := DigestSnapshot("   "); got.Title != "" || got.Markdown != "" {
		t.Errorf("empty snapshot digest: %+v", got)
	}
}

func TestLenientTreeInPayload(t *testing.T) {
	c, err := Read([]byte(`{"tree": {"kind":"container","children":"oops"}}`))
	if err != nil {
		t.Fatal(err)
	}
	if c.Payload.Tree == nil || len(c.Payload.Tree.Children) != 0 {
		t.Fatalf("tree: %+v", c.Payload.Tree)
	}
	if c.Payload.Tree.Kind != capture.KindContainer {
		t.Errorf("kind: %q", c.Payload.Tree.Kind)
	}
}
