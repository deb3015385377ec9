// Package archive reads capture archives produced by the browser-side
// capture extension.
//
// A capture arrives in one of two containers:
//
//   - a zip archive holding manifest.json plus the files it references
//     (schema payload, screenshot, HTML snapshot)
//   - a bare JSON payload, as emitted by older extension builds
//
// Both converge to the same Capture value. Manifest gating (schema version,
// capture engine) happens here so that unsupported captures fail fast with
// a typed error before any tree processing starts.
package archive

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// zipMagic is the local-file-header signature every zip starts with.
var zipMagic = []byte{'P', 'K', 0x03, 0x04}

// Capture is a fully read capture: its manifest and the decoded payload.
type Capture struct {
	Manifest Manifest `json:"manifest"`
	Payload  Payload  `json:"payload"`
}

// Open reads a capture from disk, sniffing the container format.
func Open(path string) (*Capture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("archive: read %s: %w", path, err)
	}
	return Read(data)
}

// Read decodes a capture from raw bytes, sniffing the container format.
func Read(data []byte) (*Capture, error) {
	if bytes.HasPrefix(data, zipMagic) {
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, fmt.Errorf("archive: %w: %v", ErrBadArchive, err)
		}
		return ReadZip(zr)
	}
	return readJSON(data)
}

// ReadZip decodes a zip-container capture: manifest.json is located,
// validated, and its referenced files are loaded.
func ReadZip(zr *zip.Reader) (*Capture, error) {
	manifestData, err := fileBytes(zr, "manifest.json")
	if err != nil {
		return nil, fmt.Errorf("archive: %w: manifest.json: %v", ErrBadArchive, err)
	}

	var m Manifest
	if err := json.Unmarshal(manifestData, &m); err != nil {
		return nil, fmt.Errorf("archive: %w: manifest: %v", ErrBadArchive, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if m.Schema == "" {
		return nil, fmt.Errorf("archive: %w", ErrMissingSchema)
	}

	schemaData, err := fileBytes(zr, m.Schema)
	if err != nil {
		return nil, fmt.Errorf("archive: %w: schema %s: %v", ErrMissingSchema, m.Schema, err)
	}

	var p Payload
	if err := json.Unmarshal(schemaData, &p); err != nil {
		return nil, fmt.Errorf("archive: %w: schema: %v", ErrBadArchive, err)
	}

	// Optional side files override inline payload fields.
	if m.Snapshot != "" {
		if snap, err := fileBytes(zr, m.Snapshot); err == nil {
			p.Snapshot = string(snap)
		}
	}

	return &Capture{Manifest: m, Payload: p}, nil
}

// readJSON decodes a bare payload, synthesizing a permissive manifest.
func readJSON(data []byte) (*Capture, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("archive: %w: %v", ErrBadArchive, err)
	}
	return &Capture{
		Manifest: Manifest{Version: SchemaVersion, Generator: "inline"},
		Payload:  p,
	}, nil
}

func fileBytes(zr *zip.Reader, name string) ([]byte, error) {
	f, err := zr.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
