// Package grid models the per-tile grid document: rows of encoded cell
// indices, the key table they index into, and the feature payloads.
package grid

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"utfgrid/internal/codec"
)

// ErrMalformedDocument is returned for content that is not a grid document.
var ErrMalformedDocument = errors.New("malformed grid document")

// Document is an immutable grid document.
// Wire format: {"grid": [...], "keys": [...], "data": {...}}.
type Document struct {
	Rows     []string                   `json:"grid"`
	Keys     []string                   `json:"keys"`
	Features map[string]json.RawMessage `json:"data"`
}

// Validate reports whether data looks like a grid document without decoding it.
func Validate(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("%w: invalid json", ErrMalformedDocument)
	}
	if !gjson.GetBytes(data, "grid").IsArray() {
		return fmt.Errorf("%w: missing grid array", ErrMalformedDocument)
	}
	if !gjson.GetBytes(data, "keys").IsArray() {
		return fmt.Errorf("%w: missing keys array", ErrMalformedDocument)
	}
	if d := gjson.GetBytes(data, "data"); d.Exists() && !d.IsObject() && d.Type != gjson.Null {
		return fmt.Errorf("%w: data is not an object", ErrMalformedDocument)
	}
	return nil
}

// Parse validates and decodes a grid document.
func Parse(data []byte) (*Document, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if doc.Features == nil {
		doc.Features = map[string]json.RawMessage{}
	}
	return &doc, nil
}

// CharCode returns the raw character code stored at the given cell.
// Rows are indexed by code point.
func (d *Document) CharCode(row, col int) (int, bool) {
	if row < 0 || row >= len(d.Rows) || col < 0 {
		return 0, false
	}
	i := 0
	for _, r := range d.Rows[row] {
		if i == col {
			return int(r), true
		}
		i++
	}
	return 0, false
}

// Feature resolves a character code to its feature key and payload.
// A decoded index outside the key table, a key without a payload, or a null
// payload all report false.
func (d *Document) Feature(code int) (string, json.RawMessage, bool) {
	idx := codec.Decode(code)
	if idx < 0 || idx >= len(d.Keys) {
		return "", nil, false
	}
	key := d.Keys[idx]
	payload, ok := d.Features[key]
	if !ok || len(payload) == 0 || gjson.ParseBytes(payload).Type == gjson.Null {
		return key, nil, false
	}
	return key, payload, true
}

// PayloadID returns the payload's own "id" field, or nil.
func PayloadID(payload json.RawMessage) any {
	if len(payload) == 0 {
		return nil
	}
	id := gjson.GetBytes(payload, "id")
	if !id.Exists() || id.Type == gjson.Null {
		return nil
	}
	return id.Value()
}
