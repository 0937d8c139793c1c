package grid

import (
	"errors"
	"strings"
	"testing"

	"utfgrid/internal/codec"
)

func TestParse(t *testing.T) {
	doc, err := Parse([]byte(`{"grid":["  !#"],"keys":["","a","b"],"data":{"a":{"id":7},"b":{"name":"B"}}}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(doc.Rows) != 1 || len(doc.Keys) != 3 || len(doc.Features) != 2 {
		t.Errorf("Parse() = %+v, unexpected shape", doc)
	}
}

func TestParseWithoutData(t *testing.T) {
	doc, err := Parse([]byte(`{"grid":[" "],"keys":[""]}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if doc.Features == nil {
		t.Error("Features should be an empty map, not nil")
	}
}

func TestParseMalformed(t *testing.T) {
	inputs := []string{
		`not json`,
		`{"keys":[]}`,
		`{"grid":[],"keys":"x"}`,
		`{"grid":[],"keys":[],"data":[1]}`,
		`{"grid":[1],"keys":[]}`,
	}

	for _, in := range inputs {
		_, err := Parse([]byte(in))
		if !errors.Is(err, ErrMalformedDocument) {
			t.Errorf("Parse(%q) error = %v, want ErrMalformedDocument", in, err)
		}
	}
}

func TestCharCode(t *testing.T) {
	doc := &Document{Rows: []string{"ab", "céd"}}

	tests := []struct {
		row, col int
		want     int
		ok       bool
	}{
		{0, 0, 'a', true},
		{0, 1, 'b', true},
		{1, 1, 0xe9, true},
		{1, 2, 'd', true},
		{1, 3, 0, false},
		{2, 0, 0, false},
		{-1, 0, 0, false},
		{0, -1, 0, false},
	}

	for _, tt := range tests {
		got, ok := doc.CharCode(tt.row, tt.col)
		if got != tt.want || ok != tt.ok {
			t.Errorf("CharCode(%d, %d) = (%d, %v), want (%d, %v)", tt.row, tt.col, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFeature(t *testing.T) {
	keys := make([]string, 64)
	keys[63] = "foo"
	keys[1] = "missing"
	keys[2] = "nothing"
	doc, err := Parse([]byte(`{"grid":[],"keys":["` + strings.Join(keys, `","`) + `"],"data":{"foo":{"id":1,"name":"Foo"},"nothing":null}}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	key, payload, ok := doc.Feature(97)
	if !ok || key != "foo" {
		t.Fatalf("Feature(97) = (%q, %s, %v), want foo", key, payload, ok)
	}
	if id := PayloadID(payload); id != float64(1) {
		t.Errorf("PayloadID() = %v, want 1", id)
	}

	if _, _, ok := doc.Feature(codec.Encode(1)); ok {
		t.Error("key without payload should resolve to no feature")
	}
	if _, _, ok := doc.Feature(codec.Encode(2)); ok {
		t.Error("null payload should resolve to no feature")
	}
	if _, _, ok := doc.Feature(codec.Encode(500)); ok {
		t.Error("out of range index should resolve to no feature")
	}
	if _, _, ok := doc.Feature(10); ok {
		t.Error("negative index should resolve to no feature")
	}
}

func TestPayloadID(t *testing.T) {
	tests := []struct {
		payload string
		want    any
	}{
		{`{"id":"abc"}`, "abc"},
		{`{"id":3}`, float64(3)},
		{`{"name":"x"}`, nil},
		{`{"id":null}`, nil},
		{``, nil},
	}

	for _, tt := range tests {
		if got := PayloadID([]byte(tt.payload)); got != tt.want {
			t.Errorf("PayloadID(%q) = %v, want %v", tt.payload, got, tt.want)
		}
	}
}
