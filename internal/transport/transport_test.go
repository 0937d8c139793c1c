package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"utfgrid/internal/grid"
	"utfgrid/internal/tile"
)

const sampleGrid = `{"grid":["  ","!!"],"keys":["","a"],"data":{"a":{"id":1}}}`

type result struct {
	doc   *grid.Document
	err   error
	calls int
}

func (r *result) done(doc *grid.Document, err error) {
	r.doc = doc
	r.err = err
	r.calls++
}

func TestHTTPTransport_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, sampleGrid)
	}))
	defer srv.Close()

	tr := NewHTTP(srv.Client(), 2, zap.NewNop())

	var res result
	tr.Fetch(context.Background(), Request{Key: tile.Key{}, URL: srv.URL + "/0/0/0.json"}, res.done)

	if res.calls != 1 {
		t.Fatalf("done called %d times, want 1", res.calls)
	}
	if res.err != nil {
		t.Fatalf("Fetch() error = %v", res.err)
	}
	if len(res.doc.Rows) != 2 || res.doc.Keys[1] != "a" {
		t.Errorf("Fetch() doc = %+v", res.doc)
	}
}

func TestHTTPTransport_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			name: "status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", http.StatusNotFound)
			},
			want: ErrUnexpectedStatus,
		},
		{
			name: "malformed",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"grid":`)
			},
			want: grid.ErrMalformedDocument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			var res result
			NewHTTP(srv.Client(), 1, nil).Fetch(context.Background(), Request{URL: srv.URL}, res.done)

			if res.calls != 1 {
				t.Fatalf("done called %d times, want 1", res.calls)
			}
			if !errors.Is(res.err, tt.want) {
				t.Errorf("error = %v, want %v", res.err, tt.want)
			}
		})
	}
}

func TestCallbackURL(t *testing.T) {
	got := CallbackURL("http://x/1/2/3.json", "ns.cb")
	if got != "http://x/1/2/3.json?callback=ns.cb+%26%26+ns.cb" {
		t.Errorf("CallbackURL() = %q", got)
	}

	got = CallbackURL("http://x/1.json?token=t", "cb")
	if !strings.HasPrefix(got, "http://x/1.json?token=t&callback=") {
		t.Errorf("CallbackURL() = %q, want & separator", got)
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	var got *grid.Document
	name := reg.Register(tile.Key{Z: 3, X: 1, Y: 2}, func(doc *grid.Document) { got = doc })

	if !strings.HasSuffix(name, ".lu_1_2_3") {
		t.Errorf("Register() name = %q, want lu_1_2_3 suffix", name)
	}
	if reg.Len() != 1 {
		t.Errorf("Len() = %d, want 1", reg.Len())
	}

	doc := &grid.Document{}
	if !reg.Invoke(name, doc) {
		t.Fatal("Invoke() = false, want true")
	}
	if got != doc {
		t.Error("callback did not receive the document")
	}
	if reg.Invoke(name, doc) {
		t.Error("second Invoke() = true, want false")
	}
}

func TestRegistry_ResetChangesNamespace(t *testing.T) {
	reg := NewRegistry()
	k := tile.Key{Z: 1}

	before := reg.Register(k, func(*grid.Document) {})
	reg.Reset()
	after := reg.Register(k, func(*grid.Document) {})

	if before == after {
		t.Errorf("names should differ across Reset, both %q", before)
	}
	if reg.Invoke(before, &grid.Document{}) {
		t.Error("Invoke() of a dropped name = true, want false")
	}
	if reg.Len() != 1 {
		t.Errorf("Len() = %d, want 1", reg.Len())
	}
}

func TestExecute(t *testing.T) {
	reg := NewRegistry()

	var calls int
	name := reg.Register(tile.Key{}, func(*grid.Document) { calls++ })

	invoked, err := Execute([]byte(name+" && "+name+"("+sampleGrid+");"), reg)
	if err != nil || !invoked {
		t.Fatalf("Execute() = (%v, %v), want (true, nil)", invoked, err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}

	invoked, err = Execute([]byte(name+"("+sampleGrid+")"), reg)
	if err != nil || invoked {
		t.Errorf("stale Execute() = (%v, %v), want (false, nil)", invoked, err)
	}

	if _, err := Execute([]byte("alert(1)x"), reg); !errors.Is(err, grid.ErrMalformedDocument) {
		t.Errorf("Execute(garbage) error = %v, want ErrMalformedDocument", err)
	}
}

func jsonpServer(t *testing.T, body func(callback string) string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		fmt.Fprint(w, body(r.URL.Query().Get("callback")))
	}))
}

func TestScriptTransport_Fetch(t *testing.T) {
	srv := jsonpServer(t, func(cb string) string { return cb + "(" + sampleGrid + ");" })
	defer srv.Close()

	reg := NewRegistry()
	tr := NewScript(NewHTTP(srv.Client(), 1, zap.NewNop()))

	var res result
	tr.Fetch(context.Background(), Request{Key: tile.Key{Z: 2, X: 1, Y: 1}, URL: srv.URL, Callbacks: reg}, res.done)

	if res.calls != 1 || res.err != nil {
		t.Fatalf("done = (%d calls, err %v), want one success", res.calls, res.err)
	}
	if res.doc == nil || len(res.doc.Keys) != 2 {
		t.Errorf("doc = %+v", res.doc)
	}
	if reg.Len() != 0 {
		t.Errorf("registry Len() = %d, want 0", reg.Len())
	}
}

func TestScriptTransport_CallbackNotInvoked(t *testing.T) {
	srv := jsonpServer(t, func(string) string { return "other.fn(" + sampleGrid + ")" })
	defer srv.Close()

	reg := NewRegistry()
	var res result
	NewScript(NewHTTP(srv.Client(), 1, nil)).Fetch(context.Background(), Request{URL: srv.URL, Callbacks: reg}, res.done)

	if res.calls != 1 || !errors.Is(res.err, ErrCallbackNotInvoked) {
		t.Errorf("done = (%d calls, err %v), want ErrCallbackNotInvoked", res.calls, res.err)
	}
	if reg.Len() != 0 {
		t.Errorf("registry Len() = %d, want 0", reg.Len())
	}
}

func TestScriptTransport_StaleAfterReset(t *testing.T) {
	reg := NewRegistry()
	srv := jsonpServer(t, func(cb string) string {
		reg.Reset()
		return cb + "(" + sampleGrid + ")"
	})
	defer srv.Close()

	var res result
	NewScript(NewHTTP(srv.Client(), 1, nil)).Fetch(context.Background(), Request{URL: srv.URL, Callbacks: reg}, res.done)

	if res.calls != 0 {
		t.Errorf("done called %d times after Reset, want 0", res.calls)
	}
}

func TestScriptTransport_RequiresRegistry(t *testing.T) {
	var res result
	NewScript(NewHTTP(nil, 1, nil)).Fetch(context.Background(), Request{URL: "http://unused"}, res.done)

	if !errors.Is(res.err, ErrNoRegistry) {
		t.Errorf("error = %v, want ErrNoRegistry", res.err)
	}
}
