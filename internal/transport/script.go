package transport

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"utfgrid/internal/grid"
	"utfgrid/internal/metrics"
)

// callbackScript matches `name(...)` and the guarded `name && name(...)`.
var callbackScript = regexp.MustCompile(`(?s)^\s*([A-Za-z_$][\w$.]*)(?:\s*&&\s*([A-Za-z_$][\w$.]*))?\s*\((.*)\)\s*;?\s*$`)

// ScriptTransport fetches callback-wrapped grid documents.
type ScriptTransport struct {
	http *HTTPTransport
}

func NewScript(h *HTTPTransport) *ScriptTransport {
	return &ScriptTransport{http: h}
}

func (t *ScriptTransport) Name() string { return "script" }

func (t *ScriptTransport) Fetch(ctx context.Context, req Request, done DoneFunc) {
	if req.Callbacks == nil {
		done(nil, ErrNoRegistry)
		return
	}

	name := req.Callbacks.Register(req.Key, func(doc *grid.Document) { done(doc, nil) })

	body, err := t.http.get(ctx, CallbackURL(req.URL, name))
	if err != nil {
		if req.Callbacks.Remove(name) {
			done(nil, err)
		}
		return
	}

	invoked, err := Execute(body, req.Callbacks)
	if err != nil {
		if req.Callbacks.Remove(name) {
			done(nil, fmt.Errorf("execute %s: %w", req.URL, err))
		}
		return
	}
	if !invoked {
		t.http.logger.Debug("Ignored stale grid callback", zap.String("url", req.URL), zap.String("callback", name))
	}

	// The script ran but never called us back.
	if req.Callbacks.Remove(name) {
		done(nil, fmt.Errorf("%w: %s", ErrCallbackNotInvoked, req.URL))
	}
}

// CallbackURL appends the guarded callback parameter to rawURL. The guard
// keeps a script from failing when its callback has already been dropped.
func CallbackURL(rawURL, name string) string {
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + "callback=" + url.QueryEscape(name+" && "+name)
}

// Execute runs a callback script against reg and reports whether a
// registered callback was invoked. Invoking a name that is no longer
// registered is a silent no-op.
func Execute(script []byte, reg *Registry) (bool, error) {
	m := callbackScript.FindSubmatch(script)
	if m == nil {
		return false, fmt.Errorf("%w: not a callback script", grid.ErrMalformedDocument)
	}

	callee := string(m[1])
	if len(m[2]) > 0 {
		callee = string(m[2])
	}

	doc, err := grid.Parse(m[3])
	if err != nil {
		return false, err
	}

	if !reg.Invoke(callee, doc) {
		metrics.StaleCallbacksTotal.Inc()
		return false, nil
	}
	return true, nil
}
