package tile

import (
	"strconv"
	"strings"
)

// Source produces the grid document URL for a tile.
type Source interface {
	URL(k Key) string
}

// Template is a Source built from a URL pattern with {z}, {x}, {y} and
// optional {s} subdomain placeholders.
type Template struct {
	Pattern    string
	Subdomains []string
}

// NewTemplate returns a template using the a/b/c subdomains.
func NewTemplate(pattern string) *Template {
	return &Template{
		Pattern:    pattern,
		Subdomains: []string{"a", "b", "c"},
	}
}

func (t *Template) URL(k Key) string {
	r := strings.NewReplacer(
		"{z}", strconv.Itoa(k.Z),
		"{x}", strconv.Itoa(k.X),
		"{y}", strconv.Itoa(k.Y),
		"{s}", t.subdomain(k),
	)
	return r.Replace(t.Pattern)
}

func (t *Template) subdomain(k Key) string {
	if len(t.Subdomains) == 0 {
		return ""
	}
	i := k.X + k.Y
	if i < 0 {
		i = -i
	}
	return t.Subdomains[i%len(t.Subdomains)]
}
