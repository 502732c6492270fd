// Package naming implements the per-run prefix convention applied to core
// library type names while they are being desugared.
package naming

import "strings"

// prefixedRoots are the namespaces a run prefix applies to.
var prefixedRoots = []string{"java/", "sun/"}

// Rewriter prefixes and unprefixes internal names. The zero value (and a
// Rewriter with an empty prefix) leaves every name unchanged.
type Rewriter struct {
	prefix string
}

// NewRewriter returns a Rewriter for the given prefix, e.g. "__desugar__/".
func NewRewriter(prefix string) *Rewriter {
	return &Rewriter{prefix: prefix}
}

// Prefix returns the run prefix.
func (r *Rewriter) Prefix() string {
	if r == nil {
		return ""
	}
	return r.prefix
}

// Prefixed applies the run prefix to core library names.
func (r *Rewriter) Prefixed(name string) string {
	if r.Prefix() == "" || strings.HasPrefix(name, r.prefix) {
		return name
	}
	for _, root := range prefixedRoots {
		if strings.HasPrefix(name, root) {
			return r.prefix + name
		}
	}
	return name
}

// Unprefix strips the run prefix if present.
func (r *Rewriter) Unprefix(name string) string {
	if r.Prefix() == "" {
		return name
	}
	return strings.TrimPrefix(name, r.prefix)
}
