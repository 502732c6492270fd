package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRewriter(t *testing.T) {
	r := NewRewriter("__desugar__/")

	assert.Equal(t, "__desugar__/java/util/Map", r.Prefixed("java/util/Map"))
	assert.Equal(t, "__desugar__/java/util/Map", r.Prefixed("__desugar__/java/util/Map"))
	assert.Equal(t, "com/example/Foo", r.Prefixed("com/example/Foo"))

	assert.Equal(t, "java/util/Map", r.Unprefix("__desugar__/java/util/Map"))
	assert.Equal(t, "java/util/Map", r.Unprefix("java/util/Map"))
}

func TestEmptyRewriter(t *testing.T) {
	for _, r := range []*Rewriter{nil, NewRewriter("")} {
		assert.Equal(t, "", r.Prefix())
		assert.Equal(t, "java/util/Map", r.Prefixed("java/util/Map"))
		assert.Equal(t, "java/util/Map", r.Unprefix("java/util/Map"))
	}
}
