package template_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ghostflow/ghostflow/internal/template"
)

func TestReplace(t *testing.T) {
	data := map[string]string{
		"id":        "id",
		"name":      "value",
		"confusing": "{name}",
	}

	got := template.New("This can be a {confusing} replacement for {name}.").Replace(data)
	assert.Equal(t, "This can be a {name} replacement for value.", got)

	got = template.New("simple {replacement}").Replace(data)
	assert.Equal(t, "simple ", got)
}

func TestParseEdgeCases(t *testing.T) {
	assert.Equal(t, "plain text", template.New("plain text").Replace(nil))
	// "{}" does not match the field pattern (requires at least one char) so
	// it is kept as literal text.
	assert.Equal(t, "a{}b", template.New("a{}b").Replace(nil))
	// a hyphen is outside [A-Za-z0-9_], so the whole token is literal.
	assert.Equal(t, "a{invalid-literal}b", template.New("a{invalid-literal}b").Replace(nil))
	assert.Equal(t, "value", template.New("{name}").Replace(map[string]string{"name": "value"}))
}
