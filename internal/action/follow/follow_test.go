package follow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDefaultsNamespace(t *testing.T) {
	a := New(nil, "origin", "main")
	assert.Equal(t, "follow", a.namespace())

	a.RefNamespace = "watch"
	assert.Equal(t, "watch", a.namespace())
}
