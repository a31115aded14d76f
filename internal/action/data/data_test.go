package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDataRefSuffix(t *testing.T) {
	algo, digest, ok := parseDataRefSuffix("refs/data/SHA256/abcdef", 1)
	assert.True(t, ok)
	assert.Equal(t, "SHA256", algo)
	assert.Equal(t, "abcdef", digest)

	_, _, ok = parseDataRefSuffix("refs/data/onlyone", 1)
	assert.False(t, ok)
}

func TestParseDataRefSuffixNestedNamespace(t *testing.T) {
	algo, digest, ok := parseDataRefSuffix("refs/team/data/MD5/123", 2)
	assert.True(t, ok)
	assert.Equal(t, "MD5", algo)
	assert.Equal(t, "123", digest)
}

func TestHashWith(t *testing.T) {
	sha256Hash, ok := hashWith("SHA256", []byte("hello"))
	assert.True(t, ok)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", sha256Hash)

	_, ok = hashWith("UNKNOWN", []byte("hello"))
	assert.False(t, ok)
}

func TestNewDefaultsNamespace(t *testing.T) {
	a := New(nil)
	assert.Equal(t, "data", a.namespace())

	a.RefNamespace = "custom"
	assert.Equal(t, "custom", a.namespace())
}
