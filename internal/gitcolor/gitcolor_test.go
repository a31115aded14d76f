package gitcolor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghostflow/ghostflow/internal/gitcolor"
)

func TestParse(t *testing.T) {
	assert.Equal(t, gitcolor.Spec{}, gitcolor.Parse("normal"))

	got := gitcolor.Parse("normal red")
	require.NotNil(t, got.Background)
	assert.Equal(t, gitcolor.Color{Kind: gitcolor.ANSI, ANSIIndex: 1}, *got.Background)
	assert.Nil(t, got.Foreground)

	got = gitcolor.Parse("bold nobold")
	assert.Nil(t, got.Foreground)
	assert.Nil(t, got.Background)

	assert.Nil(t, gitcolor.Parse("300").Foreground)
	assert.Nil(t, gitcolor.Parse("300").Background)

	got = gitcolor.Parse("#123456")
	require.NotNil(t, got.Foreground)
	assert.Equal(t, gitcolor.Color{Kind: gitcolor.RGB, R: 0x12, G: 0x34, B: 0x56}, *got.Foreground)
}

func TestParseHexColor(t *testing.T) {
	_, err := gitcolor.ParseHexColor("bad length")
	assert.ErrorIs(t, err, gitcolor.ErrHexLength)

	_, err = gitcolor.ParseHexColor("missing")
	assert.ErrorIs(t, err, gitcolor.ErrHexMissingSigil)

	_, err = gitcolor.ParseHexColor("#xxffff")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid red component")
}
