package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractFencedBlockFindsTaggedBlock(t *testing.T) {
	description := "Some intro text.\n\n```message\nFix the frobnicator overflow.\n\nCloses #42.\n```\n\nMore text after."
	summary, ok := extractFencedBlock(description, "message")
	assert.True(t, ok)
	assert.Equal(t, "Fix the frobnicator overflow.\n\nCloses #42.", summary)
}

func TestExtractFencedBlockIgnoresOtherLanguages(t *testing.T) {
	description := "```diff\n+added line\n```\n"
	_, ok := extractFencedBlock(description, "message")
	assert.False(t, ok)
}

func TestExtractFencedBlockMissing(t *testing.T) {
	_, ok := extractFencedBlock("no fenced block here", "message")
	assert.False(t, ok)
}
