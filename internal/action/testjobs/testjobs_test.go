package testjobs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCreatesQueueDirectory(t *testing.T) {
	queue := filepath.Join(t.TempDir(), "nested", "queue")
	tj, err := New(nil, queue, "group/project")
	require.NoError(t, err)
	assert.Equal(t, queue, tj.Queue)

	info, statErr := os.Stat(queue)
	require.NoError(t, statErr)
	assert.True(t, info.IsDir())
}

func TestTestUpdateWritesJSONFile(t *testing.T) {
	queue := t.TempDir()
	tj, err := New(nil, queue, "group/project")
	require.NoError(t, err)

	errE := tj.TestUpdate(map[string]string{"branch": "main"})
	require.NoError(t, errE)

	entries, readErr := os.ReadDir(queue)
	require.NoError(t, readErr)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), ".json")
}

func TestRandomAlphanumericLength(t *testing.T) {
	s := randomAlphanumeric(12)
	assert.Len(t, s, 12)
}
