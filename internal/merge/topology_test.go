package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func index(order []string, name string) int {
	for i, n := range order {
		if n == name {
			return i
		}
	}
	return -1
}

func TestTopologicalSortOrdersParentsBeforeChildren(t *testing.T) {
	targets := []MergeInformation{
		{Settings: &MergeSettings{
			Branch: "main",
			IntoBranches: []IntoBranch{
				{Name: "release", Chain: []IntoBranch{
					{Name: "release-next"},
				}},
			},
		}},
		{Settings: &MergeSettings{Branch: "release-1.x"}},
	}

	order, ok := topologicalSort(targets)
	require.True(t, ok)
	assert.Less(t, index(order, "main"), index(order, "release"))
	assert.Less(t, index(order, "release"), index(order, "release-next"))
	assert.Contains(t, order, "release-1.x")
}

func TestTopologicalSortDetectsCycle(t *testing.T) {
	// A cycle cannot be expressed directly through IntoBranch (a rooted
	// tree structure), so this exercises the degenerate case where a
	// branch is its own descendant via two distinct targets pointing at
	// each other.
	targets := []MergeInformation{
		{Settings: &MergeSettings{
			Branch:       "a",
			IntoBranches: []IntoBranch{{Name: "b"}},
		}},
		{Settings: &MergeSettings{
			Branch:       "b",
			IntoBranches: []IntoBranch{{Name: "a"}},
		}},
	}

	_, ok := topologicalSort(targets)
	assert.False(t, ok)
}

func TestUpdateMergeMessageElidesWhenTargetRequestsIt(t *testing.T) {
	renamer := map[string]branchInfo{
		"main":    {Name: "main"},
		"release": {Name: "main", Elide: true},
	}
	assert.Equal(t, "Merge branch 'main'", updateMergeMessage(renamer, "main", "release"))
}

func TestUpdateMergeMessageIncludesTargetWhenNotElided(t *testing.T) {
	renamer := map[string]branchInfo{
		"main":    {Name: "main"},
		"release": {Name: "release"},
	}
	assert.Equal(t, "Merge branch 'main' into release", updateMergeMessage(renamer, "main", "release"))
}
