package merge

// registerIntoBranches records branch -> child.Name edges (and recurses
// into each child's own chain) for the into-branch propagation of
// spec.md §4.1.
func registerIntoBranches(branch string, into []IntoBranch, fromBranches map[string][]string) {
	for _, child := range into {
		fromBranches[child.Name] = append(fromBranches[child.Name], branch)
		registerIntoBranches(child.Name, child.Chain, fromBranches)
	}
}

// topologicalSort returns a pop order over every branch named by targets
// (directly or as an into-branch descendant) such that every parent
// appears before its children (spec.md §4.1 step 1-4, §8.7). ok is false
// if the into-branch graph contains a cycle.
func topologicalSort(targets []MergeInformation) ([]string, bool) {
	children := map[string][]string{}
	inDegree := map[string]int{}
	nodes := map[string]struct{}{}

	var walk func(name string, into []IntoBranch)
	walk = func(name string, into []IntoBranch) {
		nodes[name] = struct{}{}
		if _, ok := inDegree[name]; !ok {
			inDegree[name] = 0
		}
		for _, child := range into {
			nodes[child.Name] = struct{}{}
			children[name] = append(children[name], child.Name)
			inDegree[child.Name]++
			walk(child.Name, child.Chain)
		}
	}

	for _, target := range targets {
		walk(target.Settings.Branch, target.Settings.IntoBranches)
	}

	var ready []string
	for node := range nodes {
		if inDegree[node] == 0 {
			ready = append(ready, node)
		}
	}

	var order []string
	for len(ready) > 0 {
		// Stable, deterministic-for-a-given-input pop: smallest name
		// first among currently-ready nodes.
		idx := 0
		for i, n := range ready {
			if n < ready[idx] {
				idx = i
			}
		}
		node := ready[idx]
		ready = append(ready[:idx], ready[idx+1:]...)
		order = append(order, node)

		for _, child := range children[node] {
			inDegree[child]--
			if inDegree[child] == 0 {
				ready = append(ready, child)
			}
		}
	}

	if len(order) != len(nodes) {
		return nil, false
	}
	return order, true
}
