package workflow

import "github.com/eduflow/eduflow/types"

// Graph is the dependency adjacency structure for a workflow: step id →
// dependency step ids. It is built once per workflow instantiation and
// retained for the life of the workflow, so a paused workflow resumes over
// the unmodified graph.
type Graph struct {
	deps map[string][]string
	// ids preserves step insertion order so the topological order is
	// deterministic among mutually independent steps.
	ids []string
}

// BuildGraph converts a step list into a dependency graph.
func BuildGraph(steps []*Step) *Graph {
	g := &Graph{
		deps: make(map[string][]string, len(steps)),
		ids:  make([]string, 0, len(steps)),
	}
	for _, s := range steps {
		g.deps[s.ID] = append([]string(nil), s.DependsOn...)
		g.ids = append(g.ids, s.ID)
	}
	return g
}

// Dependencies returns the dependency ids declared for a step.
func (g *Graph) Dependencies(id string) []string {
	return g.deps[id]
}

// Len returns the number of steps in the graph.
func (g *Graph) Len() int {
	return len(g.ids)
}

// TopologicalOrder computes a valid execution order: every step appears
// after all of its declared dependencies. A dependency cycle fails with a
// CIRCULAR_DEPENDENCY error naming the offending step, before any step is
// dispatched.
func (g *Graph) TopologicalOrder() ([]string, error) {
	order := make([]string, 0, len(g.ids))
	visited := make(map[string]bool, len(g.ids))
	visiting := make(map[string]bool)

	var visit func(id string) error
	visit = func(id string) error {
		if visited[id] {
			return nil
		}
		if visiting[id] {
			// Back edge: id is on the current DFS path.
			return types.NewErrorf(types.ErrCircularDependency,
				"circular dependency involving step %s", id)
		}
		visiting[id] = true
		for _, dep := range g.deps[id] {
			if _, known := g.deps[dep]; !known {
				// Dangling references are rejected at template
				// registration; tolerate them here so a hand-built
				// graph cannot panic the scheduler.
				continue
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		visiting[id] = false
		visited[id] = true
		order = append(order, id)
		return nil
	}

	for _, id := range g.ids {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return order, nil
}
