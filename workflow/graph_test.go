package workflow

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/eduflow/eduflow/types"
)

func stepsFromDeps(deps map[string][]string, order []string) []*Step {
	steps := make([]*Step, 0, len(order))
	for _, id := range order {
		steps = append(steps, &Step{ID: id, DependsOn: deps[id]})
	}
	return steps
}

// assertTopological verifies every step appears after all its dependencies.
func assertTopological(t *testing.T, g *Graph, order []string) {
	t.Helper()
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	for _, id := range order {
		for _, dep := range g.Dependencies(id) {
			assert.Less(t, pos[dep], pos[id],
				"step %s must come after its dependency %s", id, dep)
		}
	}
}

func TestTopologicalOrder_Diamond(t *testing.T) {
	g := BuildGraph(stepsFromDeps(map[string][]string{
		"a": nil,
		"b": {"a"},
		"c": {"a"},
		"d": {"b", "c"},
	}, []string{"a", "b", "c", "d"}))

	order, err := g.TopologicalOrder()
	require.NoError(t, err)
	require.Len(t, order, 4)
	assertTopological(t, g, order)
	assert.Equal(t, "a", order[0])
	assert.Equal(t, "d", order[3])
}

func TestTopologicalOrder_Deterministic(t *testing.T) {
	g := BuildGraph(stepsFromDeps(map[string][]string{
		"x": nil, "y": nil, "z": nil,
	}, []string{"x", "y", "z"}))

	first, err := g.TopologicalOrder()
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := g.TopologicalOrder()
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	// Independent steps keep insertion order.
	assert.Equal(t, []string{"x", "y", "z"}, first)
}

func TestTopologicalOrder_SelfCycle(t *testing.T) {
	g := BuildGraph(stepsFromDeps(map[string][]string{
		"a": {"a"},
	}, []string{"a"}))

	_, err := g.TopologicalOrder()
	require.Error(t, err)
	assert.Equal(t, types.ErrCircularDependency, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "a")
}

func TestTopologicalOrder_Cycle(t *testing.T) {
	g := BuildGraph(stepsFromDeps(map[string][]string{
		"a": {"c"},
		"b": {"a"},
		"c": {"b"},
	}, []string{"a", "b", "c"}))

	_, err := g.TopologicalOrder()
	require.Error(t, err)
	assert.Equal(t, types.ErrCircularDependency, types.GetErrorCode(err))
}

func TestTopologicalOrder_DanglingDependencyTolerated(t *testing.T) {
	// Registration validates step references; a hand-built graph with a
	// dangling dependency must not panic the scheduler.
	g := BuildGraph([]*Step{{ID: "a", DependsOn: []string{"ghost"}}})

	order, err := g.TopologicalOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, order)
}

func TestTopologicalOrder_RandomDAG(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 20).Draw(rt, "n")
		steps := make([]*Step, n)
		for i := 0; i < n; i++ {
			id := fmt.Sprintf("s%d", i)
			// Depending only on earlier steps keeps the graph acyclic.
			var deps []string
			if i > 0 {
				picks := rapid.SliceOfNDistinct(rapid.IntRange(0, i-1), 0, i, rapid.ID[int]).
					Draw(rt, "deps")
				for _, p := range picks {
					deps = append(deps, fmt.Sprintf("s%d", p))
				}
			}
			steps[i] = &Step{ID: id, DependsOn: deps}
		}

		g := BuildGraph(steps)
		order, err := g.TopologicalOrder()
		if err != nil {
			rt.Fatalf("unexpected error: %v", err)
		}
		if len(order) != n {
			rt.Fatalf("expected %d steps in order, got %d", n, len(order))
		}
		pos := make(map[string]int, n)
		for i, id := range order {
			pos[id] = i
		}
		for _, s := range steps {
			for _, dep := range s.DependsOn {
				if pos[dep] >= pos[s.ID] {
					rt.Fatalf("step %s scheduled before its dependency %s", s.ID, dep)
				}
			}
		}
	})
}

func TestTopologicalOrder_RandomDAGWithBackEdge(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(2, 20).Draw(rt, "n")
		steps := make([]*Step, n)
		for i := 0; i < n; i++ {
			var deps []string
			if i > 0 {
				// A chain guarantees the back edge closes a cycle.
				deps = []string{fmt.Sprintf("s%d", i-1)}
			}
			steps[i] = &Step{ID: fmt.Sprintf("s%d", i), DependsOn: deps}
		}
		from := rapid.IntRange(0, n-2).Draw(rt, "from")
		to := rapid.IntRange(from+1, n-1).Draw(rt, "to")
		steps[from].DependsOn = append(steps[from].DependsOn, fmt.Sprintf("s%d", to))

		g := BuildGraph(steps)
		_, err := g.TopologicalOrder()
		if err == nil {
			rt.Fatalf("expected cycle detection for back edge s%d -> s%d", from, to)
		}
		if types.GetErrorCode(err) != types.ErrCircularDependency {
			rt.Fatalf("expected CIRCULAR_DEPENDENCY, got %v", err)
		}
	})
}
