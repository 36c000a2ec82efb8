package extract

import (
	"context"
	"log/slog"
	"sort"
)

// DependencyGraph answers component dependency queries. Implementations may
// be backed by a remote service; see StaticGraph for the built-in topology.
type DependencyGraph interface {
	// Dependents returns the components that depend on the given component.
	Dependents(ctx context.Context, component string) ([]string, error)
}

// ImpactReport is the knowledge-graph answer for a set of failing
// components. When the backing graph is unavailable the report carries empty
// structures and a generic recommendation; the adapter never fails the run.
type ImpactReport struct {
	FailingComponents    []string            `json:"failing_components"`
	Dependents           map[string][]string `json:"dependents"`
	TransitiveDependents []string            `json:"transitive_dependents"`
	CommonDependency     string              `json:"common_dependency,omitempty"`
	Recommendation       string              `json:"recommendation"`
	GraphAvailable       bool                `json:"graph_available"`
}

const genericRecommendation = "dependency graph unavailable; review failing components individually"

// GraphAdapter wraps a DependencyGraph with the degrade-to-empty contract.
type GraphAdapter struct {
	graph  DependencyGraph
	logger *slog.Logger
}

// NewGraphAdapter creates an adapter. graph may be nil (always degraded).
func NewGraphAdapter(graph DependencyGraph) *GraphAdapter {
	return &GraphAdapter{graph: graph, logger: slog.Default()}
}

// Impact computes dependents, transitive dependents, and the common
// dependency for the failing components. Backend errors degrade to an empty
// report; they are never returned to the caller.
func (a *GraphAdapter) Impact(ctx context.Context, failing []string) *ImpactReport {
	report := &ImpactReport{
		FailingComponents: append([]string(nil), failing...),
		Dependents:        make(map[string][]string),
		Recommendation:    genericRecommendation,
	}
	if a.graph == nil || len(failing) == 0 {
		return report
	}

	transitive := make(map[string]bool)
	for _, comp := range failing {
		deps, err := a.graph.Dependents(ctx, comp)
		if err != nil {
			a.logger.Warn("Knowledge graph query failed, degrading to empty impact",
				"component", comp, "error", err)
			return &ImpactReport{
				FailingComponents: report.FailingComponents,
				Dependents:        make(map[string][]string),
				Recommendation:    genericRecommendation,
			}
		}
		report.Dependents[comp] = deps
		for _, d := range deps {
			a.collectTransitive(ctx, d, transitive)
		}
	}

	report.GraphAvailable = true
	report.TransitiveDependents = sortedKeys(transitive)
	report.CommonDependency = commonDependency(report.Dependents)
	if report.CommonDependency != "" {
		report.Recommendation = "multiple failures share dependency " + report.CommonDependency + "; investigate it first"
	} else {
		report.Recommendation = "no shared dependency found; failures are likely independent"
	}
	return report
}

// collectTransitive walks the dependent closure. Errors stop the walk for
// that branch only; the visited set doubles as a cycle guard.
func (a *GraphAdapter) collectTransitive(ctx context.Context, component string, visited map[string]bool) {
	if visited[component] {
		return
	}
	visited[component] = true
	deps, err := a.graph.Dependents(ctx, component)
	if err != nil {
		return
	}
	for _, d := range deps {
		a.collectTransitive(ctx, d, visited)
	}
}

// commonDependency returns a dependent shared by every failing component,
// or "" when none exists. The smallest name wins for determinism.
func commonDependency(dependents map[string][]string) string {
	if len(dependents) < 2 {
		return ""
	}
	counts := make(map[string]int)
	for _, deps := range dependents {
		for _, d := range deps {
			counts[d]++
		}
	}
	var shared []string
	for d, n := range counts {
		if n == len(dependents) {
			shared = append(shared, d)
		}
	}
	if len(shared) == 0 {
		return ""
	}
	sort.Strings(shared)
	return shared[0]
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// StaticGraph is an in-memory DependencyGraph seeded with a fixed topology.
type StaticGraph struct {
	edges map[string][]string // component → dependents
}

// NewStaticGraph builds a graph from component → dependents edges.
func NewStaticGraph(edges map[string][]string) *StaticGraph {
	copied := make(map[string][]string, len(edges))
	for k, v := range edges {
		copied[k] = append([]string(nil), v...)
	}
	return &StaticGraph{edges: copied}
}

// Dependents implements DependencyGraph.
func (g *StaticGraph) Dependents(_ context.Context, component string) ([]string, error) {
	return append([]string(nil), g.edges[component]...), nil
}
