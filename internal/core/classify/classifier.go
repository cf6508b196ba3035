// Package classify decides whether a flat query result forms a graph and
// partitions it into vertices and edges.
package classify

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/agenthands/adb-query-runner/internal/apperror"
	"github.com/agenthands/adb-query-runner/internal/core/model"
)

// Analyze classifies every document in order and returns the graph, or the
// first disqualifying element as an InvalidElement error. A result without
// edges is reported as NoEdgesFound. Edge endpoints missing from the result
// are appended as placeholder vertices, in order of first reference.
func Analyze(docs []model.Document) (*model.Graph, error) {
	graph := &model.Graph{
		Vertices: make([]model.Vertex, 0),
		Edges:    make([]model.Edge, 0),
	}
	present := mapset.NewThreadUnsafeSet[string]()
	needed := mapset.NewThreadUnsafeSet[string]()
	var neededOrder []string

	need := func(id string) {
		if needed.Add(id) {
			neededOrder = append(neededOrder, id)
		}
	}

	for _, doc := range docs {
		switch el := model.Classify(doc).(type) {
		case model.Edge:
			need(el.From)
			need(el.To)
			graph.Edges = append(graph.Edges, el)
		case model.Vertex:
			present.Add(el.ID)
			graph.Vertices = append(graph.Vertices, el)
		case model.Invalid:
			return nil, apperror.InvalidElement(el.Reason, el.Doc)
		}
	}

	if len(graph.Edges) == 0 {
		return nil, apperror.NoEdgesFound()
	}

	for _, id := range neededOrder {
		if !present.Contains(id) {
			graph.Vertices = append(graph.Vertices, model.NewPlaceholder(id))
		}
	}

	return graph, nil
}
