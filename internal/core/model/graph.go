package model

import (
	"encoding/json"
)

// Graph is the vertex/edge partition of a result set. Every edge endpoint
// has a matching vertex.
type Graph struct {
	Vertices []Vertex
	Edges    []Edge
}

// VertexDocuments returns the vertex documents in order.
func (g *Graph) VertexDocuments() []Document {
	docs := make([]Document, 0, len(g.Vertices))
	for _, v := range g.Vertices {
		docs = append(docs, v.Doc)
	}
	return docs
}

// EdgeDocuments returns the edge documents in order.
func (g *Graph) EdgeDocuments() []Document {
	docs := make([]Document, 0, len(g.Edges))
	for _, e := range g.Edges {
		docs = append(docs, e.Doc)
	}
	return docs
}

// Documents returns vertices followed by edges as one flat result set.
func (g *Graph) Documents() []Document {
	return append(g.VertexDocuments(), g.EdgeDocuments()...)
}

// MarshalJSON renders {"vertices": [...], "edges": [...]}.
func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Vertices []Document `json:"vertices"`
		Edges    []Document `json:"edges"`
	}{
		Vertices: g.VertexDocuments(),
		Edges:    g.EdgeDocuments(),
	})
}
