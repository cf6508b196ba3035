package export

import (
	"encoding/json"

	"github.com/agenthands/adb-query-runner/internal/apperror"
	"github.com/agenthands/adb-query-runner/internal/core/model"
)

const (
	FormatVersion            = "1.0"
	GeneratedBy              = "adb_query_runner"
	TargetCytoscapeJSVersion = "~3.0"
)

// TranslateVertex builds the export node for v. name defaults to the vertex
// id and is replaced by an explicit name attribute.
func TranslateVertex(v model.Vertex) model.ExportElement {
	id := quote(v.ID)
	data := map[string]json.RawMessage{
		"id":   id,
		"name": id,
	}
	for _, attr := range model.UserAttributes(v.Doc) {
		data[attr.Name] = json.RawMessage(attr.Value.Raw)
	}
	data["id"] = id
	return model.ExportElement{Data: data}
}

// TranslateEdge builds the export edge for e. It reports false when the
// edge has no usable _key.
func TranslateEdge(e model.Edge) (model.ExportElement, bool) {
	key, ok := e.Key()
	if !ok {
		return model.ExportElement{}, false
	}

	data := make(map[string]json.RawMessage)
	for _, attr := range model.UserAttributes(e.Doc) {
		data[attr.Name] = json.RawMessage(attr.Value.Raw)
	}
	data["id"] = json.RawMessage(key.Raw)
	data["source"] = quote(e.From)
	data["target"] = quote(e.To)
	return model.ExportElement{Data: data}, true
}

// BuildNetwork translates g into a network payload. Edges without a key are
// left out and returned as dropped.
func BuildNetwork(name string, g *model.Graph) (model.Network, []*apperror.Error) {
	nodes := make([]model.ExportElement, 0, len(g.Vertices))
	for _, v := range g.Vertices {
		nodes = append(nodes, TranslateVertex(v))
	}

	var dropped []*apperror.Error
	edges := make([]model.ExportElement, 0, len(g.Edges))
	for _, e := range g.Edges {
		el, ok := TranslateEdge(e)
		if !ok {
			dropped = append(dropped, apperror.MissingEdgeKey(e.Doc))
			continue
		}
		edges = append(edges, el)
	}

	return model.Network{
		FormatVersion:            FormatVersion,
		GeneratedBy:              GeneratedBy,
		TargetCytoscapeJSVersion: TargetCytoscapeJSVersion,
		Data:                     model.NetworkData{SharedName: name, Name: name},
		Elements:                 model.Elements{Nodes: nodes, Edges: edges},
	}, dropped
}

func quote(s string) json.RawMessage {
	raw, _ := json.Marshal(s)
	return raw
}
