package model

import (
	"encoding/json"
)

// Vertex is a document whose _id has the collection/key shape.
type Vertex struct {
	ID  string
	Doc Document
	// Placeholder marks vertices synthesized for edge endpoints that had no
	// explicit document in the result set.
	Placeholder bool
}

func (Vertex) isElement() {}

// Raw returns the source document.
func (v Vertex) Raw() Document { return v.Doc }

// NewPlaceholder builds the minimal vertex {"_id": id}.
func NewPlaceholder(id string) Vertex {
	doc, _ := json.Marshal(map[string]string{IDField: id})
	return Vertex{ID: id, Doc: doc, Placeholder: true}
}

