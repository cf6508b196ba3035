package model

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// Field names of the store's document conventions.
const (
	IDField   = "_id"
	FromField = "_from"
	ToField   = "_to"
	KeyField  = "_key"

	// SystemPrefix marks store-internal attributes.
	SystemPrefix = "_"
	// Separator splits a vertex id into collection and key.
	Separator = "/"
)

// Rejection reasons reported for Invalid elements.
const (
	ReasonNotObject      = "non-object element"
	ReasonEndpointType   = "_from/_to not a string"
	ReasonEndpointFormat = "invalid _from/_to format"
	ReasonIDFormat       = "invalid _id format"
	ReasonUnknownShape   = "element is neither vertex nor edge"
)

// Document is one raw JSON value of a query result.
type Document = json.RawMessage

// Element is the classified form of a Document: exactly one of Vertex, Edge
// or Invalid.
type Element interface {
	Raw() Document
	isElement()
}

// Invalid is a document that can be neither a vertex nor an edge.
type Invalid struct {
	Reason string
	Doc    Document
}

func (Invalid) isElement() {}

// Raw returns the source document.
func (i Invalid) Raw() Document { return i.Doc }

// Classify decides what a single document is. Edge markers take precedence
// over _id, so an edge document carrying its own _id is still an edge.
func Classify(doc Document) Element {
	parsed := gjson.ParseBytes(doc)
	if !parsed.IsObject() {
		return Invalid{Reason: ReasonNotObject, Doc: doc}
	}

	from, to := parsed.Get(FromField), parsed.Get(ToField)
	if from.Exists() && to.Exists() {
		if from.Type != gjson.String || to.Type != gjson.String {
			return Invalid{Reason: ReasonEndpointType, Doc: doc}
		}
		if !IsVertexID(from.Str) || !IsVertexID(to.Str) {
			return Invalid{Reason: ReasonEndpointFormat, Doc: doc}
		}
		return Edge{From: from.Str, To: to.Str, Doc: doc}
	}

	if id := parsed.Get(IDField); id.Exists() {
		if id.Type != gjson.String || !IsVertexID(id.Str) {
			return Invalid{Reason: ReasonIDFormat, Doc: doc}
		}
		return Vertex{ID: id.Str, Doc: doc}
	}

	return Invalid{Reason: ReasonUnknownShape, Doc: doc}
}

// IsVertexID reports whether id contains exactly one separator.
func IsVertexID(id string) bool {
	return strings.Count(id, Separator) == 1
}

// Attribute is one user-visible field of a document.
type Attribute struct {
	Name  string
	Value gjson.Result
}

// UserAttributes returns the fields of doc that do not start with
// SystemPrefix, in document order.
func UserAttributes(doc Document) []Attribute {
	var attrs []Attribute
	gjson.ParseBytes(doc).ForEach(func(key, value gjson.Result) bool {
		if !strings.HasPrefix(key.Str, SystemPrefix) {
			attrs = append(attrs, Attribute{Name: key.Str, Value: value})
		}
		return true
	})
	return attrs
}
