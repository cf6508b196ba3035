package model

import (
	"github.com/tidwall/gjson"
)

// Edge is a document with _from and _to vertex references.
type Edge struct {
	From string
	To   string
	Doc  Document
}

func (Edge) isElement() {}

// Raw returns the source document.
func (e Edge) Raw() Document { return e.Doc }

// Key returns the raw _key value. The second result is false when the edge
// has no usable _key (absent or null).
func (e Edge) Key() (gjson.Result, bool) {
	key := gjson.GetBytes(e.Doc, KeyField)
	if !key.Exists() || key.Type == gjson.Null {
		return key, false
	}
	return key, true
}
