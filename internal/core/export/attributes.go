package export

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/tidwall/gjson"

	"github.com/agenthands/adb-query-runner/internal/core/model"
)

// Built-in columns of the CyREST default tables. They always exist, so they
// are never provisioned.
var reservedColumns = mapset.NewSet(
	"SUID", "shared name", "name", "selected", "interaction", "shared interaction",
)

// DiscoverAttributes returns the sorted union of user attribute names over
// docs. Names starting with "_" are system fields and excluded.
func DiscoverAttributes(docs []model.Document) []string {
	names := mapset.NewThreadUnsafeSet[string]()
	for _, doc := range docs {
		for _, attr := range model.UserAttributes(doc) {
			names.Add(attr.Name)
		}
	}
	out := names.ToSlice()
	sort.Strings(out)
	return out
}

// InferColumnTypes maps each attribute to the column type of the first value
// in docs that is a string, number or boolean. Attributes without such a
// value default to String.
func InferColumnTypes(names []string, docs []model.Document) map[string]model.ColumnType {
	types := make(map[string]model.ColumnType, len(names))
	pending := mapset.NewThreadUnsafeSet(names...)

	for _, doc := range docs {
		if pending.Cardinality() == 0 {
			break
		}
		for _, attr := range model.UserAttributes(doc) {
			if !pending.Contains(attr.Name) {
				continue
			}
			if t, ok := columnType(attr.Value); ok {
				types[attr.Name] = t
				pending.Remove(attr.Name)
			}
		}
	}

	for name := range pending.Iter() {
		types[name] = model.ColumnString
	}
	return types
}

func columnType(v gjson.Result) (model.ColumnType, bool) {
	switch v.Type {
	case gjson.String:
		return model.ColumnString, true
	case gjson.Number:
		return model.ColumnDouble, true
	case gjson.True, gjson.False:
		return model.ColumnBoolean, true
	default:
		return "", false
	}
}

// Columns builds the column set to provision for table.
func Columns(table model.Table, docs []model.Document) []model.Column {
	names := DiscoverAttributes(docs)
	types := InferColumnTypes(names, docs)

	columns := make([]model.Column, 0, len(names))
	for _, name := range names {
		if reservedColumns.Contains(name) {
			continue
		}
		columns = append(columns, model.Column{Table: table, Name: name, Type: types[name]})
	}
	return columns
}
