package model

import (
	"encoding/json"
)

// ColumnType is a CyREST table column type.
type ColumnType string

const (
	ColumnString  ColumnType = "String"
	ColumnDouble  ColumnType = "Double"
	ColumnBoolean ColumnType = "Boolean"
)

// Table names a per-network CyREST table.
type Table string

const (
	NodeTable Table = "defaultnode"
	EdgeTable Table = "defaultedge"
)

// Column is one typed attribute column to provision.
type Column struct {
	Table Table      `json:"-"`
	Name  string     `json:"name"`
	Type  ColumnType `json:"type"`
}

// ExportElement is a Cytoscape.js element: {"data": {...}}.
type ExportElement struct {
	Data map[string]json.RawMessage `json:"data"`
}

// NetworkData carries the network-level attributes.
type NetworkData struct {
	SharedName string `json:"shared_name"`
	Name       string `json:"name"`
}

// Elements groups the nodes and edges of a network payload.
type Elements struct {
	Nodes []ExportElement `json:"nodes"`
	Edges []ExportElement `json:"edges"`
}

// Network is the body of the CyREST network creation call.
type Network struct {
	FormatVersion            string      `json:"format_version"`
	GeneratedBy              string      `json:"generated_by"`
	TargetCytoscapeJSVersion string      `json:"target_cytoscapejs_version"`
	Data                     NetworkData `json:"data"`
	Elements                 Elements    `json:"elements"`
}
