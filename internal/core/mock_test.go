package core

import (
	"context"

	"github.com/agenthands/adb-query-runner/internal/core/export"
	"github.com/agenthands/adb-query-runner/internal/core/model"
)

type MockDriver struct {
	QueryExecuted string
	QueryParams   map[string]any
	MockResult    []model.Document
	Err           error
	Deadline      bool
}

func (m *MockDriver) ExecuteQuery(ctx context.Context, query string, params map[string]any) ([]model.Document, error) {
	m.QueryExecuted = query
	m.QueryParams = params
	_, m.Deadline = ctx.Deadline()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.MockResult, nil
}

func (m *MockDriver) Close(ctx context.Context) error {
	return nil
}

type MockExporter struct {
	Called int
	Graph  *model.Graph
	Report *export.Report
	Err    error
}

func (m *MockExporter) Export(ctx context.Context, g *model.Graph) (*export.Report, error) {
	m.Called++
	m.Graph = g
	return m.Report, m.Err
}

func documents(raw ...string) []model.Document {
	out := make([]model.Document, 0, len(raw))
	for _, r := range raw {
		out = append(out, model.Document(r))
	}
	return out
}
