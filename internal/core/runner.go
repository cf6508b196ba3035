// Package core wires the query pipeline: execute, classify, export.
package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/agenthands/adb-query-runner/internal/apperror"
	"github.com/agenthands/adb-query-runner/internal/config"
	"github.com/agenthands/adb-query-runner/internal/core/classify"
	"github.com/agenthands/adb-query-runner/internal/core/export"
	"github.com/agenthands/adb-query-runner/internal/core/model"
	"github.com/agenthands/adb-query-runner/internal/driver"
	"github.com/agenthands/adb-query-runner/internal/logging"
	"github.com/agenthands/adb-query-runner/internal/metrics"
)

type Exporter interface {
	Export(ctx context.Context, g *model.Graph) (*export.Report, error)
}

type Runner struct {
	Driver   driver.QueryExecutor
	Exporter Exporter
	Timeout  time.Duration
	logger   *logrus.Logger
}

// NewRunner builds a runner. A nil exporter disables the export stage.
func NewRunner(driver driver.QueryExecutor, exporter Exporter, timeout time.Duration, logger *logrus.Logger) *Runner {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{
		Driver:   driver,
		Exporter: exporter,
		Timeout:  timeout,
		logger:   logger,
	}
}

// Result is the outcome of one pipeline run. A result set that is not a
// graph is still a successful run: IsGraph is false and
// ClassificationError says why.
type Result struct {
	Documents           []model.Document
	IsGraph             bool
	Graph               *model.Graph
	ClassificationError error
	Export              *export.Report
	ExportError         error
}

func (r *Result) MarshalJSON() ([]byte, error) {
	docs := r.Documents
	if docs == nil {
		docs = []model.Document{}
	}
	return json.Marshal(struct {
		Results             []model.Document `json:"results"`
		IsGraph             bool             `json:"is_graph"`
		Graph               *model.Graph     `json:"graph,omitempty"`
		ClassificationError any              `json:"classification_error,omitempty"`
		Export              *export.Report   `json:"export,omitempty"`
		ExportError         any              `json:"export_error,omitempty"`
	}{
		Results:             docs,
		IsGraph:             r.IsGraph,
		Graph:               r.Graph,
		ClassificationError: apperror.Describe(r.ClassificationError),
		Export:              r.Export,
		ExportError:         apperror.Describe(r.ExportError),
	})
}

// Run executes def with bindVars. Only a failed query is returned as an
// error; classification and export outcomes are reported in the Result.
func (r *Runner) Run(ctx context.Context, def config.QueryDefinition, bindVars map[string]any) (res *Result, err error) {
	start := time.Now()
	defer func() {
		metrics.PipelineDuration.WithLabelValues(metrics.Status(err)).Observe(time.Since(start).Seconds())
	}()

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	log := logging.Entry(ctx, r.logger).WithField("query", def.Name)

	docs, err := r.Driver.ExecuteQuery(ctx, def.Query, bindVars)
	if err != nil {
		log.WithError(err).Error("Query failed")
		return nil, err
	}
	res = &Result{Documents: docs}

	graph, cErr := classify.Analyze(docs)
	if cErr != nil {
		metrics.Classifications.WithLabelValues(string(apperror.KindOf(cErr))).Inc()
		log.WithField("reason", cErr.Error()).Info("Result is not a graph")
		res.ClassificationError = cErr
		return res, nil
	}
	metrics.Classifications.WithLabelValues("graph").Inc()
	res.IsGraph = true
	res.Graph = graph
	log.WithFields(logrus.Fields{
		"vertices": len(graph.Vertices),
		"edges":    len(graph.Edges),
	}).Info("Result classified as graph")

	if r.Exporter == nil {
		return res, nil
	}
	res.Export, res.ExportError = r.Exporter.Export(ctx, graph)
	if res.ExportError != nil {
		log.WithError(res.ExportError).Warn("Export did not complete")
	}
	return res, nil
}
