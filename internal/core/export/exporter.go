// Package export publishes a classified graph to Cytoscape through CyREST.
package export

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/agenthands/adb-query-runner/internal/apperror"
	"github.com/agenthands/adb-query-runner/internal/config"
	"github.com/agenthands/adb-query-runner/internal/core/model"
	"github.com/agenthands/adb-query-runner/internal/logging"
	"github.com/agenthands/adb-query-runner/internal/metrics"
)

// Service is the part of the CyREST API the exporter drives.
type Service interface {
	CreateNetwork(ctx context.Context, network model.Network) (int64, error)
	CreateColumn(ctx context.Context, networkSUID int64, column model.Column) error
	ApplyLayout(ctx context.Context, networkSUID int64, layout string) error
}

type Options struct {
	NetworkName       string
	Layout            string
	ColumnConcurrency int
}

// OptionsFromConfig reads exporter options from the cytoscape section.
func OptionsFromConfig(cfg config.CytoscapeConfig) Options {
	return Options{
		NetworkName:       cfg.NetworkName,
		Layout:            cfg.Layout,
		ColumnConcurrency: cfg.ColumnConcurrency,
	}
}

type Exporter struct {
	service Service
	opts    Options
	logger  *logrus.Logger
}

func New(service Service, opts Options, logger *logrus.Logger) *Exporter {
	if opts.NetworkName == "" {
		opts.NetworkName = config.DefaultNetworkName
	}
	if opts.Layout == "" {
		opts.Layout = config.DefaultLayout
	}
	if opts.ColumnConcurrency <= 0 {
		opts.ColumnConcurrency = 1
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Exporter{service: service, opts: opts, logger: logger}
}

// Report summarizes a completed (possibly partial) export.
type Report struct {
	NetworkSUID  int64             `json:"network_suid"`
	Nodes        int               `json:"nodes"`
	Edges        int               `json:"edges"`
	NodeColumns  []model.Column    `json:"node_columns"`
	EdgeColumns  []model.Column    `json:"edge_columns"`
	Layout       string            `json:"layout"`
	DroppedEdges []*apperror.Error `json:"dropped_edges,omitempty"`
}

// Export creates a network for g, provisions its attribute columns and
// applies the layout. A failed network creation aborts with no report.
// Once the network exists every remaining step is attempted; their failures
// come back together as a *apperror.PartialExportError next to the report.
func (e *Exporter) Export(ctx context.Context, g *model.Graph) (*Report, error) {
	log := logging.Entry(ctx, e.logger)

	nodeColumns := Columns(model.NodeTable, g.VertexDocuments())
	edgeColumns := Columns(model.EdgeTable, g.EdgeDocuments())

	network, dropped := BuildNetwork(e.opts.NetworkName, g)
	for _, d := range dropped {
		log.WithField("edge", string(d.Value)).Warn("Edge has no _key, dropped from export")
	}
	metrics.DroppedEdges.Add(float64(len(dropped)))

	suid, err := e.service.CreateNetwork(ctx, network)
	if err != nil {
		metrics.ExportStepFailures.WithLabelValues("create_network").Inc()
		log.WithError(err).Error("Failed to create network")
		return nil, err
	}
	metrics.ExportedElements.WithLabelValues("node").Add(float64(len(network.Elements.Nodes)))
	metrics.ExportedElements.WithLabelValues("edge").Add(float64(len(network.Elements.Edges)))

	report := &Report{
		NetworkSUID:  suid,
		Nodes:        len(network.Elements.Nodes),
		Edges:        len(network.Elements.Edges),
		NodeColumns:  nodeColumns,
		EdgeColumns:  edgeColumns,
		Layout:       e.opts.Layout,
		DroppedEdges: dropped,
	}
	log = log.WithField("network_suid", suid)

	failures := e.provisionColumns(ctx, suid, append(append([]model.Column{}, nodeColumns...), edgeColumns...))

	if err := e.service.ApplyLayout(ctx, suid, e.opts.Layout); err != nil {
		metrics.ExportStepFailures.WithLabelValues("apply_layout").Inc()
		failures = append(failures, err)
	}

	if len(failures) > 0 {
		for _, f := range failures {
			log.WithError(f).Warn("Export step failed")
		}
		return report, &apperror.PartialExportError{NetworkSUID: suid, Failures: failures}
	}

	log.WithFields(logrus.Fields{
		"nodes":   report.Nodes,
		"edges":   report.Edges,
		"dropped": len(dropped),
	}).Info("Export completed")
	return report, nil
}

// provisionColumns creates every column, at most ColumnConcurrency at a
// time, and returns the failures in column order.
func (e *Exporter) provisionColumns(ctx context.Context, suid int64, columns []model.Column) []error {
	errs := make([]error, len(columns))
	g := errgroup.Group{}
	g.SetLimit(e.opts.ColumnConcurrency)
	for i, col := range columns {
		i, col := i, col
		g.Go(func() error {
			if err := e.service.CreateColumn(ctx, suid, col); err != nil {
				metrics.ExportStepFailures.WithLabelValues("create_column").Inc()
				errs[i] = err
			}
			return nil
		})
	}
	_ = g.Wait()

	var failures []error
	for _, err := range errs {
		if err != nil {
			failures = append(failures, err)
		}
	}
	return failures
}
