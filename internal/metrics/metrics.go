package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Store metrics
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "store_query_duration_seconds",
			Help: "Time spent draining a query cursor",
		},
		[]string{"store", "status"},
	)

	CursorBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_cursor_batches_total",
			Help: "Number of result batches fetched from the store",
		},
		[]string{"store"},
	)

	DocumentsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_documents_fetched_total",
			Help: "Number of result documents fetched from the store",
		},
		[]string{"store"},
	)

	// Classification metrics
	Classifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graph_classifications_total",
			Help: "Classification outcomes by kind",
		},
		[]string{"outcome"},
	)

	// Export metrics
	ExportStepFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "export_step_failures_total",
			Help: "Failed visualization service calls by export step",
		},
		[]string{"step"},
	)

	DroppedEdges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "export_dropped_edges_total",
		Help: "Edges dropped from an export because they have no _key",
	})

	ExportedElements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "export_elements_total",
			Help: "Nodes and edges uploaded to the visualization service",
		},
		[]string{"element"},
	)

	CyRESTCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "cyrest_call_duration_seconds",
			Help: "Duration of calls to the visualization service",
		},
		[]string{"operation", "status"},
	)

	// Pipeline metrics
	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "pipeline_duration_seconds",
			Help: "End-to-end time of a query request",
		},
		[]string{"status"},
	)
)

// Status maps an error to a metric label.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
