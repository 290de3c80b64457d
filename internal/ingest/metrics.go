package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Skip reasons.
const (
	reasonRead   = "read"
	reasonParse  = "parse"
	reasonInsert = "insert"
)

// Metrics counts ingestion progress.
type Metrics struct {
	RowsRead     prometheus.Counter
	RowsInserted prometheus.Counter
	RowsSkipped  *prometheus.CounterVec
}

// NewMetrics registers the ingestion counters on reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RowsRead: f.NewCounter(prometheus.CounterOpts{
			Namespace: "salaries",
			Subsystem: "ingest",
			Name:      "rows_read_total",
			Help:      "CSV rows read during ingestion.",
		}),
		RowsInserted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "salaries",
			Subsystem: "ingest",
			Name:      "rows_inserted_total",
			Help:      "Employee rows inserted during ingestion.",
		}),
		RowsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salaries",
			Subsystem: "ingest",
			Name:      "rows_skipped_total",
			Help:      "CSV rows skipped during ingestion, by reason.",
		}, []string{"reason"}),
	}
}
