package service

import "github.com/prometheus/client_golang/prometheus"

var (
	SalesIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "possync_sales_ingested_total",
			Help: "Sale submissions by outcome (created, existing, rejected, failed)",
		},
		[]string{"outcome"},
	)

	LowStockSignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "possync_low_stock_signals_total",
			Help: "Low-stock evaluations that changed an alert, by outcome",
		},
		[]string{"outcome"},
	)

	SaleIngestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "possync_sale_ingest_duration_seconds",
			Help:    "Duration of the sale ingestion transaction",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// RegisterMetrics registers the service collectors on reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(SalesIngestedTotal, LowStockSignalsTotal, SaleIngestDuration)
}
