package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FilesParsed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "floodwatch_files_parsed_total",
		Help: "Total number of export files parsed successfully.",
	})

	FilesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "floodwatch_files_skipped_total",
		Help: "Total number of export files skipped, labelled by reason.",
	}, []string{"reason"})

	RowsParsed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "floodwatch_rows_parsed_total",
		Help: "Total number of event rows parsed into events.",
	})

	RowsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "floodwatch_rows_dropped_total",
		Help: "Total number of rows dropped, labelled by reason.",
	}, []string{"reason"})

	FloodWindows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "floodwatch_flood_windows_total",
		Help: "Total number of materialized flood windows, labelled by plant.",
	}, []string{"plant"})

	ArtifactWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "floodwatch_artifact_writes_total",
		Help: "Total number of artifact writes, labelled by plant and operation.",
	}, []string{"plant", "op"})

	WriteConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "floodwatch_write_conflicts_total",
		Help: "Total number of rejected concurrent artifact writes.",
	})

	CompositeScore = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "floodwatch_composite_score",
		Help: "Last computed composite health score per plant (0-100).",
	}, []string{"plant"})

	BuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "floodwatch_build_duration_seconds",
		Help:    "End-to-end artifact build duration per plant.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})
)
