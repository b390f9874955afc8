package services

import "github.com/prometheus/client_golang/prometheus"

var (
	submissionsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goat_submissions_total",
			Help: "Total number of submissions by result.",
		},
		[]string{"result"},
	)
	curationsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goat_curations_total",
			Help: "Total number of curation requests by result.",
		},
		[]string{"result"},
	)
	locusLookupsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goat_locus_lookups_total",
			Help: "External locus lookups by source and result.",
		},
		[]string{"source", "result"},
	)
	pendingAnnotationsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "goat_pending_annotations",
			Help: "Number of annotations waiting for curation.",
		},
	)
)

func init() {
	prometheus.MustRegister(submissionsCounter, curationsCounter, locusLookupsCounter, pendingAnnotationsGauge)
}

func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	return KindOf(err).String()
}
