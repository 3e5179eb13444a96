package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcoder_jobs_submitted_total",
		Help: "Transcode jobs accepted by the orchestrator",
	})

	// outcome is one of done, launch_failed, encode_failed, timeout, deadline,
	// interrupted, orphaned
	jobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcoder_jobs_finished_total",
		Help: "Transcode jobs that reached a terminal state",
	}, []string{"outcome"})

	jobsRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transcoder_jobs_running",
		Help: "Encoder processes currently running",
	})

	encodeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "transcoder_encode_duration_seconds",
		Help:    "Wall time of encoder processes",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
	})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transcoder_queue_depth",
		Help: "Dispatched jobs waiting for a free worker",
	})
)
