// Package metrics holds the process's prometheus collectors. They are
// served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Render kinds.
const (
	RenderFull        = "full"
	RenderIncremental = "incremental"
	RenderFade        = "fade"
)

var (
	// SnapshotsReceived counts raw snapshots accepted from any source.
	SnapshotsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "padview",
		Name:      "snapshots_received_total",
		Help:      "Raw gamepad snapshots received, by source.",
	}, []string{"source"})

	// SnapshotsDropped counts snapshots replaced before the frame loop took
	// them.
	SnapshotsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "padview",
		Name:      "snapshots_dropped_total",
		Help:      "Snapshots overwritten by a newer one before processing.",
	})

	// BatchesPublished counts change batches handed to the renderer.
	BatchesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "padview",
		Name:      "batches_published_total",
		Help:      "Change batches published by the mapping engine.",
	})

	// BatchesDropped counts batches replaced while a render was pending.
	BatchesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "padview",
		Name:      "batches_dropped_total",
		Help:      "Change batches dropped because the renderer was busy.",
	})

	// SlotRenders counts slot renders by kind.
	SlotRenders = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "padview",
		Name:      "slot_renders_total",
		Help:      "Slot renders, by kind.",
	}, []string{"kind"})

	// RenderErrors counts slot renders that failed.
	RenderErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "padview",
		Name:      "render_errors_total",
		Help:      "Slot renders aborted by an error.",
	})

	// FramesPushed counts PNG frames written to viewers.
	FramesPushed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "padview",
		Name:      "frames_pushed_total",
		Help:      "Encoded frames sent to websocket viewers.",
	})

	// Viewers is the number of connected websocket clients.
	Viewers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "padview",
		Name:      "viewers",
		Help:      "Connected websocket clients.",
	})

	// TickDuration observes how long one frame loop tick takes.
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "padview",
		Name:      "tick_duration_seconds",
		Help:      "Duration of one frame loop tick.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
	})
)
