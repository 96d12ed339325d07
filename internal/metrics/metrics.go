package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	renderPasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledring",
		Subsystem: "bcm",
		Name:      "render_passes_total",
		Help:      "Shift register frames rendered, by bit-plane",
	}, []string{"plane"})

	renderErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ledring",
		Subsystem: "bcm",
		Name:      "render_errors_total",
		Help:      "Render passes that failed to reach the output chain",
	})

	tickOverruns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ledring",
		Subsystem: "bcm",
		Name:      "tick_overruns_total",
		Help:      "Ticks whose work took longer than the tick period",
	})

	renderSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ledring",
		Subsystem: "bcm",
		Name:      "last_render_seconds",
		Help:      "Duration of the most recent render pass",
	})

	protocolFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledring",
		Subsystem: "protocol",
		Name:      "frames_total",
		Help:      "Command frames answered, by status",
	}, []string{"status"})

	protocolDrained = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ledring",
		Subsystem: "protocol",
		Name:      "drained_bytes_total",
		Help:      "Trailing input bytes discarded after a frame",
	})

	protocolResync = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ledring",
		Subsystem: "protocol",
		Name:      "resync_bytes_total",
		Help:      "Bytes skipped while looking for a start byte",
	})

	storeCommits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ledring",
		Subsystem: "store",
		Name:      "commits_total",
		Help:      "Sector frames published to the renderer",
	})

	previewFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledring",
		Subsystem: "preview",
		Name:      "frames_total",
		Help:      "Frames mirrored to the preview display",
	}, []string{"driver"})
)

// IncRenderPass records one render pass for a bit-plane label.
func IncRenderPass(plane string) {
	renderPasses.WithLabelValues(plane).Inc()
}

// IncRenderError records a failed render pass.
func IncRenderError() {
	renderErrors.Inc()
}

// IncTickOverrun records a tick that outlasted its period.
func IncTickOverrun() {
	tickOverruns.Inc()
}

// SetLastRender sets the duration of the last render pass in seconds.
func SetLastRender(seconds float64) {
	renderSeconds.Set(seconds)
}

// IncProtocolFrame records one answered frame.
func IncProtocolFrame(status string) {
	protocolFrames.WithLabelValues(status).Inc()
}

// AddDrained records bytes discarded by the post-frame drain.
func AddDrained(n int) {
	protocolDrained.Add(float64(n))
}

// IncResync records a byte that was not a start byte.
func IncResync() {
	protocolResync.Inc()
}

// IncStoreCommit records a published sector frame.
func IncStoreCommit() {
	storeCommits.Inc()
}

// IncPreviewFrame records a mirrored preview frame.
func IncPreviewFrame(driver string) {
	previewFrames.WithLabelValues(driver).Inc()
}
