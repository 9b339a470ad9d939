package metrics

import (
	"github.com/Honorable-Knights-of-the-Roundtable/asiomux/pkg/driver"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics of the stream engine.
//
// Per-direction children are resolved up front so that recording from the
// buffer switch callback is a single atomic add. All methods are safe on a
// nil *Metrics, which records nothing.
type Metrics struct {
	BufferSwitches   prometheus.Counter
	InvalidSwitches  prometheus.Counter
	SilencedHalves   prometheus.Counter
	StreamsBuilt     *prometheus.CounterVec
	BuildFailures    *prometheus.CounterVec
	StreamsDestroyed prometheus.Counter
	ActiveStreams    *prometheus.GaugeVec

	dispatched [2]prometheus.Counter
	skipped    [2]prometheus.Counter
}

// NewMetrics creates the engine metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer to expose them on the default handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	dispatched := factory.NewCounterVec(prometheus.CounterOpts{
		Name: "asiomux_stream_callbacks_total",
		Help: "Total number of logical stream callbacks invoked from the buffer switch",
	}, []string{"direction"})
	skipped := factory.NewCounterVec(prometheus.CounterOpts{
		Name: "asiomux_stream_callbacks_skipped_total",
		Help: "Total number of playing logical streams skipped because the engine was not ready",
	}, []string{"direction"})

	m := &Metrics{
		BufferSwitches: factory.NewCounter(prometheus.CounterOpts{
			Name: "asiomux_buffer_switches_total",
			Help: "Total number of half-buffer swaps signalled by the driver",
		}),
		InvalidSwitches: factory.NewCounter(prometheus.CounterOpts{
			Name: "asiomux_invalid_buffer_switches_total",
			Help: "Total number of swaps ignored because of a bad half-buffer index or buffer shape",
		}),
		SilencedHalves: factory.NewCounter(prometheus.CounterOpts{
			Name: "asiomux_silenced_halves_total",
			Help: "Total number of output half-buffers zeroed before mixing",
		}),
		StreamsBuilt: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "asiomux_streams_built_total",
			Help: "Total number of logical streams built",
		}, []string{"direction"}),
		BuildFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "asiomux_stream_build_failures_total",
			Help: "Total number of failed logical stream builds",
		}, []string{"direction", "reason"}),
		StreamsDestroyed: factory.NewCounter(prometheus.CounterOpts{
			Name: "asiomux_streams_destroyed_total",
			Help: "Total number of logical streams destroyed",
		}),
		ActiveStreams: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "asiomux_active_streams",
			Help: "Current number of logical streams",
		}, []string{"direction"}),
	}
	for _, d := range []driver.Direction{driver.Input, driver.Output} {
		m.dispatched[d] = dispatched.WithLabelValues(d.String())
		m.skipped[d] = skipped.WithLabelValues(d.String())
	}
	return m
}

func (m *Metrics) BufferSwitch() {
	if m == nil {
		return
	}
	m.BufferSwitches.Inc()
}

func (m *Metrics) InvalidSwitch() {
	if m == nil {
		return
	}
	m.InvalidSwitches.Inc()
}

func (m *Metrics) Dispatched(direction driver.Direction) {
	if m == nil {
		return
	}
	m.dispatched[direction].Inc()
}

func (m *Metrics) Skipped(direction driver.Direction) {
	if m == nil {
		return
	}
	m.skipped[direction].Inc()
}

func (m *Metrics) Silenced() {
	if m == nil {
		return
	}
	m.SilencedHalves.Inc()
}

func (m *Metrics) StreamBuilt(direction driver.Direction) {
	if m == nil {
		return
	}
	m.StreamsBuilt.WithLabelValues(direction.String()).Inc()
	m.ActiveStreams.WithLabelValues(direction.String()).Inc()
}

func (m *Metrics) BuildFailed(direction driver.Direction, reason string) {
	if m == nil {
		return
	}
	m.BuildFailures.WithLabelValues(direction.String(), reason).Inc()
}

func (m *Metrics) StreamDestroyed(direction driver.Direction) {
	if m == nil {
		return
	}
	m.StreamsDestroyed.Inc()
	m.ActiveStreams.WithLabelValues(direction.String()).Dec()
}

// DispatchedCounter returns the callback counter of a direction, or nil on a
// nil *Metrics.
func (m *Metrics) DispatchedCounter(direction driver.Direction) prometheus.Counter {
	if m == nil {
		return nil
	}
	return m.dispatched[direction]
}

// SkippedCounter returns the skipped callback counter of a direction, or nil
// on a nil *Metrics.
func (m *Metrics) SkippedCounter(direction driver.Direction) prometheus.Counter {
	if m == nil {
		return nil
	}
	return m.skipped[direction]
}
