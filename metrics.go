package txgateway

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Transport labels.
const (
	TransportHTTP   = "http"
	TransportStream = "stream"
)

// NewMetrics creates metrics and registers them in the registerer.
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "txgateway",
				Name:      "requests_total",
				Help:      "Total number of processed requests",
			},
			[]string{"transport", "variant", "outcome"},
		),
		DroppedRecords: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "txgateway",
				Name:      "records_dropped_total",
				Help:      "Total number of stream records producing no output",
			},
			[]string{"reason"},
		),
		ResolveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "txgateway",
				Name:      "resolve_duration_seconds",
				Help:      "Duration of resolver dispatch in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"variant"},
		),
	}

	for _, c := range []prometheus.Collector{m.Requests, m.DroppedRecords, m.ResolveDuration} {
		if err := registerer.Register(c); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	return m, nil
}

// Metrics is the observability side channel of the gateway.
type Metrics struct {
	Requests        *prometheus.CounterVec
	DroppedRecords  *prometheus.CounterVec
	ResolveDuration *prometheus.HistogramVec
}

func (m *Metrics) observeRequest(transport string, variant Variant, err error) {
	if m == nil {
		return
	}
	v := string(variant)
	if v == "" {
		v = "unknown"
	}
	outcome := "success"
	if err != nil {
		outcome = ErrorReason(err)
	}
	m.Requests.WithLabelValues(transport, v, outcome).Inc()
}

func (m *Metrics) observeDrop(err error) {
	if m == nil {
		return
	}
	m.DroppedRecords.WithLabelValues(ErrorReason(err)).Inc()
}

func (m *Metrics) observeResolve(variant Variant, seconds float64) {
	if m == nil {
		return
	}
	m.ResolveDuration.WithLabelValues(string(variant)).Observe(seconds)
}
