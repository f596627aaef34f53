package telemetry

import (
	"fmt"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"time"
)

const namespace = "scanclient"

var (
	eventCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "event_counter",
		Help:      "client events by name, tag and whether they failed",
	}, []string{"name", "tag", "isError"})

	eventGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "event_gauge",
		Help:      "last observed value per client event",
	}, []string{"name", "tag"})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "request_duration_seconds",
		Help:      "duration of scanning service api calls",
		Buckets:   prometheus.DefBuckets,
	}, []string{"verb", "path"})
)

func RecordEvent(name string, tag string, err error) {
	eventCounter.With(prometheus.Labels{
		"name":    name,
		"tag":     tag,
		"isError": fmt.Sprintf("%t", err != nil),
	}).Inc()
}

func RecordEventValue(name string, tag string, value float64) {
	eventGauge.With(prometheus.Labels{
		"name": name,
		"tag":  tag,
	}).Set(value)
}

func RecordRequestDuration(verb string, path string, duration time.Duration) {
	requestDuration.With(prometheus.Labels{
		"verb": verb,
		"path": path,
	}).Observe(duration.Seconds())
}

// InitializeMetrics registers the client collectors.  Recording works without
// registration; registering only makes the values visible to a gatherer.
func InitializeMetrics(registerer prometheus.Registerer) error {
	for _, collector := range []prometheus.Collector{eventCounter, eventGauge, requestDuration} {
		if err := registerer.Register(collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return errors.Wrapf(err, "unable to register collector")
		}
	}
	return nil
}
