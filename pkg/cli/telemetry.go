package cli

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/scanserver/scanner-client/pkg/telemetry"
	"github.com/sirupsen/logrus"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"net/http"
)

func setupPrometheus(addr string) error {
	logrus.Infof("setting up prometheus on %s", addr)
	if err := telemetry.InitializeMetrics(prometheus.DefaultRegisterer); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		prometheus.DefaultGatherer,
		promhttp.HandlerOpts{
			// Opt into OpenMetrics to support exemplars.
			EnableOpenMetrics: true,
		},
	))
	go func() {
		logrus.Fatal(http.ListenAndServe(addr, mux))
	}()
	return nil
}

func setupTracing(service string, jaegerURL string) (*tracesdk.TracerProvider, error) {
	logrus.Infof("sending traces to %s", jaegerURL)
	return telemetry.NewJaegerTracerProvider(service, jaegerURL)
}
