package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves the collector's registry in the Prometheus exposition
// format. The server mounts it at telemetry.metrics.path.
func (c *Collector) Handler() http.Handler {
	// Scrapes beyond four in flight get a 503.
	opts := promhttp.HandlerOpts{
		EnableOpenMetrics:   true,
		ErrorHandling:       promhttp.ContinueOnError,
		MaxRequestsInFlight: 4,
	}
	return promhttp.HandlerFor(c.registry, opts)
}
