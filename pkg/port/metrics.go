package port

import (
	"context"
	"flag"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var metricsAddress = flag.String("metrics_address", ":9090",
	"The ip:port the metrics server listens on. Empty disables the metrics server.")

// RunMetricsServer serves the prometheus scrape endpoint on its own listener, so metrics
// are not reachable through the public cache port. Runs until ctx is cancelled.
func RunMetricsServer(ctx context.Context, gatherer prometheus.Gatherer) error {
	if *metricsAddress == "" {
		slog.Info("Metrics server is disabled, --metrics_address is empty.")
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:         *metricsAddress,
		Handler:      mux,
		ReadTimeout:  *httpReadTimeout,
		WriteTimeout: *httpWriteTimeout,
		IdleTimeout:  *httpIdleTimeout,
	}
	slog.Info("Starting metrics server.", "address", *metricsAddress)
	return serveUntilCancelled(ctx, server, "metrics")
}
