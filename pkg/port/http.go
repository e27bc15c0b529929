// The HTTP port maps the cache onto two routes: GET /{key} returns the stored value or a
// 404 on miss, and POST /{key} stores the request body under the key. The handler is
// wrapped with prometheus request instrumentation.

package port

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/jlowry/simple-mem-cache/pkg/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpAddress      = flag.String("http_address", ":8080", "The ip:port the cache HTTP server listens on.")
	httpReadTimeout  = flag.Duration("http_read_timeout", 5*time.Second, "Read timeout of the HTTP servers.")
	httpWriteTimeout = flag.Duration("http_write_timeout", 5*time.Second, "Write timeout of the HTTP servers.")
	httpIdleTimeout  = flag.Duration("http_idle_timeout", time.Minute, "Idle timeout of the HTTP servers.")
	shutdownTimeout  = flag.Duration("http_shutdown_timeout", 10*time.Second,
		"How long a stopping HTTP server waits for in-flight requests before giving up.")
)

// newCacheMux builds the cache route handler. The returned handler counts requests and
// observes their duration through the given registerer; a nil registerer skips the
// instrumentation, which tests use to avoid duplicate collector registration.
func newCacheMux(simpleCache *cache.SimpleCache, registerer prometheus.Registerer) (http.Handler, error) {
	if simpleCache == nil {
		return nil, errors.New("expected a non-nil cache")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{key}", func(w http.ResponseWriter, r *http.Request) {
		key := r.PathValue("key")
		// Clone under the read lock so the response body cannot observe a concurrent put.
		value, found := cache.Get(simpleCache, key, func(value []byte) []byte { return slices.Clone(value) })
		if !found {
			http.Error(w, "key not found", http.StatusNotFound)
			return
		}
		if _, err := w.Write(value); err != nil {
			slog.Error("Failed to write cache value to response.", "key", key, "err", err)
		}
	})
	mux.HandleFunc("POST /{key}", func(w http.ResponseWriter, r *http.Request) {
		key := r.PathValue("key")
		value, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}
		simpleCache.Put(key, value)
		w.WriteHeader(http.StatusOK)
	})

	if registerer == nil {
		return mux, nil
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "A count of HTTP requests served by the cache server",
	}, []string{"code", "method"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Latency of HTTP requests served by the cache server",
		Buckets: prometheus.DefBuckets,
	}, []string{"code", "method"})
	for _, collector := range []prometheus.Collector{requests, duration} {
		if err := registerer.Register(collector); err != nil {
			return nil, fmt.Errorf("failed to register http collector: %w", err)
		}
	}
	return promhttp.InstrumentHandlerDuration(duration, promhttp.InstrumentHandlerCounter(requests, mux)), nil
}

// serveUntilCancelled runs server until it fails or ctx is cancelled, in which case the
// server is shut down gracefully within --http_shutdown_timeout.
func serveUntilCancelled(ctx context.Context, server *http.Server, name string) error {
	serverErrSignal := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrSignal <- err
		}
		close(serverErrSignal)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), *shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down %s server: %w", name, err)
		}
		slog.Info("Server shut down.", "server", name)
	case err := <-serverErrSignal:
		if err != nil {
			return fmt.Errorf("%s server stopped unexpectedly: %w", name, err)
		}
	}
	return nil
}

// RunCacheServer serves the cache over HTTP on --http_address until ctx is cancelled.
func RunCacheServer(ctx context.Context, simpleCache *cache.SimpleCache, registerer prometheus.Registerer) error {
	if *httpAddress == "" {
		return errors.New("expected a non-empty --http_address flag")
	}
	handler, err := newCacheMux(simpleCache, registerer)
	if err != nil {
		return fmt.Errorf("failed to create the cache handler: %w", err)
	}
	server := &http.Server{
		Addr:         *httpAddress,
		Handler:      handler,
		ReadTimeout:  *httpReadTimeout,
		WriteTimeout: *httpWriteTimeout,
		IdleTimeout:  *httpIdleTimeout,
	}
	slog.Info("Starting cache server.", "address", *httpAddress)
	return serveUntilCancelled(ctx, server, "cache")
}
