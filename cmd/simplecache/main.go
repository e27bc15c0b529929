// Spins up the cache server: a fixed-TTL key/value cache behind an HTTP port, with an
// optional Redis-protocol port and a dedicated metrics listener. One SimpleCache instance
// is constructed here and shared by the ports and the expiry cleaner.

package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/jlowry/simple-mem-cache/pkg/cache"
	"github.com/jlowry/simple-mem-cache/pkg/port"
	"github.com/jlowry/simple-mem-cache/pkg/utils"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

var (
	printVersion    = flag.Bool("print_version", false, "Print the version and exit.")
	keyLiveDuration = flag.Duration("key_live_duration", time.Minute,
		"How long a key stays cached after its most recent write.")
)

func main() {
	flag.Parse()
	utils.InitLogging()

	if *printVersion {
		slog.Info("Build info.", "version", utils.Version, "commit", utils.Commit, "build", utils.BuildTime)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, os.Kill)

	go func() { // Listen for OS interrupts in the background.
		sig := <-signals
		slog.Info("Received termination signal, cancelling server context.", "signal", sig)
		cancel()
	}()

	registry := prometheus.NewRegistry()
	metrics := cache.NewMetrics()
	if err := metrics.Register(registry); err != nil {
		slog.Error("Failed to register cache metrics.", "err", err)
		os.Exit(1)
	}
	simpleCache := cache.New(*keyLiveDuration, metrics)

	// The invariants counter lives on the default registry; expose both on /metrics.
	gatherers := prometheus.Gatherers{registry, prometheus.DefaultGatherer}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return simpleCache.Cleaner(groupCtx) })
	group.Go(func() error { return port.RunCacheServer(groupCtx, simpleCache, registry) })
	group.Go(func() error { return port.RunMetricsServer(groupCtx, gatherers) })
	group.Go(func() error { return port.RunRedisServer(groupCtx, simpleCache) })

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Cache server stopped.", "err", err)
		os.Exit(1)
	}
}
