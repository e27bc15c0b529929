package cache

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterExposesAllCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics()
	require.NoError(t, metrics.Register(registry))

	// Touch each collector so it reports at least one metric family.
	metrics.Queries.WithLabelValues("hit").Inc()
	metrics.Items.Set(1)
	metrics.Size.Set(1)
	metrics.DroppedNotices.Inc()

	families, err := registry.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, family := range families {
		names = append(names, family.GetName())
	}
	assert.ElementsMatch(t, []string{
		"cache_query", "cache_items", "cache_size", "cache_expiry_notices_dropped_total",
	}, names)
}

func TestRegisterFailsOnDuplicateRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics()
	require.NoError(t, metrics.Register(registry))
	assert.Error(t, metrics.Register(registry))
}
