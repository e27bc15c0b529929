package port

import (
	"testing"
	"time"

	"github.com/jlowry/simple-mem-cache/pkg/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisHandler(t *testing.T) *redisHandler {
	t.Helper()
	handler, err := newRedisHandler(cache.New(time.Minute, cache.NewMetrics()))
	require.NoError(t, err)
	return handler
}

func TestRedisPing(t *testing.T) {
	handler := newTestRedisHandler(t)
	output := handler.handle(redisCommand{command: "PING"})
	assert.Equal(t, "PONG", output.writeString)
}

func TestRedisQuitClosesConnection(t *testing.T) {
	handler := newTestRedisHandler(t)
	output := handler.handle(redisCommand{command: "QUIT"})
	assert.True(t, output.closeConnection)
	assert.Equal(t, "OK", output.writeString)
}

func TestRedisSetGetRoundTrip(t *testing.T) {
	handler := newTestRedisHandler(t)

	output := handler.handle(redisCommand{command: "SET", args: []string{"key", "value"}})
	assert.Equal(t, "OK", output.writeString)

	output = handler.handle(redisCommand{command: "GET", args: []string{"key"}})
	require.NotNil(t, output.writeBulk)
	assert.Equal(t, "value", *output.writeBulk)
}

func TestRedisGetMissingKeyWritesNil(t *testing.T) {
	handler := newTestRedisHandler(t)
	output := handler.handle(redisCommand{command: "GET", args: []string{"absent"}})
	assert.True(t, output.writeNil)
}

func TestRedisCommandsAreCaseInsensitive(t *testing.T) {
	handler := newTestRedisHandler(t)
	handler.handle(redisCommand{command: "set", args: []string{"key", "value"}})
	output := handler.handle(redisCommand{command: "get", args: []string{"key"}})
	require.NotNil(t, output.writeBulk)
	assert.Equal(t, "value", *output.writeBulk)
}

func TestRedisArgumentValidation(t *testing.T) {
	handler := newTestRedisHandler(t)
	for _, cmd := range []redisCommand{
		{command: "SET", args: []string{"only-key"}},
		{command: "GET", args: []string{}},
		{command: "DEL", args: []string{"key"}}, // DEL is unsupported, keys only expire.
		{command: "FLUSHALL"},
	} {
		output := handler.handle(cmd)
		assert.NotNil(t, output.err, "Expected an error output for %q", cmd.command)
	}
}

func TestRedisNilCacheIsRejected(t *testing.T) {
	_, err := newRedisHandler(nil /*simpleCache*/)
	assert.Error(t, err)
}
