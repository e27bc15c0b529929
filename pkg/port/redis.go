// An optional Redis-protocol port. It exposes the same string key/value exchange as the
// HTTP port: SET maps to a put and GET to a read. There is no DEL; keys only ever leave
// the cache through the expiry cleaner.

package port

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jlowry/simple-mem-cache/pkg/cache"
	"github.com/tidwall/redcon"
)

var redisAddress = flag.String("redis_address", "",
	"The ip:port to listen on for the Redis protocol. Empty disables the Redis port.")

// redisCommand represents a Redis command with its arguments.
type redisCommand struct {
	command string
	args    []string
}

// redisOutput conforms to a real Redis server output on the supported commands.
type redisOutput struct {
	closeConnection bool    // Closes the connection if true.
	writeNil        bool    // Writes a nil value if true.
	err             *string // Error to return if set.
	writeBulk       *string // Writes a bulk string if set.
	writeString     string  // Writes a simple string otherwise.
}

func closeRedisConnection(msg string) redisOutput {
	return redisOutput{writeString: msg, closeConnection: true}
}

func writeRedisNil() redisOutput {
	return redisOutput{writeNil: true}
}

func writeRedisString(s string) redisOutput {
	return redisOutput{writeString: s}
}

func writeRedisBulk(s string) redisOutput {
	return redisOutput{writeBulk: &s}
}

func writeRedisError(err error) redisOutput {
	msg := "ERR " + err.Error()
	return redisOutput{err: &msg}
}

type redisHandler struct {
	simpleCache *cache.SimpleCache
}

// newRedisHandler creates a new redisHandler.
func newRedisHandler(simpleCache *cache.SimpleCache) (*redisHandler, error) {
	if simpleCache == nil {
		return nil, errors.New("expected a non-nil cache")
	}
	return &redisHandler{simpleCache: simpleCache}, nil
}

func (rh *redisHandler) handle(cmd redisCommand) redisOutput {
	switch strings.ToUpper(cmd.command) {
	case "PING":
		return writeRedisString("PONG")
	case "QUIT":
		return closeRedisConnection("OK")
	case "SET":
		if len(cmd.args) != 2 {
			return writeRedisError(errors.New("wrong number of arguments for 'SET' command"))
		}
		key, value := cmd.args[0], cmd.args[1]
		rh.simpleCache.Put(key, []byte(value))
		return writeRedisString("OK")
	case "GET":
		if len(cmd.args) != 1 {
			return writeRedisError(errors.New("wrong number of arguments for 'GET' command"))
		}
		value, found := rh.simpleCache.GetString(cmd.args[0])
		if !found {
			return writeRedisNil()
		}
		return writeRedisBulk(value)
	default:
		return writeRedisError(fmt.Errorf("unknown command '%s'", cmd.command))
	}
}

// writeOutput writes a redisOutput back onto the connection.
func writeOutput(conn redcon.Conn, output redisOutput) {
	switch {
	case output.err != nil:
		conn.WriteError(*output.err)
	case output.writeNil:
		conn.WriteNull()
	case output.writeBulk != nil:
		conn.WriteBulkString(*output.writeBulk)
	default:
		conn.WriteString(output.writeString)
	}
	if output.closeConnection {
		if err := conn.Close(); err != nil {
			slog.Error("Failed to close Redis connection.", "err", err)
		}
	}
}

// RunRedisServer starts the Redis protocol port on --redis_address, or returns immediately
// when the flag is empty. Runs until ctx is cancelled.
func RunRedisServer(ctx context.Context, simpleCache *cache.SimpleCache) error {
	if *redisAddress == "" {
		slog.Info("Redis port is disabled, --redis_address is empty.")
		return nil
	}

	redisHandler, err := newRedisHandler(simpleCache)
	if err != nil {
		return fmt.Errorf("failed to create a new redis handler: %w", err)
	}

	redisServer := redcon.NewServerNetwork("tcp" /*net*/, *redisAddress,
		/*handler*/ func(conn redcon.Conn, cmd redcon.Command) {
			// Convert redcon.Command to redisCommand.
			command := redisCommand{command: string(cmd.Args[0]), args: make([]string, len(cmd.Args)-1)}
			for i := 1; i < len(cmd.Args); i++ {
				command.args[i-1] = string(cmd.Args[i])
			}
			writeOutput(conn, redisHandler.handle(command))
		},
		/*accept*/ func(conn redcon.Conn) bool {
			return true // Accept all connections.
		},
		/*close*/ func(conn redcon.Conn, err error) {
		})

	serverErrSignal := make(chan error, 1)
	go func() {
		if err := redisServer.ListenAndServe(); err != nil {
			serverErrSignal <- err
		}
		close(serverErrSignal)
	}()

	slog.Info("Starting Redis port.", "address", *redisAddress)
	select {
	case <-ctx.Done():
		if err := redisServer.Close(); err != nil {
			return fmt.Errorf("failed to close the redis port: %w", err)
		}
		slog.Info("Server shut down.", "server", "redis")
	case err := <-serverErrSignal:
		if err != nil {
			return fmt.Errorf("redis server stopped unexpectedly: %w", err)
		}
	}
	return nil
}
