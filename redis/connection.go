// Package redis provides the Redis connection and a Redis backed node id sequencer.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"

	log "log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/SharedCode/treestore"
)

// Options holds configuration for connecting to a Redis server.
type Options struct {
	// Address is the host:port of the Redis server.
	Address string
	// Password is the password used to authenticate.
	Password string
	// DB is the database index to select.
	DB int
	// TLSConfig contains TLS configuration for secure connections.
	TLSConfig *tls.Config
}

// Connection wraps a redis.Client and the Options used to create it.
type Connection struct {
	Client  *redis.Client
	Options Options
}

// DefaultOptions returns an Options with localhost defaults (no password, DB 0).
func DefaultOptions() Options {
	return Options{
		Address: "localhost:6379",
	}
}

// OptionsFromConfig converts the engine configuration section.
func OptionsFromConfig(cfg treestore.RedisConfig) Options {
	return Options{
		Address:  cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

var connection *Connection
var mux sync.Mutex

// OpenConnection initializes and returns the package-level singleton connection.
// Subsequent calls return the same connection.
func OpenConnection(options Options) (*Connection, error) {
	mux.Lock()
	defer mux.Unlock()
	if connection != nil {
		return connection, nil
	}
	log.Info("Opening Redis connection", "address", options.Address, "db", options.DB)
	connection = &Connection{
		Client: redis.NewClient(&redis.Options{
			TLSConfig: options.TLSConfig,
			Addr:      options.Address,
			Password:  options.Password,
			DB:        options.DB,
		}),
		Options: options,
	}
	return connection, nil
}

// OpenConnectionWithURL initializes the singleton connection from a Redis URI.
func OpenConnectionWithURL(url string) (*Connection, error) {
	mux.Lock()
	defer mux.Unlock()
	if connection != nil {
		return connection, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	log.Info("Opening Redis connection with URL", "address", opts.Addr)
	connection = &Connection{
		Client: redis.NewClient(opts),
		Options: Options{
			Address:   opts.Addr,
			Password:  opts.Password,
			DB:        opts.DB,
			TLSConfig: opts.TLSConfig,
		},
	}
	return connection, nil
}

// Ping verifies the server is reachable.
func (c *Connection) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

// CloseConnection closes the package-level singleton connection, if present.
func CloseConnection() error {
	mux.Lock()
	defer mux.Unlock()
	if connection == nil {
		return nil
	}
	log.Info("Closing Redis connection")
	err := connection.Client.Close()
	connection = nil
	return err
}
