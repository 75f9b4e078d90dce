// Package cassandra provides the Cassandra session and a lightweight-transaction
// backed node id sequencer for deployments that share ids across database shards.
package cassandra

import (
	"fmt"
	"sync"
	"time"

	log "log/slog"

	"github.com/gocql/gocql"

	"github.com/SharedCode/treestore"
)

// Config contains configuration for connecting to a Cassandra cluster and keyspace.
type Config struct {
	// ClusterHosts lists contact points for the Cassandra cluster.
	ClusterHosts []string
	// Keyspace holds the sequence table.
	Keyspace string
	// Consistency is the default consistency level for queries.
	Consistency gocql.Consistency
	// ConnectionTimeout is the session connection timeout.
	ConnectionTimeout time.Duration
	// Authenticator is used when the cluster requires authentication.
	Authenticator gocql.Authenticator
	// ReplicationClause defines the keyspace replication (e.g., SimpleStrategy).
	ReplicationClause string
}

// ConfigFromOptions converts the engine configuration section.
func ConfigFromOptions(o treestore.CassandraConfig) Config {
	c := Config{
		ClusterHosts:      o.ClusterHosts,
		Keyspace:          o.Keyspace,
		ConnectionTimeout: o.ConnectionTimeout,
	}
	if o.Username != "" {
		c.Authenticator = gocql.PasswordAuthenticator{Username: o.Username, Password: o.Password}
	}
	return c
}

// Connection wraps a Cassandra session and its configuration.
type Connection struct {
	Session *gocql.Session
	Config
}

var session *gocql.Session
var config Config
var refCount int
var mux sync.Mutex

// OpenConnection returns the existing global Connection or opens a new one using the provided config.
func OpenConnection(cfg Config) (*Connection, error) {
	mux.Lock()
	defer mux.Unlock()

	if session == nil {
		if cfg.Keyspace == "" {
			cfg.Keyspace = "treestore"
		}
		if cfg.Consistency == gocql.Any {
			// Compare-and-set needs a quorum to be linearizable.
			cfg.Consistency = gocql.LocalQuorum
		}
		if cfg.ReplicationClause == "" {
			cfg.ReplicationClause = "{'class':'SimpleStrategy', 'replication_factor':1}"
		}
		log.Info("Opening Cassandra connection", "hosts", cfg.ClusterHosts, "keyspace", cfg.Keyspace)
		cluster := gocql.NewCluster(cfg.ClusterHosts...)
		cluster.Consistency = cfg.Consistency
		cluster.SerialConsistency = gocql.LocalSerial
		if cfg.ConnectionTimeout > 0 {
			cluster.ConnectTimeout = cfg.ConnectionTimeout
		}
		if cfg.Authenticator != nil {
			cluster.Authenticator = cfg.Authenticator
			cfg.Authenticator = nil
		}
		s, err := cluster.CreateSession()
		if err != nil {
			return nil, fmt.Errorf("failed to create cassandra session: %w", err)
		}
		if err := initKeyspace(s, cfg); err != nil {
			s.Close()
			return nil, err
		}
		session = s
		config = cfg
	}

	refCount++
	return &Connection{
		Session: session,
		Config:  config,
	}, nil
}

func initKeyspace(s *gocql.Session, config Config) error {
	if err := s.Query(fmt.Sprintf("CREATE KEYSPACE IF NOT EXISTS %s WITH REPLICATION = %s;", config.Keyspace, config.ReplicationClause)).Exec(); err != nil {
		return fmt.Errorf("failed to create keyspace %s: %w", config.Keyspace, err)
	}
	if err := s.Query(fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.sequence (name text PRIMARY KEY, id bigint);", config.Keyspace)).Exec(); err != nil {
		return fmt.Errorf("failed to create sequence table: %w", err)
	}
	return nil
}

// Close releases the connection; the shared session closes with its last user.
func (c *Connection) Close() {
	mux.Lock()
	defer mux.Unlock()
	refCount--
	if refCount <= 0 && session != nil {
		log.Info("Closing Cassandra connection")
		session.Close()
		session = nil
		refCount = 0
	}
}
