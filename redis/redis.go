// Package redis provides the remote tier client used by the cache provider.
// It wraps a go-redis client in either single-node or cluster mode behind one
// facade so the provider never cares which of the two it talks to.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPort = 6379

// keyspaceEventFlags asks the server to publish keyspace events for every
// command class. The sync bridge depends on the set/hset/del notifications.
const keyspaceEventFlags = "KEA"

// Endpoint identifies one Redis node.
type Endpoint struct {
	Host string
	Port int
}

// Addr returns the host:port form, filling in the default port when unset.
func (e Endpoint) Addr() string {
	port := e.Port
	if port == 0 {
		port = defaultPort
	}
	return fmt.Sprintf("%s:%d", e.Host, port)
}

// Config holds connection settings for the remote tier.
type Config struct {
	Single   *Endpoint  // single-node mode when non-nil
	Cluster  []Endpoint // cluster mode when non-empty; wins over Single
	Password string
	DB       int // ignored in cluster mode
}

// Client wraps the go-redis client used for the remote tier.
type Client struct {
	redis.UniversalClient
	cluster bool
}

// NewClient connects to the configured node or cluster and verifies the
// connection with a ping.
func NewClient(cfg Config) (*Client, error) {
	var c *Client
	switch {
	case len(cfg.Cluster) > 0:
		addrs := make([]string, len(cfg.Cluster))
		for i, e := range cfg.Cluster {
			addrs[i] = e.Addr()
		}
		c = &Client{
			UniversalClient: redis.NewClusterClient(&redis.ClusterOptions{
				Addrs:        addrs,
				Password:     cfg.Password,
				DialTimeout:  5 * time.Second,
				ReadTimeout:  3 * time.Second,
				WriteTimeout: 3 * time.Second,
			}),
			cluster: true,
		}
	case cfg.Single != nil:
		c = &Client{
			UniversalClient: redis.NewClient(&redis.Options{
				Addr:         cfg.Single.Addr(),
				Password:     cfg.Password,
				DB:           cfg.DB,
				DialTimeout:  5 * time.Second,
				ReadTimeout:  3 * time.Second,
				WriteTimeout: 3 * time.Second,
				PoolSize:     20,
				MinIdleConns: 5,
			}),
		}
	default:
		return nil, fmt.Errorf("redis: no endpoint configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.UniversalClient.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return c, nil
}

// IsCluster reports whether the client runs in cluster mode.
func (c *Client) IsCluster() bool {
	return c.cluster
}

// GetValue reads a plain value. The second return is false when the key does
// not exist.
func (c *Client) GetValue(ctx context.Context, key string) (string, bool, error) {
	val, err := c.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

// GetHash reads all fields of a hash. A missing key yields an empty map.
func (c *Client) GetHash(ctx context.Context, key string) (map[string]string, error) {
	fields, err := c.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall %s: %w", key, err)
	}
	return fields, nil
}

// SetValue replaces a key with a plain value inside one transaction:
// DEL, SET, and EXPIRE when ttl is positive.
func (c *Client) SetValue(ctx context.Context, key, value string, ttl time.Duration) error {
	pipe := c.TxPipeline()
	pipe.Del(ctx, key)
	pipe.Set(ctx, key, value, 0)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// SetHash replaces a key with a hash inside one transaction:
// DEL, HSET, and EXPIRE when ttl is positive.
func (c *Client) SetHash(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error {
	pipe := c.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, flatten(fields)...)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis hset %s: %w", key, err)
	}
	return nil
}

// DeleteKeys removes the given keys.
func (c *Client) DeleteKeys(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// EnableKeyspaceEvents asks the server to publish keyspace notifications.
func (c *Client) EnableKeyspaceEvents(ctx context.Context) error {
	if err := c.ConfigSet(ctx, "notify-keyspace-events", keyspaceEventFlags).Err(); err != nil {
		return fmt.Errorf("redis config set notify-keyspace-events: %w", err)
	}
	return nil
}

// Subscriber opens the pub/sub stream used for keyspace notifications.
// go-redis dedicates a connection to the subscription in both modes, so the
// caller never needs to know whether the primary connection is shared.
func (c *Client) Subscriber(ctx context.Context) *Subscriber {
	return newSubscriber(c.UniversalClient.Subscribe(ctx))
}

// Close terminates the connection pool.
func (c *Client) Close() error {
	return c.UniversalClient.Close()
}

// flatten turns a field map into the alternating field/value slice HSET wants.
func flatten(fields map[string]string) []interface{} {
	args := make([]interface{}, 0, len(fields)*2)
	for f, v := range fields {
		args = append(args, f, v)
	}
	return args
}
