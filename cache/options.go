package cache

import (
	"time"

	"github.com/vhvplatform/go-cache/logger"
	"github.com/vhvplatform/go-cache/redis"
)

// Level selects which tier(s) an operation targets. It is a bitset: an
// operation applies to a tier when the tier's bit is set.
type Level uint8

const (
	// LevelLocal targets only the in-process store.
	LevelLocal Level = 1 << iota
	// LevelRemote targets only the remote backend.
	LevelRemote
	// LevelBoth targets both tiers and keeps the local copy synchronized
	// with remote changes.
	LevelBoth = LevelLocal | LevelRemote
)

// Has reports whether the level includes the given tier.
func (l Level) Has(tier Level) bool {
	return l&tier == tier
}

// Options configures a Provider. Name is required and becomes the key
// prefix for all non-global keys. When neither Single nor Cluster is set the
// provider runs in local-only mode and every operation restricts to the
// local tier.
type Options struct {
	Name     string
	Single   *redis.Endpoint
	Cluster  []redis.Endpoint
	Password string
	DB       int

	// Logger defaults to a no-op logger.
	Logger *logger.Logger

	// EnableMetrics registers hit/miss/error counters with the default
	// Prometheus registry. They are unregistered on Close.
	EnableMetrics bool
}

// SetOptions controls a single set operation.
type SetOptions struct {
	// TTL expires the entry on both tiers. Zero or negative means no expiry.
	TTL time.Duration
	// Level defaults to LevelRemote when a remote client exists, otherwise
	// LevelLocal.
	Level Level
	// Global skips the instance prefix so the key is shared across
	// instances on the same backend.
	Global bool
}

// GetOptions controls a single get operation.
type GetOptions struct {
	// ForceRemote skips the local tier even when it holds the key.
	ForceRemote bool
	// Raw disables best-effort type parsing of remotely fetched values;
	// scalars come back as strings. Only meaningful for remote fetches.
	Raw bool
	// Global skips the instance prefix.
	Global bool
}

// DeleteOptions controls a delete operation.
type DeleteOptions struct {
	// Pattern treats the key as a glob pattern (* and ? only) and removes
	// every matching key on both tiers. Global is ignored in pattern mode;
	// the caller owns prefix handling.
	Pattern bool
	// Global skips the instance prefix.
	Global bool
}
