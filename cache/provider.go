// Package cache implements a two-tier cache provider: a process-local store
// in front of a Redis backend, kept coherent through keyspace-event
// subscription. Values may live on either tier or on both, selected per
// operation.
package cache

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/vhvplatform/go-cache/logger"
	"github.com/vhvplatform/go-cache/redis"
)

// Provider is a named cache instance. All non-global keys are stored under
// the instance name, so two providers with different names never see each
// other's keys. A Provider is safe for concurrent use until Close.
type Provider struct {
	name    string
	id      string
	namer   keyNamer
	remote  *redis.Client // nil in local-only mode
	local   *localStore
	locks   *keyLockQueue
	bridge  *syncBridge
	metrics *metricSet
	group   singleflight.Group
	log     *logger.Logger

	disposed atomic.Bool
}

// New builds a Provider from the given options. With a Cluster the client
// runs in cluster mode, with Single in single-node mode, with neither the
// provider is local-only and never touches a backend.
func New(opts Options) (*Provider, error) {
	if opts.Name == "" {
		return nil, ErrMissingName
	}

	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	var remote *redis.Client
	if len(opts.Cluster) > 0 || opts.Single != nil {
		var err error
		remote, err = redis.NewClient(redis.Config{
			Single:   opts.Single,
			Cluster:  opts.Cluster,
			Password: opts.Password,
			DB:       opts.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}

	id := uuid.NewString()
	local := newLocalStore()
	locks := newKeyLockQueue()

	p := &Provider{
		name:    opts.Name,
		id:      id,
		namer:   keyNamer{name: opts.Name},
		remote:  remote,
		local:   local,
		locks:   locks,
		metrics: newMetricSet(opts.Name, opts.EnableMetrics, log),
		log:     log,
	}
	if remote != nil {
		p.bridge = newSyncBridge(remote, local, locks, log)
	}

	log.Debug("cache provider created",
		"instance", opts.Name, "id", id, "localOnly", remote == nil)
	return p, nil
}

// Name returns the instance name.
func (p *Provider) Name() string {
	return p.name
}

// effectiveLevel applies the default tier rule: remote when a backend is
// configured, local otherwise.
func (p *Provider) effectiveLevel(l Level) Level {
	if l != 0 {
		return l
	}
	if p.remote != nil {
		return LevelRemote
	}
	return LevelLocal
}

func (p *Provider) checkUsable(key string) error {
	if p.disposed.Load() {
		return ErrDisposed
	}
	if key == "" {
		return fmt.Errorf("%w: key must not be empty", ErrInvalidArgument)
	}
	return nil
}

// SetPrimitive stores a scalar value.
func (p *Provider) SetPrimitive(ctx context.Context, key string, value interface{}, opts SetOptions) error {
	if err := p.checkUsable(key); err != nil {
		return err
	}
	if value == nil {
		return fmt.Errorf("%w: value must not be nil", ErrInvalidArgument)
	}
	return p.setScalar(ctx, key, value, opts)
}

// SetArray stores a sequence. On the wire it is the JSON text of the array,
// stored the same way a primitive is; readers recover the sequence through
// GetArray.
func (p *Provider) SetArray(ctx context.Context, key string, value []interface{}, opts SetOptions) error {
	if err := p.checkUsable(key); err != nil {
		return err
	}
	if value == nil {
		return fmt.Errorf("%w: value must not be nil", ErrInvalidArgument)
	}
	text, err := encodeArray(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return p.setScalar(ctx, key, text, opts)
}

// setScalar carries both primitive and array writes: local first, then the
// remote transaction, then sync registration for BOTH-level writes.
func (p *Provider) setScalar(ctx context.Context, key string, value interface{}, opts SetOptions) error {
	level := p.effectiveLevel(opts.Level)
	storageKey := p.namer.storageKey(key, opts.Global)

	if level.Has(LevelLocal) {
		p.local.put(storageKey, value, opts.TTL)
	}

	if level.Has(LevelRemote) && p.remote != nil {
		text, err := encodePrimitive(value)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		if err := p.remote.SetValue(ctx, storageKey, text, opts.TTL); err != nil {
			p.metrics.opError(opLabelSet)
			return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		if level == LevelBoth {
			if err := p.bridge.syncOn(ctx, storageKey); err != nil {
				p.metrics.opError(opLabelSync)
				return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
			}
		}
	}
	return nil
}

// SetObject stores a flat mapping. On the remote tier it becomes a hash
// whose fields hold the textual form of each top-level value.
func (p *Provider) SetObject(ctx context.Context, key string, value map[string]interface{}, opts SetOptions) error {
	if err := p.checkUsable(key); err != nil {
		return err
	}
	if value == nil {
		return fmt.Errorf("%w: value must not be nil", ErrInvalidArgument)
	}

	level := p.effectiveLevel(opts.Level)
	storageKey := p.namer.storageKey(key, opts.Global)

	if level.Has(LevelLocal) {
		p.local.put(storageKey, value, opts.TTL)
	}

	if level.Has(LevelRemote) && p.remote != nil {
		fields, err := encodeObject(value)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		if err := p.remote.SetHash(ctx, storageKey, fields, opts.TTL); err != nil {
			p.metrics.opError(opLabelSet)
			return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		if level == LevelBoth {
			if err := p.bridge.syncOn(ctx, storageKey); err != nil {
				p.metrics.opError(opLabelSync)
				return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
			}
		}
	}
	return nil
}

// GetPrimitive reads a scalar value. The boolean reports presence; absent
// values carry no error.
func (p *Provider) GetPrimitive(ctx context.Context, key string, opts GetOptions) (interface{}, bool, error) {
	if err := p.checkUsable(key); err != nil {
		return nil, false, err
	}
	storageKey := p.namer.storageKey(key, opts.Global)

	if !opts.ForceRemote || p.remote == nil {
		if v, ok := p.local.get(storageKey); ok {
			p.metrics.hit(tierLabelLocal)
			return v, true, nil
		}
	}

	if p.remote == nil {
		p.metrics.miss()
		return nil, false, nil
	}

	text, found, err := p.remote.GetValue(ctx, storageKey)
	if err != nil {
		p.metrics.opError(opLabelGet)
		return nil, false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if !found {
		p.metrics.miss()
		return nil, false, nil
	}
	p.metrics.hit(tierLabelRemote)
	return decodePrimitive(text, !opts.Raw), true, nil
}

// GetArray reads a sequence. The remote scalar is always fetched raw and
// JSON-parsed here; a local hit may hold either the JSON text or an already
// decoded sequence and is normalized. A value of another shape reads as
// absent.
func (p *Provider) GetArray(ctx context.Context, key string, opts GetOptions) ([]interface{}, bool, error) {
	if err := p.checkUsable(key); err != nil {
		return nil, false, err
	}
	storageKey := p.namer.storageKey(key, opts.Global)

	if !opts.ForceRemote || p.remote == nil {
		if v, ok := p.local.get(storageKey); ok {
			p.metrics.hit(tierLabelLocal)
			return normalizeArray(v)
		}
	}

	if p.remote == nil {
		p.metrics.miss()
		return nil, false, nil
	}

	text, found, err := p.remote.GetValue(ctx, storageKey)
	if err != nil {
		p.metrics.opError(opLabelGet)
		return nil, false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if !found {
		p.metrics.miss()
		return nil, false, nil
	}
	p.metrics.hit(tierLabelRemote)
	a, ok := decodeArray(text)
	return a, ok, nil
}

// GetObject reads a flat mapping. An empty remote hash reads as absent, as
// does a local value of another shape.
func (p *Provider) GetObject(ctx context.Context, key string, opts GetOptions) (map[string]interface{}, bool, error) {
	if err := p.checkUsable(key); err != nil {
		return nil, false, err
	}
	storageKey := p.namer.storageKey(key, opts.Global)

	if !opts.ForceRemote || p.remote == nil {
		if v, ok := p.local.get(storageKey); ok {
			if o, isMap := v.(map[string]interface{}); isMap {
				p.metrics.hit(tierLabelLocal)
				return o, true, nil
			}
			return nil, false, nil
		}
	}

	if p.remote == nil {
		p.metrics.miss()
		return nil, false, nil
	}

	fields, err := p.remote.GetHash(ctx, storageKey)
	if err != nil {
		p.metrics.opError(opLabelGet)
		return nil, false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if len(fields) == 0 {
		p.metrics.miss()
		return nil, false, nil
	}
	p.metrics.hit(tierLabelRemote)
	return decodeObject(fields, !opts.Raw), true, nil
}

// Delete removes a key, or every matching key when Pattern is set, from
// both tiers. Deleting an absent key is not an error.
func (p *Provider) Delete(ctx context.Context, key string, opts DeleteOptions) error {
	if err := p.checkUsable(key); err != nil {
		return err
	}

	if opts.Pattern {
		return p.deleteByPattern(ctx, key)
	}

	storageKey := p.namer.storageKey(key, opts.Global)
	p.local.delete(storageKey)

	if p.remote == nil {
		return nil
	}
	if err := p.bridge.syncOff(ctx, storageKey); err != nil {
		p.log.Warn("failed to unsubscribe key", "key", storageKey, "error", err)
	}
	if err := p.remote.DeleteKeys(ctx, storageKey); err != nil {
		p.metrics.opError(opLabelDelete)
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// deleteByPattern clears matching keys locally, then walks the remote
// keyspace with SCAN. The scan may hand back duplicates, so matches collect
// into a set before the single DEL.
func (p *Provider) deleteByPattern(ctx context.Context, pattern string) error {
	re, err := compilePattern(pattern)
	if err != nil {
		return fmt.Errorf("%w: bad pattern %q: %v", ErrInvalidArgument, pattern, err)
	}
	p.local.deleteByPattern(re)

	if p.remote == nil {
		return nil
	}

	matched := make(map[string]struct{})
	it := redis.NewIterator(p.remote, pattern)
	for it.Next(ctx) {
		matched[it.Key()] = struct{}{}
	}
	if err := it.Err(); err != nil {
		p.metrics.opError(opLabelDelete)
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if len(matched) == 0 {
		return nil
	}

	keys := make([]string, 0, len(matched))
	for k := range matched {
		keys = append(keys, k)
	}
	if err := p.remote.DeleteKeys(ctx, keys...); err != nil {
		p.metrics.opError(opLabelDelete)
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Close disposes the provider: the subscription stream and the client
// connection shut down, every local timer is cancelled, and all state is
// cleared. Further operations fail with ErrDisposed.
func (p *Provider) Close() error {
	if !p.disposed.CompareAndSwap(false, true) {
		return nil
	}

	var firstErr error
	if p.bridge != nil {
		if err := p.bridge.close(); err != nil {
			firstErr = err
		}
	}
	if p.remote != nil {
		if err := p.remote.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.local.clear()
	p.metrics.unregister()

	p.log.Debug("cache provider closed", "instance", p.name, "id", p.id)
	return firstErr
}
