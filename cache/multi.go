package cache

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// SetPrimitives stores several scalars in one round trip. Every entry is
// written with the same options; the remote writes share one pipeline.
func (p *Provider) SetPrimitives(ctx context.Context, items map[string]interface{}, opts SetOptions) error {
	if p.disposed.Load() {
		return ErrDisposed
	}
	if len(items) == 0 {
		return nil
	}
	for key, value := range items {
		if key == "" {
			return fmt.Errorf("%w: key must not be empty", ErrInvalidArgument)
		}
		if value == nil {
			return fmt.Errorf("%w: value for %q must not be nil", ErrInvalidArgument, key)
		}
	}

	level := p.effectiveLevel(opts.Level)

	if level.Has(LevelLocal) {
		for key, value := range items {
			p.local.put(p.namer.storageKey(key, opts.Global), value, opts.TTL)
		}
	}

	if level.Has(LevelRemote) && p.remote != nil {
		pipe := p.remote.TxPipeline()
		storageKeys := make([]string, 0, len(items))
		for key, value := range items {
			text, err := encodePrimitive(value)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
			}
			storageKey := p.namer.storageKey(key, opts.Global)
			storageKeys = append(storageKeys, storageKey)
			pipe.Del(ctx, storageKey)
			pipe.Set(ctx, storageKey, text, 0)
			if opts.TTL > 0 {
				pipe.Expire(ctx, storageKey, opts.TTL)
			}
		}
		if _, err := pipe.Exec(ctx); err != nil {
			p.metrics.opError(opLabelSet)
			return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		if level == LevelBoth {
			for _, storageKey := range storageKeys {
				if err := p.bridge.syncOn(ctx, storageKey); err != nil {
					p.metrics.opError(opLabelSync)
					return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
				}
			}
		}
	}
	return nil
}

// GetPrimitives reads several scalars at once. Keys found on neither tier
// are simply missing from the result; the remote reads share one pipeline.
func (p *Provider) GetPrimitives(ctx context.Context, keys []string, opts GetOptions) (map[string]interface{}, error) {
	if p.disposed.Load() {
		return nil, ErrDisposed
	}

	result := make(map[string]interface{}, len(keys))
	var remoteKeys []string

	for _, key := range keys {
		if key == "" {
			return nil, fmt.Errorf("%w: key must not be empty", ErrInvalidArgument)
		}
		storageKey := p.namer.storageKey(key, opts.Global)
		if !opts.ForceRemote || p.remote == nil {
			if v, ok := p.local.get(storageKey); ok {
				p.metrics.hit(tierLabelLocal)
				result[key] = v
				continue
			}
		}
		remoteKeys = append(remoteKeys, key)
	}

	if p.remote == nil || len(remoteKeys) == 0 {
		return result, nil
	}

	pipe := p.remote.Pipeline()
	cmds := make(map[string]*goredis.StringCmd, len(remoteKeys))
	for _, key := range remoteKeys {
		cmds[key] = pipe.Get(ctx, p.namer.storageKey(key, opts.Global))
	}
	// pipeline errors surface per command; a nil reply is just a miss
	_, _ = pipe.Exec(ctx)

	for key, cmd := range cmds {
		text, err := cmd.Result()
		if err == goredis.Nil {
			p.metrics.miss()
			continue
		}
		if err != nil {
			p.metrics.opError(opLabelGet)
			return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		p.metrics.hit(tierLabelRemote)
		result[key] = decodePrimitive(text, !opts.Raw)
	}
	return result, nil
}

// Exists reports whether the key is present on any tier the options reach.
func (p *Provider) Exists(ctx context.Context, key string, opts GetOptions) (bool, error) {
	if err := p.checkUsable(key); err != nil {
		return false, err
	}
	storageKey := p.namer.storageKey(key, opts.Global)

	if !opts.ForceRemote || p.remote == nil {
		if _, ok := p.local.get(storageKey); ok {
			return true, nil
		}
	}
	if p.remote == nil {
		return false, nil
	}

	count, err := p.remote.UniversalClient.Exists(ctx, storageKey).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return count > 0, nil
}

// RemainingTTL returns the time left before the remote copy of the key
// expires. Keys without an expiry report a negative duration, the way the
// backend does.
func (p *Provider) RemainingTTL(ctx context.Context, key string, opts GetOptions) (time.Duration, error) {
	if err := p.checkUsable(key); err != nil {
		return 0, err
	}
	if p.remote == nil {
		return 0, fmt.Errorf("%w: no backend configured", ErrBackendUnavailable)
	}

	ttl, err := p.remote.TTL(ctx, p.namer.storageKey(key, opts.Global)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return ttl, nil
}
