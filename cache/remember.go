package cache

import (
	"context"
	"time"
)

// LoadFunc produces the value for a key on a cache miss.
type LoadFunc func(ctx context.Context) (interface{}, error)

// Remember reads a primitive through the cache: on a hit the cached value
// comes back, on a miss the loader runs and its result is stored with the
// given TTL before being returned. Concurrent misses for the same key are
// collapsed into a single loader call per provider.
//
// A failure to store the loaded value is logged but not returned; the value
// was produced successfully and belongs to the caller.
func (p *Provider) Remember(ctx context.Context, key string, ttl time.Duration, load LoadFunc) (interface{}, error) {
	if err := p.checkUsable(key); err != nil {
		return nil, err
	}

	if v, ok, err := p.GetPrimitive(ctx, key, GetOptions{}); err != nil {
		return nil, err
	} else if ok {
		return v, nil
	}

	v, err, _ := p.group.Do(key, func() (interface{}, error) {
		return load(ctx)
	})
	if err != nil {
		return nil, err
	}

	if err := p.SetPrimitive(ctx, key, v, SetOptions{TTL: ttl}); err != nil {
		p.log.Warn("failed to store remembered value", "key", key, "error", err)
	}
	return v, nil
}
