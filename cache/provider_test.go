package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newLocalProvider builds a provider without a backend. Every operation
// restricts to the local tier.
func newLocalProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := New(Options{Name: "svc"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestNewRequiresName(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorIs(t, err, ErrMissingName)
}

func TestLocalOnlyPrimitiveRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := newLocalProvider(t)

	require.NoError(t, p.SetPrimitive(ctx, "K", "hello", SetOptions{}))

	v, ok, err := p.GetPrimitive(ctx, "K", GetOptions{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", v)

	require.NoError(t, p.Delete(ctx, "K", DeleteOptions{}))

	_, ok, err = p.GetPrimitive(ctx, "K", GetOptions{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetRejectsNilValue(t *testing.T) {
	ctx := context.Background()
	p := newLocalProvider(t)

	assert.ErrorIs(t, p.SetPrimitive(ctx, "K", nil, SetOptions{}), ErrInvalidArgument)
	assert.ErrorIs(t, p.SetArray(ctx, "K", nil, SetOptions{}), ErrInvalidArgument)
	assert.ErrorIs(t, p.SetObject(ctx, "K", nil, SetOptions{}), ErrInvalidArgument)

	_, ok, err := p.GetPrimitive(ctx, "K", GetOptions{})
	require.NoError(t, err)
	assert.False(t, ok, "a rejected set must not store anything")
}

func TestSetRejectsEmptyKey(t *testing.T) {
	ctx := context.Background()
	p := newLocalProvider(t)

	assert.ErrorIs(t, p.SetPrimitive(ctx, "", "v", SetOptions{}), ErrInvalidArgument)
	assert.ErrorIs(t, p.Delete(ctx, "", DeleteOptions{}), ErrInvalidArgument)
}

func TestLocalArrayRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := newLocalProvider(t)

	in := []interface{}{"a", float64(1), true}
	require.NoError(t, p.SetArray(ctx, "A", in, SetOptions{}))

	out, ok, err := p.GetArray(ctx, "A", GetOptions{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, in, out)
}

func TestLocalObjectRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := newLocalProvider(t)

	in := map[string]interface{}{"name": "n", "age": 55}
	require.NoError(t, p.SetObject(ctx, "O", in, SetOptions{}))

	out, ok, err := p.GetObject(ctx, "O", GetOptions{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, in, out)
}

func TestShapeMismatchReadsAsAbsent(t *testing.T) {
	ctx := context.Background()
	p := newLocalProvider(t)

	require.NoError(t, p.SetPrimitive(ctx, "K", "scalar", SetOptions{}))

	_, ok, err := p.GetObject(ctx, "K", GetOptions{})
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = p.GetArray(ctx, "K", GetOptions{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCrossShapeOverwriteLastWriterWins(t *testing.T) {
	ctx := context.Background()
	p := newLocalProvider(t)

	require.NoError(t, p.SetPrimitive(ctx, "K", "scalar", SetOptions{}))
	require.NoError(t, p.SetObject(ctx, "K", map[string]interface{}{"a": "b"}, SetOptions{}))

	o, ok, err := p.GetObject(ctx, "K", GetOptions{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", o["a"])
}

func TestLocalTTLExpiry(t *testing.T) {
	ctx := context.Background()
	p := newLocalProvider(t)

	require.NoError(t, p.SetPrimitive(ctx, "K", "v", SetOptions{TTL: 50 * time.Millisecond}))

	assert.Eventually(t, func() bool {
		_, ok, err := p.GetPrimitive(ctx, "K", GetOptions{})
		return err == nil && !ok
	}, time.Second, 10*time.Millisecond)
}

func TestZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	p := newLocalProvider(t)

	require.NoError(t, p.SetPrimitive(ctx, "K", "v", SetOptions{TTL: 0}))
	require.NoError(t, p.SetPrimitive(ctx, "N", "v", SetOptions{TTL: -time.Second}))

	assert.Equal(t, 2, p.local.len())
	assert.Empty(t, p.local.timers)
}

func TestGlobalKeySkipsPrefix(t *testing.T) {
	ctx := context.Background()
	p := newLocalProvider(t)

	require.NoError(t, p.SetPrimitive(ctx, "G", "x", SetOptions{Global: true, Level: LevelLocal}))

	_, ok, err := p.GetPrimitive(ctx, "G", GetOptions{})
	require.NoError(t, err)
	assert.False(t, ok, "a prefixed read must not see the global key")

	v, ok, err := p.GetPrimitive(ctx, "G", GetOptions{Global: true})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "x", v)
}

func TestPatternDelete(t *testing.T) {
	ctx := context.Background()
	p := newLocalProvider(t)

	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("DEL-%d::unittest-ME", i)
		require.NoError(t, p.SetPrimitive(ctx, key, fmt.Sprintf("v%d", i), SetOptions{Level: LevelLocal}))
	}
	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("REMOVE-%d-ME-%d", i, i)
		require.NoError(t, p.SetPrimitive(ctx, key, fmt.Sprintf("v%d", i), SetOptions{Level: LevelLocal}))
	}

	require.NoError(t, p.Delete(ctx, "*::unittest*", DeleteOptions{Pattern: true}))
	assert.Equal(t, 10, p.local.len())

	require.NoError(t, p.Delete(ctx, "*REMOVE-?-ME-?", DeleteOptions{Pattern: true}))
	assert.Equal(t, 0, p.local.len())
}

func TestDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	p := newLocalProvider(t)

	require.NoError(t, p.SetPrimitive(ctx, "K", "v", SetOptions{}))
	require.NoError(t, p.Delete(ctx, "K", DeleteOptions{}))
	require.NoError(t, p.Delete(ctx, "K", DeleteOptions{}))
}

func TestDisposedProviderRejectsOperations(t *testing.T) {
	ctx := context.Background()
	p, err := New(Options{Name: "svc"})
	require.NoError(t, err)

	require.NoError(t, p.SetPrimitive(ctx, "K", "v", SetOptions{}))
	require.NoError(t, p.Close())
	// closing twice is a no-op
	require.NoError(t, p.Close())

	assert.ErrorIs(t, p.SetPrimitive(ctx, "K", "v", SetOptions{}), ErrDisposed)
	_, _, err = p.GetPrimitive(ctx, "K", GetOptions{})
	assert.ErrorIs(t, err, ErrDisposed)
	assert.ErrorIs(t, p.Delete(ctx, "K", DeleteOptions{}), ErrDisposed)
}

func TestRememberCachesLoadedValue(t *testing.T) {
	ctx := context.Background()
	p := newLocalProvider(t)

	calls := 0
	load := func(ctx context.Context) (interface{}, error) {
		calls++
		return "loaded", nil
	}

	v, err := p.Remember(ctx, "R", 0, load)
	require.NoError(t, err)
	assert.Equal(t, "loaded", v)

	v, err = p.Remember(ctx, "R", 0, load)
	require.NoError(t, err)
	assert.Equal(t, "loaded", v)
	assert.Equal(t, 1, calls, "second read must come from the cache")
}

func TestRememberPropagatesLoadError(t *testing.T) {
	ctx := context.Background()
	p := newLocalProvider(t)

	wantErr := errors.New("source down")
	_, err := p.Remember(ctx, "R", 0, func(ctx context.Context) (interface{}, error) {
		return nil, wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	_, ok, err := p.GetPrimitive(ctx, "R", GetOptions{})
	require.NoError(t, err)
	assert.False(t, ok, "a failed load must not be cached")
}

func TestRememberCollapsesConcurrentLoads(t *testing.T) {
	ctx := context.Background()
	p := newLocalProvider(t)

	var mu sync.Mutex
	calls := 0
	gate := make(chan struct{})

	load := func(ctx context.Context) (interface{}, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		<-gate
		return "v", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := p.Remember(ctx, "R", 0, load)
			assert.NoError(t, err)
			assert.Equal(t, "v", v)
		}()
	}

	// let the flights pile up before releasing the loader
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls, "concurrent misses must share one load")
}
