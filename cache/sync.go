package cache

import (
	"context"
	"strings"
	"sync"

	"github.com/vhvplatform/go-cache/logger"
	"github.com/vhvplatform/go-cache/redis"
)

// keyspaceChannelPrefix is the channel namespace the server publishes
// keyspace events on for database 0.
const keyspaceChannelPrefix = "__keyspace@0__:"

// Keyspace event actions the bridge reacts to. Everything else is ignored.
const (
	actionSet  = "set"
	actionHSet = "hset"
	actionDel  = "del"
)

// syncBridge keeps the local tier current for registered keys by applying
// remote keyspace events to the local store. A single goroutine applies the
// events in arrival order, each under the key lock for its affected key.
type syncBridge struct {
	remote *redis.Client
	local  *localStore
	locks  *keyLockQueue
	log    *logger.Logger

	mu         sync.Mutex
	sub        *redis.Subscriber
	registered map[string]struct{}
	started    bool

	wg sync.WaitGroup
}

func newSyncBridge(remote *redis.Client, local *localStore, locks *keyLockQueue, log *logger.Logger) *syncBridge {
	return &syncBridge{
		remote:     remote,
		local:      local,
		locks:      locks,
		log:        log,
		registered: make(map[string]struct{}),
	}
}

// start lazily brings up the subscription stream. Called on the first
// BOTH-level operation of the owning provider.
func (b *syncBridge) start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return nil
	}

	if err := b.remote.EnableKeyspaceEvents(ctx); err != nil {
		return err
	}

	b.sub = b.remote.Subscriber(ctx)
	b.started = true

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for msg := range b.sub.Messages() {
			b.dispatch(msg)
		}
	}()
	return nil
}

// syncOn registers a storage key for remote change notifications. At most
// one registration exists per key.
func (b *syncBridge) syncOn(ctx context.Context, key string) error {
	if err := b.start(ctx); err != nil {
		return err
	}

	b.mu.Lock()
	if _, ok := b.registered[key]; ok {
		b.mu.Unlock()
		return nil
	}
	b.registered[key] = struct{}{}
	sub := b.sub
	b.mu.Unlock()

	if err := sub.Listen(ctx, keyspaceChannelPrefix+key); err != nil {
		b.mu.Lock()
		delete(b.registered, key)
		b.mu.Unlock()
		return err
	}
	return nil
}

// syncOff drops the registration for a storage key.
func (b *syncBridge) syncOff(ctx context.Context, key string) error {
	b.mu.Lock()
	if _, ok := b.registered[key]; !ok || !b.started {
		b.mu.Unlock()
		return nil
	}
	delete(b.registered, key)
	sub := b.sub
	b.mu.Unlock()

	return sub.Forget(ctx, keyspaceChannelPrefix+key)
}

// close tears down the subscription stream and waits for the dispatch
// goroutine to drain.
func (b *syncBridge) close() error {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return nil
	}
	sub := b.sub
	b.mu.Unlock()

	err := sub.Close()
	b.wg.Wait()

	b.mu.Lock()
	b.registered = make(map[string]struct{})
	b.started = false
	b.mu.Unlock()
	return err
}

// dispatch applies one keyspace event to the local tier. The lock is taken
// on the affected key so event handling for the same key never interleaves.
func (b *syncBridge) dispatch(msg redis.Message) {
	key := strings.TrimPrefix(msg.Channel, keyspaceChannelPrefix)

	b.locks.acquire(key)
	defer b.locks.release(key)

	ctx := context.Background()
	switch msg.Payload {
	case actionSet:
		val, found, err := b.remote.GetValue(ctx, key)
		if err != nil {
			b.log.Warn("failed to refresh local entry after remote set", "key", key, "error", err)
			return
		}
		if found {
			b.local.put(key, decodePrimitive(val, true), 0)
		}
	case actionHSet:
		fields, err := b.remote.GetHash(ctx, key)
		if err != nil {
			b.log.Warn("failed to refresh local entry after remote hset", "key", key, "error", err)
			return
		}
		if len(fields) > 0 {
			b.local.put(key, decodeObject(fields, true), 0)
		}
	case actionDel:
		b.local.delete(key)
	}
}
