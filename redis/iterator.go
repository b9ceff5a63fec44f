package redis

import (
	"context"
	"fmt"
)

// scanCount is the COUNT hint passed to SCAN. Pattern deletes accumulate in
// batches of this size.
const scanCount = 10

// Iterator provides safe iteration over keys matching a pattern using SCAN.
// SCAN may return the same key more than once; callers that need distinct
// keys must deduplicate.
type Iterator struct {
	client  *Client
	pattern string
	cursor  uint64
	keys    []string
	current string
	err     error
	pos     int
	done    bool
}

// NewIterator creates an iterator over keys matching the glob pattern.
func NewIterator(client *Client, pattern string) *Iterator {
	return &Iterator{
		client:  client,
		pattern: pattern,
	}
}

// Next advances to the next key. Returns true if a key is available.
func (it *Iterator) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}

	for {
		if it.pos < len(it.keys) {
			it.current = it.keys[it.pos]
			it.pos++
			return true
		}
		if it.done {
			return false
		}

		keys, cursor, err := it.client.Scan(ctx, it.cursor, it.pattern, scanCount).Result()
		if err != nil {
			it.err = fmt.Errorf("redis scan: %w", err)
			return false
		}

		it.cursor = cursor
		it.keys = keys
		it.pos = 0
		// a cursor of 0 means the scan has wrapped around
		if cursor == 0 {
			it.done = true
		}
	}
}

// Key returns the current key.
func (it *Iterator) Key() string {
	return it.current
}

// Err returns any error that occurred during iteration.
func (it *Iterator) Err() error {
	return it.err
}
