// Package shard computes the deterministic key-to-shard and
// shard-to-worker mappings the rest of the server routes commands by.
package shard

import "github.com/cespare/xxhash/v2"

// Any is the sentinel shard value meaning "run on whichever worker
// received the connection" — used by commands with no single owning key
// (PING, ECHO, QUIT, KEYS). It is the widest uint64 value so it can never
// collide with a real worker-modulus result.
const Any uint64 = ^uint64(0)

// Of hashes key to its shard number. The mapping is a pure function of
// the key bytes: the same key always hashes to the same shard for the
// lifetime of the process, independent of worker count.
func Of(key []byte) uint64 {
	return xxhash.Sum64(key)
}

// WorkerOf maps a shard number to the worker that owns it. workerCount
// must be the fixed worker count chosen at process start; the mapping is
// a simple modulus, stable for as long as workerCount doesn't change.
func WorkerOf(shard uint64, workerCount int) int {
	return int(shard % uint64(workerCount))
}
