// Package cache stores rendered audio so repeated text is not synthesized
// or downloaded twice. A byte-bounded memory LRU sits in front of a
// zstd-compressed disk store with TTL expiry.
package cache
