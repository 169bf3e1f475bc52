package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

var (
	// ErrItemTooLarge is returned when an item exceeds the cache capacity
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrCacheClosed is returned by writes after Close
	ErrCacheClosed = errors.New("cache is closed")
)

// Level identifies a cache tier.
type Level int

const (
	// LevelMemory is the in-process LRU
	LevelMemory Level = iota

	// LevelDisk is the persistent, compressed store
	LevelDisk
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelMemory:
		return "memory"
	case LevelDisk:
		return "disk"
	default:
		return "unknown"
	}
}

// Stats holds counters for a single cache tier.
type Stats struct {
	Capacity int64 // bytes
	Size     int64 // bytes
	Items    int

	Hits      int64
	Misses    int64
	Evictions int64
	Expired   int64

	LastEvict time.Time
}

// HitRate returns hits / (hits + misses), or zero before any lookup.
func (s Stats) HitRate() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Hits+s.Misses)
}

// String formats the stats for humans.
func (s Stats) String() string {
	return fmt.Sprintf("%d items, %s of %s, %.0f%% hits, %d evicted",
		s.Items,
		humanize.IBytes(uint64(max(s.Size, 0))),
		humanize.IBytes(uint64(max(s.Capacity, 0))),
		s.HitRate()*100,
		s.Evictions)
}

// Config holds configuration for a Manager.
type Config struct {
	MemoryCapacity int64 // bytes
	DiskCapacity   int64 // bytes; zero disables the disk tier
	Dir            string

	// CompressionLevel is the zstd level (1-22); zero stores raw bytes
	CompressionLevel int

	// TTL expires entries older than this; zero keeps them forever
	TTL time.Duration

	// CleanupInterval is how often expired entries are swept; zero disables
	CleanupInterval time.Duration
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		MemoryCapacity:   32 * 1024 * 1024,
		DiskCapacity:     100 * 1024 * 1024,
		CompressionLevel: 3,
		TTL:              7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// GenerateCacheKey derives a stable key from the parts that determine the
// cached audio (engine, voice, rate, text and so on).
func GenerateCacheKey(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(hash[:])
}
