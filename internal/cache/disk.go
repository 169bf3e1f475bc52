package cache

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const indexFile = "cache.index"

// DiskCache persists entries across runs, optionally zstd compressed.
// An index of metadata is kept in memory and written on Close.
type DiskCache struct {
	dir      string
	capacity int64
	size     int64
	ttl      time.Duration

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	index map[string]*diskEntry
	dirty bool

	mu    sync.Mutex
	stats Stats

	now func() time.Time
}

// diskEntry is gob encoded into the index file.
type diskEntry struct {
	Key        string
	File       string // relative to dir
	Size       int64  // on disk
	RawSize    int64
	Stored     time.Time
	LastAccess time.Time
	Compressed bool
}

// NewDiskCache opens or creates a disk cache in dir. A compression level of
// zero stores values uncompressed.
func NewDiskCache(dir string, capacity int64, compressionLevel int, ttl time.Duration) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dc := &DiskCache{
		dir:      dir,
		capacity: capacity,
		ttl:      ttl,
		index:    make(map[string]*diskEntry),
		now:      time.Now,
	}

	// a decoder is always needed to read entries written with compression on
	var err error
	dc.decoder, err = zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	if compressionLevel > 0 {
		dc.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
		if err != nil {
			dc.decoder.Close()
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
	}

	if err := dc.loadIndex(); err != nil {
		// unreadable index: start over, orphaned files are overwritten by key
		dc.index = make(map[string]*diskEntry)
	}
	for _, e := range dc.index {
		dc.size += e.Size
	}

	return dc, nil
}

// Get reads the value for key from disk.
func (dc *DiskCache) Get(key string) ([]byte, bool) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	entry, ok := dc.index[key]
	if !ok {
		dc.stats.Misses++
		return nil, false
	}

	now := dc.now()
	if dc.expired(entry, now) {
		dc.removeLocked(entry)
		dc.stats.Expired++
		dc.stats.Misses++
		return nil, false
	}

	data, err := os.ReadFile(filepath.Join(dc.dir, entry.File))
	if err == nil && entry.Compressed {
		data, err = dc.decoder.DecodeAll(data, nil)
	}
	if err != nil {
		// missing or corrupted
		dc.removeLocked(entry)
		dc.stats.Misses++
		return nil, false
	}

	entry.LastAccess = now
	dc.dirty = true
	dc.stats.Hits++
	return data, true
}

// Put writes value to disk under key, evicting least recently used
// entries to stay within capacity.
func (dc *DiskCache) Put(key string, value []byte) error {
	data, compressed := value, false
	if dc.encoder != nil && len(value) > 1024 {
		if c := dc.encoder.EncodeAll(value, nil); len(c) < len(value) {
			data, compressed = c, true
		}
	}

	size := int64(len(data))
	if size > dc.capacity {
		return ErrItemTooLarge
	}

	dc.mu.Lock()
	defer dc.mu.Unlock()

	if dc.index == nil {
		return ErrCacheClosed
	}

	if existing, ok := dc.index[key]; ok {
		dc.removeLocked(existing)
	}
	for dc.size+size > dc.capacity && len(dc.index) > 0 {
		dc.evictOldest()
	}

	name := GenerateCacheKey(key)[:32] + ".bin"
	if compressed {
		name = GenerateCacheKey(key)[:32] + ".zst"
	}
	if err := writeFileAtomic(filepath.Join(dc.dir, name), data); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	now := dc.now()
	dc.index[key] = &diskEntry{
		Key:        key,
		File:       name,
		Size:       size,
		RawSize:    int64(len(value)),
		Stored:     now,
		LastAccess: now,
		Compressed: compressed,
	}
	dc.size += size
	dc.dirty = true
	return nil
}

// Delete removes key.
func (dc *DiskCache) Delete(key string) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if entry, ok := dc.index[key]; ok {
		dc.removeLocked(entry)
	}
}

// Clear removes every entry and its file.
func (dc *DiskCache) Clear() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if dc.index == nil {
		return ErrCacheClosed
	}
	for _, entry := range dc.index {
		_ = os.Remove(filepath.Join(dc.dir, entry.File))
	}
	dc.index = make(map[string]*diskEntry)
	dc.size = 0
	return dc.saveIndex()
}

// Prune removes expired entries and returns how many were dropped.
func (dc *DiskCache) Prune() int {
	if dc.ttl <= 0 {
		return 0
	}

	dc.mu.Lock()
	defer dc.mu.Unlock()

	now := dc.now()
	pruned := 0
	for _, entry := range dc.index {
		if dc.expired(entry, now) {
			dc.removeLocked(entry)
			pruned++
		}
	}
	dc.stats.Expired += int64(pruned)
	return pruned
}

// Flush writes the index if it changed.
func (dc *DiskCache) Flush() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if !dc.dirty || dc.index == nil {
		return nil
	}
	return dc.saveIndex()
}

// Stats returns a snapshot of the cache counters.
func (dc *DiskCache) Stats() Stats {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	s := dc.stats
	s.Capacity = dc.capacity
	s.Size = dc.size
	s.Items = len(dc.index)
	return s
}

// Close saves the index and releases the codecs.
func (dc *DiskCache) Close() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if dc.index == nil {
		return ErrCacheClosed
	}

	err := dc.saveIndex()
	dc.index = nil
	if dc.encoder != nil {
		_ = dc.encoder.Close()
	}
	dc.decoder.Close()
	return err
}

func (dc *DiskCache) expired(e *diskEntry, now time.Time) bool {
	return dc.ttl > 0 && now.Sub(e.Stored) > dc.ttl
}

// removeLocked must be called with mu held.
func (dc *DiskCache) removeLocked(e *diskEntry) {
	_ = os.Remove(filepath.Join(dc.dir, e.File))
	delete(dc.index, e.Key)
	dc.size -= e.Size
	dc.dirty = true
}

// evictOldest must be called with mu held.
func (dc *DiskCache) evictOldest() {
	entries := make([]*diskEntry, 0, len(dc.index))
	for _, e := range dc.index {
		entries = append(entries, e)
	}
	if len(entries) == 0 {
		return
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastAccess.Before(entries[j].LastAccess)
	})

	dc.removeLocked(entries[0])
	dc.stats.Evictions++
	dc.stats.LastEvict = dc.now()
}

func (dc *DiskCache) loadIndex() error {
	f, err := os.Open(filepath.Join(dc.dir, indexFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	return gob.NewDecoder(f).Decode(&dc.index)
}

// saveIndex must be called with mu held.
func (dc *DiskCache) saveIndex() error {
	f, err := os.CreateTemp(dc.dir, indexFile+".*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	err = gob.NewEncoder(f).Encode(dc.index)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, filepath.Join(dc.dir, indexFile))
	}
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}

	dc.dirty = false
	return nil
}

// writeFileAtomic writes data to a temp file in the same directory and
// renames it over path.
func writeFileAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()

	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, path)
	}
	if err != nil {
		_ = os.Remove(tmp)
	}
	return err
}
