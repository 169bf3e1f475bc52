package cache

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
)

// Manager layers the memory LRU over the disk cache. Disk hits are promoted
// into memory. It implements ttypes.AudioCache.
type Manager struct {
	memory *MemoryCache
	disk   *DiskCache // nil when the disk tier is disabled
	config Config
	logger *log.Logger

	writes sync.WaitGroup

	cleanupStop chan struct{}
	cleanupWg   sync.WaitGroup

	mu         sync.Mutex
	closed     bool
	promotions int64
}

// DefaultDir returns the per-user cache directory.
func DefaultDir() string {
	dir, err := gap.NewScope(gap.User, "voxfree").CacheDir()
	if err == nil && dir != "" {
		return filepath.Join(dir, "audio")
	}
	home, err := homedir.Dir()
	if err != nil {
		return filepath.Join(".cache", "voxfree", "audio")
	}
	return filepath.Join(home, ".cache", "voxfree", "audio")
}

// NewManager creates a cache manager. Dir may start with ~.
func NewManager(config Config, logger *log.Logger) (*Manager, error) {
	if logger == nil {
		logger = log.Default()
	}
	if config.MemoryCapacity <= 0 {
		config.MemoryCapacity = DefaultConfig().MemoryCapacity
	}

	m := &Manager{
		memory:      NewMemoryCache(config.MemoryCapacity, config.TTL),
		config:      config,
		logger:      logger.WithPrefix("cache"),
		cleanupStop: make(chan struct{}),
	}

	if config.DiskCapacity > 0 {
		dir := config.Dir
		if dir == "" {
			dir = DefaultDir()
		}
		dir, err := homedir.Expand(dir)
		if err != nil {
			return nil, fmt.Errorf("cache directory: %w", err)
		}
		m.config.Dir = dir

		m.disk, err = NewDiskCache(dir, config.DiskCapacity, config.CompressionLevel, config.TTL)
		if err != nil {
			return nil, fmt.Errorf("failed to create disk cache: %w", err)
		}
	}

	if config.CleanupInterval > 0 && config.TTL > 0 {
		m.startCleanup(config.CleanupInterval)
	}

	return m, nil
}

// Dir returns the disk cache directory, empty when disk caching is off.
func (m *Manager) Dir() string {
	if m.disk == nil {
		return ""
	}
	return m.config.Dir
}

// Get looks in memory, then on disk.
func (m *Manager) Get(key string) ([]byte, bool) {
	if data, ok := m.memory.Get(key); ok {
		return data, true
	}
	if m.disk == nil {
		return nil, false
	}

	data, ok := m.disk.Get(key)
	if !ok {
		return nil, false
	}

	if err := m.memory.Put(key, data); err == nil {
		m.mu.Lock()
		m.promotions++
		m.mu.Unlock()
	}
	return data, true
}

// Put stores value in memory and writes it to disk in the background.
func (m *Manager) Put(key string, value []byte) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrCacheClosed
	}
	m.writes.Add(1)
	m.mu.Unlock()

	if err := m.memory.Put(key, value); err != nil && !errors.Is(err, ErrItemTooLarge) {
		m.writes.Done()
		return fmt.Errorf("memory cache: %w", err)
	}

	if m.disk == nil {
		m.writes.Done()
		return nil
	}

	go func() {
		defer m.writes.Done()
		if err := m.disk.Put(key, value); err != nil {
			m.logger.Debug("Disk cache write failed", "err", err)
		}
	}()
	return nil
}

// Delete removes key from both tiers.
func (m *Manager) Delete(key string) {
	m.memory.Delete(key)
	if m.disk != nil {
		m.disk.Delete(key)
	}
}

// Clear empties both tiers.
func (m *Manager) Clear() error {
	m.writes.Wait()
	m.memory.Clear()
	if m.disk != nil {
		return m.disk.Clear()
	}
	return nil
}

// Prune drops expired entries from both tiers.
func (m *Manager) Prune() int {
	n := m.memory.Prune()
	if m.disk != nil {
		n += m.disk.Prune()
		if err := m.disk.Flush(); err != nil {
			m.logger.Debug("Saving cache index failed", "err", err)
		}
	}
	return n
}

// ManagerStats aggregates both tiers.
type ManagerStats struct {
	Memory     Stats
	Disk       Stats
	DiskOn     bool
	Promotions int64
}

// String formats the stats for humans.
func (s ManagerStats) String() string {
	if !s.DiskOn {
		return fmt.Sprintf("memory: %s (disk cache off)", s.Memory)
	}
	return fmt.Sprintf("memory: %s\ndisk:   %s", s.Memory, s.Disk)
}

// Stats returns a snapshot of both tiers.
func (m *Manager) Stats() ManagerStats {
	s := ManagerStats{Memory: m.memory.Stats()}
	if m.disk != nil {
		s.DiskOn = true
		s.Disk = m.disk.Stats()
	}
	m.mu.Lock()
	s.Promotions = m.promotions
	m.mu.Unlock()
	return s
}

// Close waits for pending disk writes, stops cleanup and saves the index.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.cleanupStop)
	m.cleanupWg.Wait()
	m.writes.Wait()

	if m.disk != nil {
		if err := m.disk.Close(); err != nil {
			return fmt.Errorf("failed to close disk cache: %w", err)
		}
	}
	return nil
}

func (m *Manager) startCleanup(interval time.Duration) {
	m.cleanupWg.Add(1)
	go func() {
		defer m.cleanupWg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if n := m.Prune(); n > 0 {
					m.logger.Debug("Expired cache entries removed", "count", n)
				}
			case <-m.cleanupStop:
				return
			}
		}
	}()
}
