package cache

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDiskCache_PutGet(t *testing.T) {
	tests := []struct {
		name  string
		level int
		value []byte
	}{
		{"raw small", 0, []byte("hello")},
		{"compressed", 3, bytes.Repeat([]byte("abcd"), 2048)},
		{"compression enabled but small", 3, []byte("tiny")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dc, err := NewDiskCache(t.TempDir(), 1<<20, tt.level, 0)
			if err != nil {
				t.Fatalf("NewDiskCache: %v", err)
			}
			defer dc.Close()

			if err := dc.Put("key", tt.value); err != nil {
				t.Fatalf("Put: %v", err)
			}
			got, ok := dc.Get("key")
			if !ok {
				t.Fatal("Get: not found")
			}
			if !bytes.Equal(got, tt.value) {
				t.Error("round trip changed the value")
			}
		})
	}
}

func TestDiskCache_CompressesOnDisk(t *testing.T) {
	dc, err := NewDiskCache(t.TempDir(), 1<<20, 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer dc.Close()

	value := bytes.Repeat([]byte{0}, 64*1024)
	_ = dc.Put("silence", value)

	if size := dc.Stats().Size; size >= int64(len(value)) {
		t.Errorf("disk size %d, want less than %d", size, len(value))
	}
}

func TestDiskCache_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	dc, err := NewDiskCache(dir, 1<<20, 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	_ = dc.Put("a", []byte("alpha"))
	_ = dc.Put("b", bytes.Repeat([]byte("beta"), 1000))
	if err := dc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	dc, err = NewDiskCache(dir, 1<<20, 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer dc.Close()

	if got, ok := dc.Get("a"); !ok || string(got) != "alpha" {
		t.Errorf("a = %q, %v after reopen", got, ok)
	}
	if got, ok := dc.Get("b"); !ok || len(got) != 4000 {
		t.Errorf("b = %d bytes, %v after reopen", len(got), ok)
	}
}

func TestDiskCache_EvictsLeastRecentlyUsed(t *testing.T) {
	clock := newFakeClock()
	dc, err := NewDiskCache(t.TempDir(), 100, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer dc.Close()
	dc.now = clock.Now

	for _, k := range []string{"a", "b", "c"} {
		_ = dc.Put(k, make([]byte, 30))
		clock.Advance(time.Second)
	}
	dc.Get("a")
	clock.Advance(time.Second)

	_ = dc.Put("d", make([]byte, 30))

	if _, ok := dc.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	for _, k := range []string{"a", "c", "d"} {
		if _, ok := dc.Get(k); !ok {
			t.Errorf("%s should still be cached", k)
		}
	}
}

func TestDiskCache_ItemTooLarge(t *testing.T) {
	dc, err := NewDiskCache(t.TempDir(), 10, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer dc.Close()

	if err := dc.Put("big", make([]byte, 11)); !errors.Is(err, ErrItemTooLarge) {
		t.Errorf("err = %v, want ErrItemTooLarge", err)
	}
}

func TestDiskCache_TTL(t *testing.T) {
	clock := newFakeClock()
	dc, err := NewDiskCache(t.TempDir(), 1<<20, 0, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	defer dc.Close()
	dc.now = clock.Now

	_ = dc.Put("a", []byte("x"))
	_ = dc.Put("b", []byte("y"))
	clock.Advance(2 * time.Hour)

	if _, ok := dc.Get("a"); ok {
		t.Error("expired entry returned")
	}
	if n := dc.Prune(); n != 1 {
		t.Errorf("Prune removed %d, want 1", n)
	}
	if dc.Stats().Items != 0 {
		t.Error("entries left after prune")
	}
}

func TestDiskCache_MissingFile(t *testing.T) {
	dir := t.TempDir()
	dc, err := NewDiskCache(dir, 1<<20, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer dc.Close()

	_ = dc.Put("k", []byte("v"))
	files, _ := filepath.Glob(filepath.Join(dir, "*.bin"))
	for _, f := range files {
		_ = os.Remove(f)
	}

	if _, ok := dc.Get("k"); ok {
		t.Error("Get succeeded with the file gone")
	}
	if dc.Stats().Items != 0 {
		t.Error("stale index entry kept")
	}
}

func TestDiskCache_ClearAndClose(t *testing.T) {
	dc, err := NewDiskCache(t.TempDir(), 1<<20, 0, 0)
	if err != nil {
		t.Fatal(err)
	}

	_ = dc.Put("k", []byte("v"))
	if err := dc.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if dc.Stats().Items != 0 {
		t.Error("items left after Clear")
	}

	if err := dc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := dc.Put("k", []byte("v")); !errors.Is(err, ErrCacheClosed) {
		t.Errorf("Put after Close = %v, want ErrCacheClosed", err)
	}
	if err := dc.Close(); !errors.Is(err, ErrCacheClosed) {
		t.Errorf("second Close = %v, want ErrCacheClosed", err)
	}
}
