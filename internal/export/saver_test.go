package export

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
)

func TestSaver_FileName(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

	tests := []struct {
		ext  string
		want string
	}{
		{"mp3", "voxfree-20240309-140507.mp3"},
		{".mp3", "voxfree-20240309-140507.mp3"},
		{"", "voxfree-20240309-140507.mp3"},
		{"ogg", "voxfree-20240309-140507.ogg"},
	}
	for _, tt := range tests {
		s := NewSaver(".", tt.ext)
		if got := s.FileName(at); got != tt.want {
			t.Errorf("FileName with %q = %q, want %q", tt.ext, got, tt.want)
		}
	}
}

func TestSaver_Save(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	s := NewSaver(dir, "mp3")
	s.now = func() time.Time { return time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC) }

	first, err := s.Save([]byte("one"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	second, err := s.Save([]byte("two"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if filepath.Base(first) != "voxfree-20240309-140507.mp3" {
		t.Errorf("first = %s", first)
	}
	if filepath.Base(second) != "voxfree-20240309-140507-1.mp3" {
		t.Errorf("second = %s", second)
	}

	for path, want := range map[string]string{first: "one", second: "two"} {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != want {
			t.Errorf("%s holds %q, want %q", path, data, want)
		}
	}
}

func TestSaver_SaveEmpty(t *testing.T) {
	s := NewSaver(t.TempDir(), "mp3")
	if _, err := s.Save(nil); err == nil {
		t.Error("expected error for empty audio")
	}
}

func TestSaver_HomeDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	homedir.Reset()
	t.Cleanup(homedir.Reset)

	s := NewSaver("~/exports", "mp3")
	path, err := s.Save([]byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(path) != filepath.Join(home, "exports") {
		t.Errorf("saved to %s", path)
	}
}
