package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
)

// Saver persists exported audio as a timestamp-named file.
type Saver struct {
	Dir       string
	Extension string
	Prefix    string

	now func() time.Time
}

// NewSaver creates a saver writing into dir (which may start with ~).
func NewSaver(dir, extension string) *Saver {
	return &Saver{
		Dir:       dir,
		Extension: extension,
		Prefix:    "voxfree",
		now:       time.Now,
	}
}

// FileName returns the name a file saved at t gets.
func (s *Saver) FileName(t time.Time) string {
	ext := strings.TrimPrefix(s.Extension, ".")
	if ext == "" {
		ext = "mp3"
	}
	return fmt.Sprintf("%s-%s.%s", s.Prefix, t.Format("20060102-150405"), ext)
}

// Save writes data and returns the path written. An existing file is
// never overwritten; a numeric suffix is added instead.
func (s *Saver) Save(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("nothing to save")
	}

	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	dir, err := homedir.Expand(dir)
	if err != nil {
		return "", fmt.Errorf("output directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	name := s.FileName(s.now())
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	for i := 0; i < 100; i++ {
		path := filepath.Join(dir, name)
		if i > 0 {
			path = filepath.Join(dir, fmt.Sprintf("%s-%d%s", base, i, ext))
		}

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}

		_, err = f.Write(data)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path)
			return "", err
		}
		return path, nil
	}

	return "", fmt.Errorf("could not find a free file name for %s in %s", name, dir)
}
