// Package artifact checks and places the screenshots a run produces.
package artifact

import (
	"errors"
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"
)

// ErrEmpty is returned for a zero-byte artifact.
var ErrEmpty = errors.New("artifact is empty")

// Info describes a verified PNG.
type Info struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Verify checks that path is a non-empty, decodable PNG.
func Verify(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return Info{}, err
	}
	if st.Size() == 0 {
		return Info{}, fmt.Errorf("%s: %w", path, ErrEmpty)
	}
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		return Info{}, fmt.Errorf("%s: not a png: %w", path, err)
	}
	return Info{Path: path, Size: st.Size(), Width: cfg.Width, Height: cfg.Height}, nil
}

// Copy writes src to dst, creating parent directories and replacing dst.
func Copy(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
