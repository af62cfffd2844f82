package fs

import (
	"errors"
	iofs "io/fs"
	"os"
	"path/filepath"

	"go.uber.org/fx"
)

// Module is the Fx module for this package.
var Module = fx.Provide(New)

//go:generate mockgen -source=fs.go -destination=fsmock/fs_mock.go -package=fsmock

// GqlspFS wraps the filesystem operations used by gqlsp.
type GqlspFS interface {
	DirExists(path string) (bool, error)
	FileExists(path string) (bool, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte) error
	MkdirAll(path string) error
	Remove(name string) error
	// FindUp walks from dir towards the filesystem root and returns the first directory containing one of names.
	FindUp(dir string, names ...string) (string, bool, error)
}

type fsImpl struct{}

// New creates a new GqlspFS.
func New() GqlspFS {
	return fsImpl{}
}

func (fsImpl) DirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

func (fsImpl) FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

func (fsImpl) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

func (fsImpl) WriteFile(name string, data []byte) error {
	return os.WriteFile(name, data, 0644)
}

// MkdirAll creates a directory and all its parents.
func (fsImpl) MkdirAll(path string) error { return os.MkdirAll(path, os.ModePerm) }

func (fsImpl) Remove(name string) error {
	return os.Remove(name)
}

func (f fsImpl) FindUp(dir string, names ...string) (string, bool, error) {
	current := filepath.Clean(dir)
	for {
		for _, name := range names {
			candidate := filepath.Join(current, name)
			if _, err := os.Stat(candidate); err == nil {
				return current, true, nil
			} else if !errors.Is(err, iofs.ErrNotExist) {
				return "", false, err
			}
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", false, nil
		}
		current = parent
	}
}
