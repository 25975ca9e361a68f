// Package storage provides read-only access to the template directory and a
// scratch workspace for per-invocation artifacts. The canonical templates are
// never written through this package.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	fslib "github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"
)

// ErrTemplateNotFound reports a template identifier with no backing file.
var ErrTemplateNotFound = errors.New("TEMPLATE_NOT_FOUND")

// TemplateStore looks up template archives by exact filename.
type TemplateStore struct {
	fs  fslib.Filesystem
	dir string
}

// NewTemplateStore opens a store over the OS filesystem rooted at dir.
func NewTemplateStore(dir string) *TemplateStore {
	return &TemplateStore{fs: billy.NewOSFS(dir), dir: dir}
}

// NewTemplateStoreFS opens a store over an injected filesystem (in-memory in
// tests).
func NewTemplateStoreFS(fsys fslib.Filesystem) *TemplateStore {
	return &TemplateStore{fs: fsys, dir: "/"}
}

// Read returns the raw bytes of the named template. The name must be a bare
// filename; path traversal is rejected.
func (s *TemplateStore) Read(name string) ([]byte, error) {
	if name == "" || name != filepath.Base(name) {
		return nil, fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
	}

	exists, err := s.fs.Exists(name)
	if err != nil {
		return nil, fmt.Errorf("stat template %q: %w", name, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
	}

	data, err := s.fs.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read template %q: %w", name, err)
	}
	return data, nil
}

// List returns the template filenames present in the store.
func (s *TemplateStore) List() ([]string, error) {
	infos, err := s.fs.ReadDir(".")
	if err != nil {
		// Some backends only accept the root path form.
		infos, err = s.fs.ReadDir("/")
		if err != nil {
			return nil, fmt.Errorf("list templates: %w", err)
		}
	}

	var names []string
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		names = append(names, info.Name())
	}
	return names, nil
}

// Workspace hands out uniquely named scratch paths for bound and converted
// artifacts. Every path is keyed by the invocation's correlation id so
// concurrent requests over the same template never collide.
type Workspace struct {
	fs   fslib.Filesystem
	root string
}

// NewWorkspace opens a scratch workspace rooted at dir on the OS filesystem.
func NewWorkspace(dir string) (*Workspace, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace %q: %w", dir, err)
	}
	return &Workspace{fs: billy.NewOSFS(dir), root: dir}, nil
}

// NewWorkspaceFS opens a workspace over an injected filesystem.
func NewWorkspaceFS(fsys fslib.Filesystem) *Workspace {
	return &Workspace{fs: fsys, root: "/"}
}

// Put writes artifact bytes under a correlation-scoped name and returns the
// absolute path on the backing filesystem.
func (w *Workspace) Put(correlationID, name string, data []byte) (string, error) {
	scoped := correlationID + "_" + filepath.Base(name)
	if err := w.fs.WriteFile(scoped, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact %q: %w", scoped, err)
	}
	return filepath.Join(w.root, scoped), nil
}

// Get reads back a previously written artifact by its scoped name.
func (w *Workspace) Get(correlationID, name string) ([]byte, error) {
	scoped := correlationID + "_" + filepath.Base(name)
	data, err := w.fs.ReadFile(scoped)
	if err != nil {
		return nil, fmt.Errorf("read artifact %q: %w", scoped, err)
	}
	return data, nil
}

// Remove deletes a correlation-scoped artifact. Missing files are ignored.
func (w *Workspace) Remove(correlationID, name string) error {
	scoped := correlationID + "_" + filepath.Base(name)
	exists, err := w.fs.Exists(scoped)
	if err != nil || !exists {
		return nil
	}
	return w.fs.Remove(scoped)
}

// Root returns the workspace root directory on the backing filesystem.
func (w *Workspace) Root() string {
	return w.root
}
