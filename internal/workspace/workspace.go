package workspace

import (
	"os"
	"path/filepath"

	"trinity/pkg/errors"
)

// Workspace is the on-disk layout shared by agents and the memory manager.
// The directories are created once at startup and never torn down.
type Workspace struct {
	root string
}

// Init creates the workspace directory tree under root.
func Init(root string) (*Workspace, error) {
	if root == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "workspace root is empty")
	}

	for _, sub := range []string{"memory", "cache", "artifacts", "logs"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0750); err != nil {
			return nil, errors.Wrapf(err, "create workspace dir %s", sub)
		}
	}

	return &Workspace{root: root}, nil
}

// Root returns the workspace root directory.
func (w *Workspace) Root() string { return w.root }

// MemoryDir returns the directory for persisted memory entries.
func (w *Workspace) MemoryDir() string { return filepath.Join(w.root, "memory") }

// CacheDir returns the directory for transient downloads.
func (w *Workspace) CacheDir() string { return filepath.Join(w.root, "cache") }

// ArtifactsDir returns the directory for agent-produced files.
func (w *Workspace) ArtifactsDir() string { return filepath.Join(w.root, "artifacts") }

// LogsDir returns the directory for log files.
func (w *Workspace) LogsDir() string { return filepath.Join(w.root, "logs") }
