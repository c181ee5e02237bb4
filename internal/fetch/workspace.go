package fetch

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Workspace file names used by the pipeline.
const (
	videoTempFile   = "video.tmp"
	audioTempFile   = "audio.tmp"
	outputFinalFile = "output.final"
)

// Workspace is a scoped temporary directory exclusively owned by one
// in-flight pipeline operation. It is removed, with everything beneath it,
// before the operation reports completion, on every exit path.
type Workspace struct {
	Path string
}

// NewWorkspace creates a uniquely named directory under root. If root is
// empty the system temp directory is used.
func NewWorkspace(root string) (*Workspace, error) {
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}

	dir := filepath.Join(root, "mediafetch-"+uuid.NewString())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, err
	}
	return &Workspace{Path: dir}, nil
}

// File returns the absolute path of name inside the workspace.
func (w *Workspace) File(name string) string {
	return filepath.Join(w.Path, name)
}

// Remove deletes the workspace directory and all its contents. It is
// idempotent: removing an already-removed workspace is not an error.
func (w *Workspace) Remove() error {
	return os.RemoveAll(w.Path)
}
