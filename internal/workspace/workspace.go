// Package workspace provisions the per-run project directory:
//
//	<base>/<project>_<YYYY-MM-DD>/
//	    Inputs/   copies of the scene rasters and configuration
//	    Outputs/  classified GeoJSON, landscape grids, burn outputs, reports
//	    Scratch/  intermediate enhancement layers
package workspace

import (
	"fmt"
	"path/filepath"

	"github.com/banshee-data/genburn/internal/fsutil"
	"github.com/banshee-data/genburn/internal/monitoring"
	"github.com/banshee-data/genburn/internal/security"
	"github.com/banshee-data/genburn/internal/timeutil"
)

// Subdirectory names.
const (
	InputsDir  = "Inputs"
	OutputsDir = "Outputs"
	ScratchDir = "Scratch"
)

// Workspace is a provisioned project directory on the local filesystem.
type Workspace struct {
	Root string
	fs   fsutil.FileSystem
}

// Create makes (or reuses) the project directory for today's date under
// base. The project name is sanitised before use.
func Create(base, project string, clock timeutil.Clock) (*Workspace, error) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	fs := fsutil.OSFileSystem{}
	if err := fs.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace base: %w", err)
	}
	name := security.SanitizeFilename(project) + "_" + timeutil.Date(clock)
	root := filepath.Join(base, name)
	if err := security.ValidatePathWithinDirectory(root, base); err != nil {
		return nil, err
	}
	for _, sub := range []string{InputsDir, OutputsDir, ScratchDir} {
		if err := fs.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create workspace %s: %w", sub, err)
		}
	}
	monitoring.Infow("workspace ready", "root", root)
	return &Workspace{Root: root, fs: fs}, nil
}

// FS returns the filesystem the workspace lives on.
func (w *Workspace) FS() fsutil.FileSystem { return w.fs }

// Inputs returns the inputs directory.
func (w *Workspace) Inputs() string { return filepath.Join(w.Root, InputsDir) }

// Outputs returns the outputs directory.
func (w *Workspace) Outputs() string { return filepath.Join(w.Root, OutputsDir) }

// Scratch returns the scratch directory.
func (w *Workspace) Scratch() string { return filepath.Join(w.Root, ScratchDir) }

// Output returns the path of a named file (or nested path) under Outputs.
// Each element is sanitised and the result must stay inside Outputs.
func (w *Workspace) Output(elem ...string) (string, error) {
	return w.within(w.Outputs(), elem)
}

func (w *Workspace) within(dir string, elem []string) (string, error) {
	parts := make([]string, 0, len(elem)+1)
	parts = append(parts, dir)
	for _, e := range elem {
		parts = append(parts, security.SanitizeFilename(e))
	}
	p := filepath.Join(parts...)
	if err := security.ValidatePathWithinDirectory(p, dir); err != nil {
		return "", err
	}
	return p, nil
}

// CopyInput copies srcPath from src into Inputs under its sanitised base
// name and returns the new path.
func (w *Workspace) CopyInput(src fsutil.FileSystem, srcPath string) (string, error) {
	dst, err := w.within(w.Inputs(), []string{filepath.Base(srcPath)})
	if err != nil {
		return "", err
	}
	if err := fsutil.CopyFile(w.fs, dst, src, srcPath); err != nil {
		return "", fmt.Errorf("copy input %s: %w", srcPath, err)
	}
	monitoring.Debugw("copied input", "src", srcPath, "dst", dst)
	return dst, nil
}

// CopyInputs copies every regular file below dir into Inputs, flattening
// the tree. It returns the copied paths in source order.
func (w *Workspace) CopyInputs(src fsutil.FileSystem, dir string) ([]string, error) {
	files, err := src.List(dir)
	if err != nil {
		return nil, fmt.Errorf("list inputs %s: %w", dir, err)
	}
	copied := make([]string, 0, len(files))
	for _, f := range files {
		dst, err := w.CopyInput(src, f)
		if err != nil {
			return copied, err
		}
		copied = append(copied, dst)
	}
	return copied, nil
}

// ClearScratch removes and recreates the scratch directory.
func (w *Workspace) ClearScratch() error {
	if err := w.fs.RemoveAll(w.Scratch()); err != nil {
		return fmt.Errorf("clear scratch: %w", err)
	}
	return w.fs.MkdirAll(w.Scratch(), 0o755)
}
