package system

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"k8s.io/klog/v2"
)

var ErrPermission = errors.New("permission denied")

// Files writes and removes rule files, falling back to sudo when the
// process cannot touch the target directory itself.
type Files struct {
	run      Runner
	isRoot   func() bool
	canWrite func(string) bool
}

func NewFiles(run Runner) *Files {
	return &Files{run: run, isRoot: IsRoot, canWrite: CanWrite}
}

// Write creates or replaces path with content. Elevated writes send
// the content on stdin so nothing is interpolated into a command line.
func (f *Files) Write(path, content string) error {
	if f.isRoot() || f.canWrite(filepath.Dir(path)) {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		return nil
	}

	klog.V(2).Infof("No write access to %s, elevating via sudo", filepath.Dir(path))
	out, err := f.run.RunInput(content, "sudo", "tee", "--", path)
	if err != nil {
		return fmt.Errorf("%w: elevated write of %s: %v (%s)", ErrPermission, path, err, firstLine(out))
	}
	return nil
}

// Remove deletes path. A missing file reports os.ErrNotExist before
// any removal is attempted; an elevated removal is re-checked, sudo rm
// -f exits zero even when it silently leaves the file behind.
func (f *Files) Remove(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", path, os.ErrNotExist)
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}

	if f.isRoot() || f.canWrite(filepath.Dir(path)) {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove %s: %w", path, err)
		}
		return nil
	}

	klog.V(2).Infof("No write access to %s, elevating via sudo", filepath.Dir(path))
	out, err := f.run.Run("sudo", "rm", "-f", "--", path)
	if err != nil {
		return fmt.Errorf("%w: elevated remove of %s: %v (%s)", ErrPermission, path, err, firstLine(out))
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s still present after elevated remove", ErrPermission, path)
	}
	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
