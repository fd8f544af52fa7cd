package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/easytty/easytty/internal/device"
)

const (
	DefaultDir    = "/etc/udev/rules.d"
	DefaultDevDir = "/dev"
	DefaultTag    = "easytty"
)

// FileOps writes and removes rule files, elevating privileges when the
// caller cannot touch the rules directory directly.
type FileOps interface {
	Write(path, content string) error
	Remove(path string) error
}

// Options configure a Store. Zero fields fall back to production
// defaults.
type Options struct {
	Dir      string
	DevDir   string
	Tag      string
	Priority int
}

// Store is the in-memory view of the generated rule files in one
// directory. Disk is the source of truth: every mutation ends in a
// wholesale Refresh. Not safe for concurrent use; a single goroutine
// owns it.
type Store struct {
	dir      string
	devDir   string
	tag      string
	priority int
	ops      FileOps

	rules []Rule
}

func NewStore(opts Options, ops FileOps) *Store {
	s := &Store{
		dir:      opts.Dir,
		devDir:   opts.DevDir,
		tag:      opts.Tag,
		priority: opts.Priority,
		ops:      ops,
	}
	if s.dir == "" {
		s.dir = DefaultDir
	}
	if s.devDir == "" {
		s.devDir = DefaultDevDir
	}
	if s.tag == "" {
		s.tag = DefaultTag
	}
	if s.priority <= 0 {
		s.priority = DefaultPriority
	}
	s.Refresh()
	return s
}

// Dir returns the rules directory the store mirrors.
func (s *Store) Dir() string {
	return s.dir
}

// DevDir returns the directory checked for live symlinks.
func (s *Store) DevDir() string {
	return s.devDir
}

// Refresh rebuilds the view from the directory listing. A missing
// directory is an empty store; files that do not parse are skipped.
func (s *Store) Refresh() {
	s.rules = nil

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			klog.Warningf("Failed to read rules directory %s: %v", s.dir, err)
		}
		return
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.Contains(name, s.tag) || !strings.HasSuffix(name, FileSuffix) {
			continue
		}
		rule, err := ParseFile(filepath.Join(s.dir, name))
		if err != nil {
			klog.V(2).Infof("Skipping rule file %s: %v", name, err)
			continue
		}
		rule.Active = s.SymlinkActive(rule.Symlink)
		s.rules = append(s.rules, rule)
	}

	sort.Slice(s.rules, func(i, j int) bool { return s.rules[i].Symlink < s.rules[j].Symlink })
}

// Rules returns a copy of the current view, sorted by symlink.
func (s *Store) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// RuleFor returns the stored rule matching d, if any.
func (s *Store) RuleFor(d device.Device) (Rule, bool) {
	for _, r := range s.rules {
		if r.Matches(d) {
			return r, true
		}
	}
	return Rule{}, false
}

// ExistsFor reports whether some stored rule matches d.
func (s *Store) ExistsFor(d device.Device) bool {
	_, ok := s.RuleFor(d)
	return ok
}

// MatchKindFor classifies how the store matches d.
func (s *Store) MatchKindFor(d device.Device) MatchKind {
	r, ok := s.RuleFor(d)
	if !ok {
		return MatchNone
	}
	return r.Kind()
}

// SymlinkInUse reports whether a stored rule already claims name.
func (s *Store) SymlinkInUse(name string) bool {
	for _, r := range s.rules {
		if r.Symlink == name {
			return true
		}
	}
	return false
}

// SymlinkActive reports whether name currently exists under the dev
// directory, i.e. udev has acted on the rule.
func (s *Store) SymlinkActive(name string) bool {
	if name == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(s.devDir, name))
	return err == nil
}

// Create renders and writes a rule pinning symlink to d, then
// refreshes. Checks run in order: name policy, device validity,
// symlink collision, existing rule for the same hardware.
func (s *Store) Create(d device.Device, symlink string) error {
	if err := ValidateSymlinkName(symlink); err != nil {
		return err
	}
	if !d.Valid() {
		return fmt.Errorf("%w: need a device node and a vendor id", ErrInvalidDevice)
	}
	if s.SymlinkInUse(symlink) {
		return fmt.Errorf("%w: %s", ErrNameInUse, symlink)
	}
	if existing, ok := s.RuleFor(d); ok {
		return fmt.Errorf("%w: %s is already named %s", ErrRuleExists, d.DisplayName(), existing.Symlink)
	}

	content, err := Render(d, symlink, time.Now())
	if err != nil {
		return err
	}
	path := filepath.Join(s.dir, FileName(s.priority, s.tag, symlink))
	if err := s.ops.Write(path, content); err != nil {
		return err
	}

	klog.Infof("Created udev rule %s for %s", path, d.DisplayName())
	s.Refresh()
	return nil
}

// DeleteFile removes a rule file. The view refreshes regardless of the
// outcome so a partial failure cannot leave it stale.
func (s *Store) DeleteFile(path string) error {
	err := s.ops.Remove(path)
	s.Refresh()
	if err != nil {
		return err
	}
	klog.Infof("Removed udev rule %s", path)
	return nil
}

// DeleteNamed resolves a rule by symlink or display name and removes
// its file.
func (s *Store) DeleteNamed(name string) error {
	for _, r := range s.rules {
		if r.Symlink == name || r.Name == name {
			return s.DeleteFile(r.FilePath)
		}
	}
	return fmt.Errorf("rule %q: %w", name, os.ErrNotExist)
}
