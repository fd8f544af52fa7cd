package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/kennygrant/sanitize"

	"github.com/easytty/easytty/internal/device"
)

var (
	ErrInvalidName   = errors.New("invalid symlink name")
	ErrInvalidDevice = errors.New("device record is incomplete")
	ErrNameInUse     = errors.New("symlink name already in use")
	ErrRuleExists    = errors.New("device already has a rule")
	ErrUnsafeValue   = errors.New("value cannot be quoted safely")
)

// MatchKind classifies how a stored rule matches a device.
type MatchKind string

const (
	MatchNone   MatchKind = "none"
	MatchShared MatchKind = "shared"
	MatchUnique MatchKind = "unique"
)

// Rule is the parsed content of one generated udev rule file.
type Rule struct {
	Name      string
	VendorID  string
	ProductID string
	Serial    string
	Symlink   string
	FilePath  string
	Priority  int
	Active    bool
}

// WellFormed reports whether the rule carries the minimum needed to
// match hardware and create a symlink.
func (r Rule) WellFormed() bool {
	return r.VendorID != "" && r.Symlink != ""
}

// Matches reports whether the rule's match clauses select d. All three
// attributes compare as plain strings, so a rule without a serial
// matches only devices without one.
func (r Rule) Matches(d device.Device) bool {
	return r.VendorID == d.VendorID &&
		r.ProductID == d.ProductID &&
		r.Serial == d.Serial
}

// Kind reports how precisely the rule pins hardware: a serial-bearing
// rule matches one physical unit, a serial-less rule matches every
// unit of that model.
func (r Rule) Kind() MatchKind {
	if r.Serial != "" {
		return MatchUnique
	}
	return MatchShared
}

const maxSymlinkName = 64

var symlinkNameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// ValidateSymlinkName enforces the naming policy for generated
// symlinks: a leading letter, then letters, digits, underscore or
// dash, at most 64 characters.
func ValidateSymlinkName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	if len(name) > maxSymlinkName {
		return fmt.Errorf("%w: %q is longer than %d characters", ErrInvalidName, name, maxSymlinkName)
	}
	if !symlinkNameRe.MatchString(name) {
		return fmt.Errorf("%w: %q must start with a letter and contain only letters, digits, underscore or dash", ErrInvalidName, name)
	}
	return nil
}

// SuggestName derives a policy-conforming symlink name from the
// device's product string, falling back to its node name.
func SuggestName(d device.Device) string {
	base := sanitize.BaseName(strings.ReplaceAll(d.Product, " ", "-"))
	if len(base) > maxSymlinkName {
		base = base[:maxSymlinkName]
	}
	for _, candidate := range []string{base, d.DevNode} {
		if ValidateSymlinkName(candidate) == nil {
			return candidate
		}
	}
	return "device"
}
