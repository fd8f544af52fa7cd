package system

import (
	"os/exec"
	"strings"
)

// Runner executes external commands and returns their combined output
// with surrounding whitespace trimmed.
type Runner interface {
	Run(name string, args ...string) (string, error)
	RunInput(input, name string, args ...string) (string, error)
}

// Exec runs commands directly, never through a shell.
type Exec struct{}

func (Exec) Run(name string, args ...string) (string, error) {
	out, err := exec.Command(name, args...).CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

func (Exec) RunInput(input, name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	cmd.Stdin = strings.NewReader(input)
	out, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(out)), err
}
