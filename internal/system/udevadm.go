package system

import (
	"errors"
	"fmt"
	"strings"

	"k8s.io/klog/v2"
)

var ErrToolFailed = errors.New("external tool failed")

const (
	DefaultReloadCommand  = "sudo udevadm control --reload-rules"
	DefaultTriggerCommand = "sudo udevadm trigger"
)

// Admin asks udev to pick up rule changes by running the configured
// reload and trigger commands.
type Admin struct {
	run        Runner
	reload     []string
	trigger    []string
	outputScan bool
}

// NewAdmin splits the command strings into argv form. A leading sudo
// is dropped when the process already runs as root. With outputScan
// enabled, command output containing "error" or "failed" marks the
// step failed even on a zero exit status; udevadm has been known to
// report problems that way.
func NewAdmin(run Runner, reloadCmd, triggerCmd string, outputScan bool) (*Admin, error) {
	reload, err := splitCommand(reloadCmd)
	if err != nil {
		return nil, fmt.Errorf("reload command: %w", err)
	}
	trigger, err := splitCommand(triggerCmd)
	if err != nil {
		return nil, fmt.Errorf("trigger command: %w", err)
	}
	return &Admin{run: run, reload: reload, trigger: trigger, outputScan: outputScan}, nil
}

func splitCommand(cmd string) ([]string, error) {
	argv := strings.Fields(cmd)
	if len(argv) == 0 {
		return nil, errors.New("empty command")
	}
	if argv[0] == "sudo" && len(argv) > 1 && IsRoot() {
		argv = argv[1:]
	}
	return argv, nil
}

// Reload asks udev to re-read rule files.
func (a *Admin) Reload() error {
	return a.step("reload udev rules", a.reload)
}

// Trigger replays device events so changed rules take effect.
func (a *Admin) Trigger() error {
	return a.step("trigger udev events", a.trigger)
}

// Apply reloads and then triggers, stopping at the first failure.
func (a *Admin) Apply() error {
	if err := a.Reload(); err != nil {
		return err
	}
	return a.Trigger()
}

func (a *Admin) step(what string, argv []string) error {
	klog.V(2).Infof("Running %v", argv)
	out, err := a.run.Run(argv[0], argv[1:]...)
	if err != nil {
		return fmt.Errorf("%w: %s: %v (%s)", ErrToolFailed, what, err, firstLine(out))
	}
	if a.outputScan && (strings.Contains(out, "error") || strings.Contains(out, "failed")) {
		return fmt.Errorf("%w: %s reported: %s", ErrToolFailed, what, firstLine(out))
	}
	klog.V(3).Infof("Finished %s", what)
	return nil
}
