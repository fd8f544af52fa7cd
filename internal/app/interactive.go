package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/easytty/easytty/internal/device"
	"github.com/easytty/easytty/internal/rules"
	"github.com/easytty/easytty/internal/system"
)

// Session drives the interactive menus.
type Session struct {
	app       *App
	term      *Terminal
	watcher   *rules.Watcher
	autoApply bool
}

// NewSession wires a session. watcher may be nil; with one present the
// store is refreshed whenever rule files changed behind the session's
// back.
func NewSession(a *App, term *Terminal, watcher *rules.Watcher, autoApply bool) *Session {
	return &Session{app: a, term: term, watcher: watcher, autoApply: autoApply}
}

// Run shows the main menu until the user quits or input ends.
func (s *Session) Run() error {
	s.term.Printf("easytty: stable names for USB serial devices\n")
	if !system.IsRoot() && !system.CanWrite(s.app.Store.Dir()) {
		s.term.Printf("Note: no write access to %s, changes will go through sudo.\n", s.app.Store.Dir())
	}

	err := Loop(s.term, s.mainMenu)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Session) refreshIfStale() {
	if s.watcher != nil && s.watcher.Stale() {
		s.app.Store.Refresh()
	}
}

func (s *Session) mainMenu() *Menu {
	s.refreshIfStale()
	devs, scanErr := s.app.Scanner.Scan()

	status := []string{
		fmt.Sprintf("%d device(s) connected, %d rule(s) installed", len(devs), len(s.app.Store.Rules())),
	}
	if scanErr != nil {
		status = append(status, fmt.Sprintf("Scan failed: %v", scanErr))
	}

	return &Menu{
		Title:  "easytty",
		Status: status,
		Items: []Item{
			{Kind: ItemSubmenu, Label: "Devices", Detail: "list and name connected adapters", Run: s.devicesLoop},
			{Kind: ItemSubmenu, Label: "Rules", Detail: "inspect and delete installed rules", Run: s.rulesLoop},
			{Kind: ItemAction, Label: "Apply rules now", Detail: "udevadm reload + trigger", Run: s.applyNow},
			{Kind: ItemAction, Label: "Refresh", Detail: "re-read the rules directory", Run: func() error { s.app.Store.Refresh(); return nil }},
			{Kind: ItemInput, Label: "Inspect device by path", Prompt: "Device path", Accept: s.inspectPath},
			{Kind: ItemToggle, Label: "Auto-apply after changes", Toggle: &s.autoApply},
			{Kind: ItemSeparator},
			{Kind: ItemBack, Label: "Quit"},
		},
	}
}

// devicesLoop rescans on every redisplay so devices plugged in while
// the menu is open show up without backing out.
func (s *Session) devicesLoop() error {
	return Loop(s.term, func() *Menu {
		s.refreshIfStale()
		menu := &Menu{Title: "Devices"}
		devs, err := s.app.Scanner.Scan()
		switch {
		case err != nil:
			menu.Status = []string{fmt.Sprintf("Scan failed: %v", err)}
		case len(devs) == 0:
			menu.Status = []string{"No USB serial devices found."}
		}
		for _, d := range devs {
			detail := fmt.Sprintf("%s:%s", d.VendorID, d.ProductID)
			if r, ok := s.app.Store.RuleFor(d); ok {
				detail += "  named " + filepath.Join(s.app.Store.DevDir(), r.Symlink)
			}
			menu.Items = append(menu.Items, Item{
				Kind:   ItemSubmenu,
				Label:  d.DevPath,
				Detail: detail,
				Run:    s.deviceLoop(d),
			})
		}
		menu.Items = append(menu.Items, Item{Kind: ItemBack, Label: "Back"})
		return menu
	})
}

func (s *Session) deviceLoop(d device.Device) func() error {
	return func() error {
		return Loop(s.term, func() *Menu { return s.deviceMenu(d) })
	}
}

func (s *Session) deviceMenu(d device.Device) *Menu {
	s.refreshIfStale()
	status := []string{
		fmt.Sprintf("Product:  %s", orNone(d.Product)),
		fmt.Sprintf("ID:       %s:%s", d.VendorID, d.ProductID),
		fmt.Sprintf("Serial:   %s", orNone(d.Serial)),
		fmt.Sprintf("Driver:   %s", orNone(d.Driver)),
	}

	rule, named := s.app.Store.RuleFor(d)
	switch {
	case named:
		status = append(status, fmt.Sprintf("Rule:     %s (%s match)",
			filepath.Join(s.app.Store.DevDir(), rule.Symlink), rule.Kind()))
	case d.Serial == "":
		status = append(status, "Rule:     none (no serial, a rule will match every unit of this model)")
	default:
		status = append(status, "Rule:     none")
	}

	menu := &Menu{Title: d.DisplayName(), Status: status}
	if named {
		menu.Items = append(menu.Items,
			Item{Kind: ItemAction, Label: "Show rule file", Run: s.showRule(rule.FilePath)},
			Item{Kind: ItemAction, Label: "Delete rule", Run: s.deleteRule(rule)},
		)
	} else {
		menu.Items = append(menu.Items, Item{
			Kind:   ItemInput,
			Label:  "Create rule",
			Prompt: "Symlink name",
			Def:    rules.SuggestName(d),
			Accept: s.createRule(d),
		})
	}
	menu.Items = append(menu.Items, Item{Kind: ItemBack, Label: "Back"})
	return menu
}

func (s *Session) createRule(d device.Device) func(string) error {
	return func(name string) error {
		if err := rules.ValidateSymlinkName(name); err != nil {
			return err
		}
		target := filepath.Join(s.app.Store.DevDir(), name)
		ok, err := s.term.Confirm(fmt.Sprintf("Pin %s to %s?", d.DisplayName(), target))
		if err != nil || !ok {
			return err
		}
		if err := s.app.CreateRule(d, name, s.autoApply); err != nil {
			return err
		}
		if s.autoApply {
			s.term.Printf("Rule created and applied: %s\n", target)
		} else {
			s.term.Printf("Rule created. Run 'Apply rules now' to activate %s.\n", target)
		}
		return nil
	}
}

func (s *Session) deleteRule(r rules.Rule) func() error {
	return func() error {
		ok, err := s.term.Confirm(fmt.Sprintf("Delete the rule for %s?", r.Name))
		if err != nil || !ok {
			return err
		}
		if err := s.app.DeleteRule(r.Symlink, s.autoApply); err != nil {
			return err
		}
		s.term.Printf("Rule removed.\n")
		return nil
	}
}

func (s *Session) showRule(path string) func() error {
	return func() error {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		s.term.Printf("--- %s\n%s---\n", path, string(data))
		return nil
	}
}

func (s *Session) rulesLoop() error {
	return Loop(s.term, func() *Menu {
		s.refreshIfStale()
		list := s.app.Store.Rules()
		menu := &Menu{
			Title:  "Rules",
			Status: []string{fmt.Sprintf("%d rule(s) installed", len(list))},
		}
		for _, r := range list {
			menu.Items = append(menu.Items, Item{
				Kind:   ItemSubmenu,
				Label:  filepath.Join(s.app.Store.DevDir(), r.Symlink),
				Detail: r.Name,
				Run:    s.ruleLoop(r.Symlink),
			})
		}
		menu.Items = append(menu.Items, Item{Kind: ItemBack, Label: "Back"})
		return menu
	})
}

// ruleLoop leaves the per-rule menu as soon as the rule disappears,
// whether through this session or an external edit.
func (s *Session) ruleLoop(symlink string) func() error {
	return func() error {
		for {
			rule, ok := s.findRule(symlink)
			if !ok {
				return nil
			}
			again, err := s.ruleMenu(rule).Run(s.term)
			if err != nil || !again {
				return err
			}
		}
	}
}

func (s *Session) findRule(symlink string) (rules.Rule, bool) {
	for _, r := range s.app.Store.Rules() {
		if r.Symlink == symlink {
			return r, true
		}
	}
	return rules.Rule{}, false
}

func (s *Session) ruleMenu(r rules.Rule) *Menu {
	s.refreshIfStale()
	match := r.VendorID + ":" + r.ProductID
	if r.Serial != "" {
		match += " serial " + r.Serial
	}
	return &Menu{
		Title: filepath.Join(s.app.Store.DevDir(), r.Symlink),
		Status: []string{
			fmt.Sprintf("Device:  %s", r.Name),
			fmt.Sprintf("Match:   %s (%s)", match, r.Kind()),
			fmt.Sprintf("File:    %s", r.FilePath),
			fmt.Sprintf("Active:  %s", yesNo(s.app.Store.SymlinkActive(r.Symlink))),
		},
		Items: []Item{
			{Kind: ItemAction, Label: "Show rule file", Run: s.showRule(r.FilePath)},
			{Kind: ItemAction, Label: "Delete rule", Run: s.deleteRule(r)},
			{Kind: ItemBack, Label: "Back"},
		},
	}
}

func (s *Session) applyNow() error {
	if err := s.app.Admin.Apply(); err != nil {
		return err
	}
	s.term.Printf("udev rules reloaded and triggered.\n")
	return nil
}

func (s *Session) inspectPath(path string) error {
	if path == "" {
		return nil
	}
	d, ok, err := s.app.Scanner.Lookup(path)
	if err != nil {
		return err
	}
	if !ok {
		s.term.Printf("No device found at %s.\n", path)
		return nil
	}
	RenderDevices(s.term.Writer(), []device.Device{d})
	if r, ok := s.app.Store.RuleFor(d); ok {
		s.term.Printf("Named %s\n", filepath.Join(s.app.Store.DevDir(), r.Symlink))
	}
	return nil
}
