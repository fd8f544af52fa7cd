package app

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Terminal is the line-oriented console the interactive session talks
// to. Reader and writer are injected so sessions can be scripted.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
}

func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out}
}

func (t *Terminal) Writer() io.Writer {
	return t.out
}

func (t *Terminal) Printf(format string, args ...any) {
	fmt.Fprintf(t.out, format, args...)
}

// ReadLine returns one trimmed input line.
func (t *Terminal) ReadLine() (string, error) {
	line, err := t.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Prompt asks for a value, returning def when the user just presses
// enter.
func (t *Terminal) Prompt(label, def string) (string, error) {
	if def != "" {
		t.Printf("%s [%s]: ", label, def)
	} else {
		t.Printf("%s: ", label)
	}
	line, err := t.ReadLine()
	if err != nil {
		return "", err
	}
	if line == "" {
		return def, nil
	}
	return line, nil
}

// Confirm asks a yes/no question; only y and yes confirm.
func (t *Terminal) Confirm(question string) (bool, error) {
	t.Printf("%s [y/N]: ", question)
	line, err := t.ReadLine()
	if err != nil {
		return false, err
	}
	line = strings.ToLower(line)
	return line == "y" || line == "yes", nil
}

// ItemKind tags what selecting a menu item does.
type ItemKind int

const (
	ItemAction ItemKind = iota
	ItemSubmenu
	ItemToggle
	ItemInput
	ItemSeparator
	ItemBack
)

// Item is one menu entry. Action and Submenu use Run; Toggle flips the
// bound flag; Input prompts and hands the value to Accept.
type Item struct {
	Kind   ItemKind
	Label  string
	Detail string

	Run    func() error
	Toggle *bool
	Prompt string
	Def    string
	Accept func(string) error
}

// Menu is one screen of numbered items plus status lines above them.
type Menu struct {
	Title  string
	Status []string
	Items  []Item
}

// Run displays the menu once and executes the chosen item. It reports
// false when the user backs out of this menu. Errors from actions are
// shown and swallowed; terminal failures propagate so nested menus
// unwind.
func (m *Menu) Run(t *Terminal) (bool, error) {
	t.Printf("\n=== %s ===\n", m.Title)
	for _, line := range m.Status {
		t.Printf("%s\n", line)
	}

	selectable := make([]*Item, 0, len(m.Items))
	for i := range m.Items {
		item := &m.Items[i]
		if item.Kind == ItemSeparator {
			t.Printf("\n")
			continue
		}
		selectable = append(selectable, item)

		label := item.Label
		if item.Kind == ItemToggle && item.Toggle != nil {
			label = fmt.Sprintf("%s [%s]", label, onOff(*item.Toggle))
		}
		if item.Detail != "" {
			t.Printf("  %d) %-28s %s\n", len(selectable), label, item.Detail)
		} else {
			t.Printf("  %d) %s\n", len(selectable), label)
		}
	}

	t.Printf("> ")
	choice, err := t.ReadLine()
	if err != nil {
		return false, err
	}
	switch choice {
	case "", "q", "Q", "0":
		return false, nil
	}

	n, err := strconv.Atoi(choice)
	if err != nil || n < 1 || n > len(selectable) {
		t.Printf("Invalid choice %q\n", choice)
		return true, nil
	}
	item := selectable[n-1]

	switch item.Kind {
	case ItemBack:
		return false, nil
	case ItemToggle:
		if item.Toggle != nil {
			*item.Toggle = !*item.Toggle
			t.Printf("%s is now %s\n", item.Label, onOff(*item.Toggle))
		}
		return true, nil
	case ItemSubmenu:
		if item.Run != nil {
			if err := item.Run(); err != nil {
				return false, err
			}
		}
		return true, nil
	case ItemInput:
		value, err := t.Prompt(item.Prompt, item.Def)
		if err != nil {
			return false, err
		}
		if err := item.Accept(value); err != nil {
			if errors.Is(err, io.EOF) {
				return false, err
			}
			t.Printf("Error: %v\n", err)
		}
		return true, nil
	default:
		if item.Run != nil {
			if err := item.Run(); err != nil {
				if errors.Is(err, io.EOF) {
					return false, err
				}
				t.Printf("Error: %v\n", err)
			}
		}
		return true, nil
	}
}

// Loop shows builder-produced menus until the user backs out, so every
// redisplay sees fresh state.
func Loop(t *Terminal, build func() *Menu) error {
	for {
		again, err := build().Run(t)
		if err != nil {
			return err
		}
		if !again {
			return nil
		}
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
