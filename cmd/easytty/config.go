package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/easytty/easytty/internal/device"
	"github.com/easytty/easytty/internal/rules"
	"github.com/easytty/easytty/internal/system"
)

type configSource interface {
	String() string
	open() (io.Reader, func() error, error)
}

type fileConfigSource struct {
	path string
}

func (fcs *fileConfigSource) open() (io.Reader, func() error, error) {
	file, err := os.Open(fcs.path)
	if err != nil {
		return nil, nil, err
	}
	return file, file.Close, nil
}

func (fcs *fileConfigSource) String() string {
	return "file:" + fcs.path
}

type envConfigSource struct {
	variable string
}

func (ecs *envConfigSource) open() (io.Reader, func() error, error) {
	data := os.Getenv(ecs.variable)
	if data == "" {
		return nil, nil, fmt.Errorf("config: environment variable %s is not set", ecs.variable)
	}
	return strings.NewReader(data), func() error { return nil }, nil
}

func (ecs *envConfigSource) String() string {
	return "env:" + ecs.variable
}

type stdinConfigSource struct{}

func (scs *stdinConfigSource) open() (io.Reader, func() error, error) {
	return os.Stdin, func() error { return nil }, nil
}

func (scs *stdinConfigSource) String() string {
	return "stdin"
}

// ConfigFlag selects where the YAML configuration comes from.
type ConfigFlag struct {
	configSource
}

func (cf *ConfigFlag) Set(value string) error {
	switch {
	case strings.HasPrefix(value, "file:"):
		cf.configSource = &fileConfigSource{path: strings.TrimPrefix(value, "file:")}
	case strings.HasPrefix(value, "env:"):
		cf.configSource = &envConfigSource{variable: strings.TrimPrefix(value, "env:")}
	case value == "stdin":
		cf.configSource = &stdinConfigSource{}
	default:
		return fmt.Errorf("invalid config source: %s", value)
	}

	return nil
}

func (cf *ConfigFlag) String() string {
	if cf.configSource == nil {
		return ""
	}
	return cf.configSource.String()
}

func (cf *ConfigFlag) Type() string {
	return "source"
}

// Config tunes directories, file naming and the udev commands. Every
// field has a production default, so running without --config works.
type Config struct {
	RulesDir       string   `yaml:"rulesDir"`
	DevDir         string   `yaml:"devDir"`
	Tag            string   `yaml:"tag"`
	Priority       int      `yaml:"priority"`
	NodeMarkers    []string `yaml:"nodeMarkers"`
	ReloadCommand  string   `yaml:"reloadCommand"`
	TriggerCommand string   `yaml:"triggerCommand"`
	OutputScan     bool     `yaml:"outputScan"`
	AutoApply      bool     `yaml:"autoApply"`
}

func defaultConfig() *Config {
	return &Config{
		RulesDir:       rules.DefaultDir,
		DevDir:         rules.DefaultDevDir,
		Tag:            rules.DefaultTag,
		Priority:       rules.DefaultPriority,
		NodeMarkers:    append([]string(nil), device.DefaultMarkers...),
		ReloadCommand:  system.DefaultReloadCommand,
		TriggerCommand: system.DefaultTriggerCommand,
		OutputScan:     true,
	}
}

func (c *Config) validate() error {
	var errs error
	if !filepath.IsAbs(c.RulesDir) {
		errs = errors.Join(errs, fmt.Errorf(".rulesDir: %q must be an absolute path", c.RulesDir))
	}
	if !filepath.IsAbs(c.DevDir) {
		errs = errors.Join(errs, fmt.Errorf(".devDir: %q must be an absolute path", c.DevDir))
	}
	if c.Tag == "" || strings.ContainsRune(c.Tag, os.PathSeparator) {
		errs = errors.Join(errs, fmt.Errorf(".tag: %q must be a non-empty file name fragment", c.Tag))
	}
	if c.Priority < 1 || c.Priority > 99 {
		errs = errors.Join(errs, fmt.Errorf(".priority: %d must be between 1 and 99", c.Priority))
	}
	if len(c.NodeMarkers) == 0 {
		errs = errors.Join(errs, errors.New(".nodeMarkers: must name at least one device node fragment"))
	}
	for i, marker := range c.NodeMarkers {
		if strings.TrimSpace(marker) == "" {
			errs = errors.Join(errs, fmt.Errorf(".nodeMarkers[%d]: must not be empty", i))
		}
	}
	if strings.TrimSpace(c.ReloadCommand) == "" {
		errs = errors.Join(errs, errors.New(".reloadCommand: must not be empty"))
	}
	if strings.TrimSpace(c.TriggerCommand) == "" {
		errs = errors.Join(errs, errors.New(".triggerCommand: must not be empty"))
	}

	return errs
}

// parseConfig decodes YAML over the defaults, so absent keys keep
// their production values and an empty document is a valid config.
func parseConfig(reader io.Reader) (*Config, error) {
	config := defaultConfig()
	decoder := yaml.NewDecoder(reader)
	if err := decoder.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadConfig(cf *ConfigFlag) (*Config, error) {
	if cf.configSource == nil {
		return defaultConfig(), nil
	}

	reader, closer, err := cf.open()
	if err != nil {
		return nil, fmt.Errorf("failed to open --config %q: %w", cf.String(), err)
	}
	defer closer()

	config, err := parseConfig(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse --config %q: %w", cf.String(), err)
	}

	return config, nil
}
