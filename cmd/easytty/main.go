package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"k8s.io/klog/v2"

	"github.com/easytty/easytty/internal/app"
	"github.com/easytty/easytty/internal/device"
	"github.com/easytty/easytty/internal/rules"
	"github.com/easytty/easytty/internal/system"
)

// version is overridden at build time via -ldflags.
var version = "dev"

var (
	listMode    bool
	rulesMode   bool
	monitorMode bool
	configFlag  ConfigFlag
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "easytty",
		Short: "Stable names for USB serial devices",
		Long: `easytty pins USB serial adapters to stable /dev names by generating
udev rules from their hardware identity. Without flags it starts an
interactive session.`,
		Version:      version,
		RunE:         run,
		SilenceUsage: true,
	}

	rootCmd.Flags().BoolVarP(&listMode, "list", "l", false, "list connected USB serial devices and exit")
	rootCmd.Flags().BoolVarP(&rulesMode, "rules", "r", false, "list installed naming rules and exit")
	rootCmd.Flags().BoolVarP(&monitorMode, "monitor", "m", false, "stream hotplug events until interrupted")
	rootCmd.Flags().Var(&configFlag, "config", `configuration source (in form "file:<path>", "env:<ENV_VARIABLE>" or "stdin")`)
	rootCmd.MarkFlagsMutuallyExclusive("list", "rules", "monitor")

	klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(klogFlags)
	rootCmd.Flags().AddGoFlagSet(klogFlags)

	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	config, err := loadConfig(&configFlag)
	if err != nil {
		return err
	}

	scanner, err := device.NewScanner(config.NodeMarkers...)
	if err != nil {
		return fmt.Errorf("udev is unavailable: %w", err)
	}

	store := rules.NewStore(rules.Options{
		Dir:      config.RulesDir,
		DevDir:   config.DevDir,
		Tag:      config.Tag,
		Priority: config.Priority,
	}, system.NewFiles(system.Exec{}))

	admin, err := system.NewAdmin(system.Exec{}, config.ReloadCommand, config.TriggerCommand, config.OutputScan)
	if err != nil {
		return err
	}

	a := app.New(scanner, store, admin)
	out := cmd.OutOrStdout()

	switch {
	case listMode:
		return runList(a, out)
	case rulesMode:
		runRules(a, out)
		return nil
	case monitorMode:
		return runMonitor(scanner, out)
	default:
		return runInteractive(a, config)
	}
}

func runList(a *app.App, w io.Writer) error {
	devs, err := a.Scanner.Scan()
	if err != nil {
		return fmt.Errorf("device scan failed: %w", err)
	}
	app.RenderDevices(w, devs)
	return nil
}

func runRules(a *app.App, w io.Writer) {
	app.RenderRules(w, a.Store.Rules(), a.Store.DevDir(), a.Store.SymlinkActive)
}

func runMonitor(s *device.Scanner, w io.Writer) error {
	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}
	defer wg.Wait()
	defer cancel()

	events, err := s.Monitor(ctx, wg)
	if err != nil {
		return fmt.Errorf("udev monitor failed: %w", err)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	fmt.Fprintln(w, "Watching for USB serial hotplug events, Ctrl-C to stop.")
	for {
		select {
		case sig := <-sigs:
			klog.Infof("Received signal %q, shutting down", sig.String())
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			app.RenderEvent(w, ev)
		}
	}
}

func runInteractive(a *app.App, config *Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}
	defer wg.Wait()
	defer cancel()

	watcher, err := rules.NewWatcher(ctx, wg, config.RulesDir)
	if err != nil {
		klog.Warningf("Failed to watch %s, external changes need a manual refresh: %v", config.RulesDir, err)
		watcher = nil
	}

	sess := app.NewSession(a, app.NewTerminal(os.Stdin, os.Stdout), watcher, config.AutoApply)
	return sess.Run()
}
