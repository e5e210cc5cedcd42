package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"gitlab.com/tinyland/lab/pulsebar/pkg/bar"
	"gitlab.com/tinyland/lab/pulsebar/pkg/bridge"
	"gitlab.com/tinyland/lab/pulsebar/pkg/config"
	"gitlab.com/tinyland/lab/pulsebar/pkg/dynamic"
	"gitlab.com/tinyland/lab/pulsebar/pkg/ipc"
	"gitlab.com/tinyland/lab/pulsebar/pkg/ironvar"
	"gitlab.com/tinyland/lab/pulsebar/pkg/logging"
	"gitlab.com/tinyland/lab/pulsebar/pkg/modules"
	"gitlab.com/tinyland/lab/pulsebar/pkg/popup"
	"gitlab.com/tinyland/lab/pulsebar/pkg/script"
	"gitlab.com/tinyland/lab/pulsebar/pkg/sysinfo"
	"gitlab.com/tinyland/lab/pulsebar/pkg/theme"
	"gitlab.com/tinyland/lab/pulsebar/pkg/watcher"
)

func newRunCmd() *cobra.Command {
	var monitor string
	var headless bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "start the bar",
		Long: "Starts the bar on the selected surface: an interactive terminal bar\n" +
			"when stdout is a TTY, the i3bar/swaybar JSON protocol otherwise.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBar(cmd.Context(), monitor, headless)
		},
	}
	cmd.Flags().StringVar(&monitor, "monitor", "", "output this bar instance sits on")
	cmd.Flags().BoolVar(&headless, "headless", false, "force the swaybar JSON surface")
	return cmd
}

func runBar(parent context.Context, monitor string, forceHeadless bool) error {
	logger, closeLogs, err := logging.Setup(logging.FromEnv())
	if err != nil {
		return err
	}
	defer closeLogs()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Shared state lives outside the reload loop so variables survive a
	// config reload.
	vars := ironvar.NewStore(logger)
	runner := script.NewRunner(logger)
	renderer := dynamic.NewRenderer(runner, vars, logger)

	feed := sysinfo.NewFeed(sysinfo.New(sysinfo.DefaultConfig()), vars, logger)
	go feed.Run(ctx)

	deps := modules.Deps{
		Logger:   logger,
		Vars:     vars,
		Runner:   runner,
		Renderer: renderer,
	}

	for {
		again, err := runOnce(ctx, logger, deps, monitor, forceHeadless)
		if err != nil || !again {
			return err
		}
		logger.Info("restarting with new configuration")
	}
}

// runOnce builds and runs one bar from the current config file. It
// reports whether the caller should build again (config reload) once
// the surface returns.
func runOnce(ctx context.Context, logger *slog.Logger, deps modules.Deps, monitor string, forceHeadless bool) (bool, error) {
	root, err := loadConfig()
	if err != nil {
		return false, err
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	var reloading atomic.Bool
	reload := func() error {
		// Refuse to tear down a working bar for a config that will not
		// load back.
		if _, err := loadConfig(); err != nil {
			return err
		}
		reloading.Store(true)
		cancelRun()
		return nil
	}

	b, err := bar.New(bar.Options{
		Config:   root.ForMonitor(monitor),
		Monitor:  monitor,
		Registry: modules.Default(),
		Deps:     deps,
		Bridge:   bridge.New(0, logger),
		Popups:   popup.NewManager(logger),
		Theme:    activeTheme(root.Theme, logger),
	})
	if err != nil {
		return false, err
	}
	b.Start(runCtx)
	defer b.Stop()

	srv := ipc.NewServer(sockPath, bar.NewMux(bar.MuxOptions{
		Bar:    b,
		Vars:   deps.Vars,
		Reload: reload,
	}), logger)
	if err := srv.Start(); err != nil {
		logger.Warn("control socket unavailable", "path", sockPath, "error", err)
	} else {
		defer srv.Stop()
	}

	watchFiles(runCtx, logger, b, reload)

	if !forceHeadless && isatty.IsTerminal(os.Stdout.Fd()) {
		err = bar.RunTUI(runCtx, b)
	} else {
		err = bar.NewHeadless(b, os.Stdin, os.Stdout).Run(runCtx)
	}
	if err != nil {
		return false, err
	}
	return reloading.Load() && ctx.Err() == nil, nil
}

func loadConfig() (*config.Root, error) {
	if cfgPath != "" {
		return config.LoadFromFile(cfgPath)
	}
	return config.Load()
}

// activeTheme prefers the user's stylesheet when one exists, falling
// back to the configured built-in theme.
func activeTheme(configured string, logger *slog.Logger) theme.Theme {
	path := config.StylePath()
	if _, err := os.Stat(path); err == nil {
		t, err := theme.LoadFile(path)
		if err == nil {
			return t
		}
		logger.Warn("stylesheet ignored", "path", path, "error", err)
	}
	return theme.GetOrDefault(configured)
}

// watchFiles live-reloads the stylesheet in place and rebuilds the bar
// when the config file changes.
func watchFiles(ctx context.Context, logger *slog.Logger, b *bar.Bar, reload func() error) {
	w, err := watcher.New(logger)
	if err != nil {
		logger.Warn("file watching disabled", "error", err)
		return
	}

	stylePath := config.StylePath()
	if err := w.Add(stylePath); err != nil {
		logger.Debug("not watching stylesheet", "path", stylePath, "error", err)
	}
	confPath := cfgPath
	if confPath == "" {
		confPath, _ = config.FindConfig()
	}
	if confPath != "" {
		if err := w.Add(confPath); err != nil {
			logger.Debug("not watching config", "path", confPath, "error", err)
		}
	}

	go w.Run(ctx)
	go func() {
		for {
			var path string
			select {
			case <-ctx.Done():
				return
			case path = <-w.Events():
			}
			if path == stylePath {
				t, err := theme.LoadFile(path)
				if err != nil {
					logger.Warn("stylesheet change ignored", "path", path, "error", err)
					continue
				}
				logger.Info("stylesheet reloaded", "theme", t.Name)
				b.SetTheme(t)
				continue
			}
			logger.Info("config changed", "path", path)
			if err := reload(); err != nil {
				logger.Warn("keeping old configuration", "error", err)
			}
		}
	}()
}
