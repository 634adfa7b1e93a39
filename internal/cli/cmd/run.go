package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/berrythewa/ezpaste-daemon/internal/config"
	"github.com/berrythewa/ezpaste-daemon/internal/daemon"
	"github.com/berrythewa/ezpaste-daemon/internal/ipc"
	"github.com/berrythewa/ezpaste-daemon/internal/notify"
	"github.com/berrythewa/ezpaste-daemon/internal/platform"
	"github.com/berrythewa/ezpaste-daemon/internal/screenshot"
	"github.com/berrythewa/ezpaste-daemon/internal/source"
	"github.com/berrythewa/ezpaste-daemon/internal/storage"
	"github.com/berrythewa/ezpaste-daemon/internal/types"
)

func newRunCmd() *cobra.Command {
	var (
		paused bool
		mode   string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the screenshot daemon in the foreground",
		Long: `Run the screenshot daemon in the foreground until interrupted.

Monitoring starts immediately unless --paused is given; use
'ezpaste ctl toggle' to switch it on and off while the daemon runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if mode != "" {
				cfg.Mode = mode
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			return runDaemon(cmd.Context(), cfg, paused)
		},
	}

	cmd.Flags().BoolVar(&paused, "paused", false, "start with monitoring paused")
	cmd.Flags().StringVar(&mode, "mode", "", "override the detection mode (poll or watch)")
	return cmd
}

// runDaemon assembles the engine from cfg and serves it until SIGINT or
// SIGTERM.
func runDaemon(parent context.Context, cfg *config.Config, paused bool) error {
	if parent == nil {
		parent = context.Background()
	}
	paths := cfg.SystemPaths
	if err := paths.EnsureDirs(); err != nil {
		return err
	}

	if pid, err := daemon.RunningPID(paths.PIDFile); err == nil {
		return fmt.Errorf("ezpaste is already running (PID %d)", pid)
	}
	if err := daemon.WritePIDFile(paths.PIDFile); err != nil {
		return err
	}
	defer daemon.RemovePIDFile(paths.PIDFile)

	logger.Info("Starting EzPaste daemon",
		zap.String("mode", cfg.Mode),
		zap.String("device_id", cfg.DeviceID),
		zap.String("data_dir", paths.DataDir),
		zap.Int("pid", os.Getpid()))

	cb := platform.NewClipboard(logger)
	defer cb.Close()

	kind, err := source.ParseKind(cfg.Mode)
	if err != nil {
		return err
	}
	dir := cfg.ActiveDir()
	src, err := source.New(kind, source.Options{
		Clipboard:    cb,
		Interval:     cfg.PollInterval(),
		Dir:          dir,
		NamePatterns: cfg.Screenshots.NamePatterns,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	db, err := storage.NewBoltStorage(storage.StorageConfig{
		DBPath:   paths.DBFile,
		DeviceID: cfg.DeviceID,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("Failed to initialize storage", zap.Error(err))
		return err
	}
	defer db.Close()

	engine, err := daemon.NewEngine(daemon.Options{
		Clipboard:    cb,
		Source:       src,
		Store:        screenshot.NewStore(dir, logger),
		Storage:      db,
		Notifier:     notifierFor(cfg),
		OnCopied:     copiedPrinter(),
		SettleDelay:  cfg.Settle(),
		VerifyDelays: cfg.VerifyDurations(),
		DeviceID:     cfg.DeviceID,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := make(chan error, 1)
	go func() { runErr <- engine.Run(ctx) }()

	handler := &daemon.Handler{Engine: engine, Storage: db}
	go func() {
		if err := ipc.ListenAndServe(ctx, paths.SocketFile, handler.Handle, logger); err != nil {
			logger.Warn("Control socket unavailable; ctl commands will not reach this daemon", zap.Error(err))
		}
	}()
	go forwardToggleSignals(ctx, engine)

	if !paused {
		if err := engine.Start(); err != nil {
			stop()
			<-runErr
			if errors.Is(err, types.ErrWatchSetup) {
				return fmt.Errorf("%w (check screenshots.watch_dir or run with --mode poll)", err)
			}
			return err
		}
	} else {
		logger.Info("Monitoring paused; run 'ezpaste ctl resume' to start")
	}

	logger.Info("Running until interrupted, press Ctrl+C to stop")
	<-ctx.Done()
	logger.Info("Shutdown signal received, stopping")
	return <-runErr
}

func notifierFor(cfg *config.Config) notify.Notifier {
	n := notify.Multi{notify.LogNotifier{Logger: logger}}
	if cfg.Notifications {
		n = append(n, notify.NewDesktopNotifier())
	}
	return n
}

// copiedPrinter echoes copied paths when attached to a terminal.
func copiedPrinter() func(string) {
	if quiet || !isatty.IsTerminal(os.Stdout.Fd()) {
		return nil
	}
	green := color.New(color.FgGreen).SprintFunc()
	return func(path string) {
		fmt.Printf("%s %s\n", green("copied"), path)
	}
}

// forwardToggleSignals toggles monitoring on each toggle signal.
func forwardToggleSignals(ctx context.Context, engine *daemon.Engine) {
	if len(daemon.ToggleSignals) == 0 {
		return
	}
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, daemon.ToggleSignals...)
	defer signal.Stop(sigs)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigs:
			active, err := engine.Toggle()
			if err != nil {
				logger.Warn("Failed to toggle monitoring", zap.String("signal", sig.String()), zap.Error(err))
				continue
			}
			logger.Info("Monitoring toggled by signal", zap.String("signal", sig.String()), zap.Bool("active", active))
		}
	}
}
