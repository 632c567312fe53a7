// Command sysprintd serves loaded project archives over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/sysprint/pkg/daemon"
	"github.com/jamesainslie/sysprint/pkg/daemon/store"
	"github.com/jamesainslie/sysprint/pkg/daemon/watcher"
	"github.com/jamesainslie/sysprint/pkg/sysprint/config"
	"github.com/jamesainslie/sysprint/pkg/sysprint/logging"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgFile string
	addr    string
)

var rootCmd = &cobra.Command{
	Use:   "sysprintd",
	Short: "Serve sysprint project archives over HTTP",
	Long: `sysprintd keeps uploaded project archives loaded and serves comparisons,
file diffs, exports and synthesized configurations on a local HTTP API.

Loaded projects are recorded in an index and restored on restart. Projects
whose archive file disappears are unloaded automatically.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ~/.config/sysprint/config.yaml)")
	rootCmd.Flags().StringVar(&addr, "addr", "", "listen address (default from server.addr)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("addr") {
		cfg.Server.Addr = addr
	}

	lc := cfg.LoggingConfig()
	if lc.Path == "" {
		lc.Path = logging.DefaultLogPath("sysprintd")
	}
	if err := logging.Init(lc); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}
	defer func() { _ = logging.Close() }()
	logger := logging.Get("daemon")

	pidPath := cfg.PIDPath()
	statusPath := daemon.StatusPath(filepath.Dir(pidPath))

	if err := daemon.AcquirePIDFile(pidPath); err != nil {
		return err
	}
	defer func() {
		if err := daemon.RemovePIDFile(pidPath); err != nil {
			logger.Warn("failed to remove PID file", "error", err)
		}
		_ = daemon.RemoveStatus(statusPath)
	}()

	srv, w, err := build(cfg)
	if err != nil {
		_ = daemon.WriteStatusError(statusPath, err)
		logger.Error("startup failed", "error", err)
		return err
	}
	defer func() { _ = w.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go w.Run(ctx, func(removed []string) {
		logger.Info("unloaded projects with deleted archives", "count", len(removed))
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve() }()

	if err := daemon.WriteStatusReady(statusPath, srv.Addr()); err != nil {
		logger.Warn("failed to write status file", "error", err)
	}
	logger.Info("sysprintd listening", "addr", srv.Addr(), "pid", os.Getpid())

	select {
	case err := <-errCh:
		if err != nil {
			_ = daemon.WriteStatusError(statusPath, err)
			logger.Error("server error", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

// build restores the project store and wires the service, watcher and
// listener together.
func build(cfg *config.Config) (*daemon.Server, *watcher.Watcher, error) {
	logger := logging.Get("daemon")

	uploadDir := cfg.UploadDir()
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating upload directory: %w", err)
	}

	s := store.New(cfg.IndexPath())
	if _, err := s.Restore(); err != nil {
		logger.Warn("project index unreadable, starting empty", "path", cfg.IndexPath(), "error", err)
	}

	w, err := watcher.New(s)
	if err != nil {
		return nil, nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := w.Watch(uploadDir); err != nil {
		logger.Warn("cannot watch upload directory", "path", uploadDir, "error", err)
	}
	for _, sum := range s.List() {
		p, err := s.Get(sum.ID)
		if err != nil {
			continue
		}
		if err := w.WatchFile(p.ArchivePath); err != nil {
			logger.Warn("cannot watch archive", "id", p.ID, "path", p.ArchivePath, "error", err)
		}
	}

	svc := daemon.NewService(s, uploadDir, cfg.MaxUploadSize())
	svc.SetWatcher(w)

	srv, err := daemon.NewServer(daemon.Config{Addr: cfg.Server.Addr}, svc)
	if err != nil {
		_ = w.Close()
		return nil, nil, err
	}
	return srv, w, nil
}
