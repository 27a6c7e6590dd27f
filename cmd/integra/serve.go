package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rendis/integra/internal/scheduler"
	"github.com/rendis/integra/pkg/mcp"
)

const shutdownTimeout = 10 * time.Second

func runServe(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fs := newFlagSet("serve", os.Stderr)
	httpFlag := fs.Bool("http", cfg.HTTP, "serve the HTTP API")
	listenAddr := fs.String("listen-addr", cfg.ListenAddr, "HTTP listen address")
	mcpFlag := fs.Bool("mcp", true, "serve MCP on stdin/stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.HTTP = *httpFlag
	cfg.ListenAddr = *listenAddr
	if !cfg.HTTP && !*mcpFlag {
		return fmt.Errorf("nothing to serve: enable -http or -mcp")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.store != nil {
		retention, _ := cfg.retention()
		if retention > 0 {
			sched, err := scheduler.NewScheduler(a.store, scheduler.Config{
				Schedule:  cfg.PruneSchedule,
				Retention: retention,
			}, a.metrics, a.logger)
			if err != nil {
				return err
			}
			if err := sched.Start(ctx); err != nil {
				return err
			}
			defer sched.Stop()
		}
	}

	if err := writePIDFile(); err != nil {
		a.logger.Warn("cannot write pid file", "error", err)
	} else {
		defer os.Remove(pidPath())
	}

	var (
		httpSrv *http.Server
		swapper *handlerSwapper
		httpErr = make(chan error, 1)
	)
	if cfg.HTTP {
		swapper = newHandlerSwapper(a.apiHandler(cfg.Metrics))
		httpSrv = &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           swapper,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			a.logger.Info("http api listening", "addr", cfg.ListenAddr, "metrics", cfg.Metrics)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				httpErr <- err
			}
		}()
	}

	go watchReload(ctx, a, cfg, swapper)

	serveErr := make(chan error, 1)
	if *mcpFlag {
		srv := mcp.NewIntegraServer(mcp.IntegraServerDeps{
			Service: a.svc,
			Version: buildVersion(),
			Logger:  a.logger,
		})
		go func() {
			a.logger.Info("mcp server listening on stdio")
			serveErr <- srv.Serve(ctx)
		}()
	}

	select {
	case <-ctx.Done():
		err = nil
	case err = <-httpErr:
	case err = <-serveErr:
		// stdin closed; keep the HTTP API up until signalled.
		if err == nil && httpSrv != nil {
			<-ctx.Done()
		}
	}

	if httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := httpSrv.Shutdown(shutdownCtx); shutdownErr != nil {
			a.logger.Warn("http shutdown", "error", shutdownErr)
		}
	}
	a.logger.Info("server stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// watchReload applies configuration changes on SIGHUP until ctx is done.
func watchReload(ctx context.Context, a *app, cfg Config, swapper *handlerSwapper) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			a.logger.Info("reloading configuration")
			cfg = a.reload(cfg, swapper)
		}
	}
}

func writePIDFile() error {
	if err := os.MkdirAll(integraDir(), 0o700); err != nil {
		return err
	}
	return os.WriteFile(pidPath(), []byte(strconv.Itoa(os.Getpid())), 0o644)
}

// runReload sends SIGHUP to a running integra server (via pidfile).
func runReload() error {
	data, err := os.ReadFile(pidPath())
	if err != nil {
		return fmt.Errorf("no running server: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("corrupt pid file: %w", err)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	// Check if process is alive.
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return fmt.Errorf("server (PID %d) is not running: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGHUP); err != nil {
		return err
	}
	fmt.Printf("Signaled running server (PID %d) to reload configuration\n", pid)
	return nil
}
