package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"telegram-mood-diary/internal/config"
	"telegram-mood-diary/internal/handlers"
	"telegram-mood-diary/internal/logger"
	"telegram-mood-diary/internal/metrics"
	"telegram-mood-diary/internal/scheduler"
	"telegram-mood-diary/internal/storage"
	"telegram-mood-diary/internal/telegram"
	"telegram-mood-diary/internal/texts"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("telegram-mood-diary", flag.ContinueOnError)
	importMoods := fs.String("import-moods", "", "load a mood log snapshot (JSON) before starting")
	importNotifications := fs.String("import-notifications", "", "load a notification registry snapshot (JSON) before starting")
	exportDir := fs.String("export-dir", "", "write moods.json and notifications.json to this directory and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync()

	db, err := storage.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	if *importMoods != "" {
		if err := importFile(ctx, *importMoods, db.ImportMoods, log); err != nil {
			return fmt.Errorf("import moods: %w", err)
		}
	}
	if *importNotifications != "" {
		if err := importFile(ctx, *importNotifications, db.ImportNotifications, log); err != nil {
			return fmt.Errorf("import notifications: %w", err)
		}
	}
	if *exportDir != "" {
		if err := export(ctx, db, *exportDir); err != nil {
			return fmt.Errorf("export snapshots: %w", err)
		}
		log.Info("snapshots exported", "dir", *exportDir)
		return nil
	}

	tx, err := texts.Load(cfg.TextsPath)
	if err != nil {
		return fmt.Errorf("load texts: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewCollector(reg)

	bot, err := telegram.New(cfg.TelegramToken, cfg.DebugAPI, tx, cfg.SendRate, log)
	if err != nil {
		return err
	}

	h := handlers.NewHandler(bot, db, tx, loc, log, m)
	dispatcher := handlers.NewDispatcher(h.HandleMessage, log)

	reminders := scheduler.New(db, bot, scheduler.Config{
		Period:   cfg.ReminderTick,
		Location: loc,
		Reminder: tx.Messages.Reminder,
	}, log, m)
	if err := reminders.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := reminders.Stop(); err != nil {
			log.Error("stop scheduler", "error", err)
		}
		log.Info("bot stopped")
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := dispatcher.Run(gctx, bot.Updates(gctx))
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if cfg.MetricsAddr != "" {
		g.Go(func() error { return serveMetrics(gctx, cfg.MetricsAddr, reg, log) })
	}

	log.Info("bot started", "db", cfg.DBPath, "timezone", loc.String())
	return g.Wait()
}

func importFile(ctx context.Context, path string, load func(context.Context, io.Reader) (int, error), log *logger.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := load(ctx, f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	log.Info("snapshot imported", "path", path, "records", n)
	return nil
}

func export(ctx context.Context, db *storage.DB, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	files := map[string]func(context.Context, io.Writer) error{
		"moods.json":         db.ExportMoods,
		"notifications.json": db.ExportNotifications,
	}
	for name, write := range files {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if err := write(ctx, f); err != nil {
			f.Close()
			return fmt.Errorf("%s: %w", name, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, log *logger.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("metrics server starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
