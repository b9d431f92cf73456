package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/yndnr/filekv/internal/core/service"
	"github.com/yndnr/filekv/internal/infra/buildinfo"
	"github.com/yndnr/filekv/internal/infra/confloader"
	"github.com/yndnr/filekv/internal/infra/shutdown"
	"github.com/yndnr/filekv/internal/server/config"
	"github.com/yndnr/filekv/internal/server/httpserver"
	"github.com/yndnr/filekv/internal/server/localserver"
	"github.com/yndnr/filekv/internal/storage/journal"
	"github.com/yndnr/filekv/internal/telemetry/logger"
	"github.com/yndnr/filekv/internal/telemetry/metric"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configFile  string
	logLevel    string
	socket      string
	showVersion bool
}

func parseFlags(args []string) (*options, error) {
	fs := flag.NewFlagSet("filekv-server", flag.ContinueOnError)
	opts := &options{}
	fs.StringVar(&opts.configFile, "config", "", "Path to configuration file")
	fs.StringVar(&opts.logLevel, "log-level", "", "Override log.level")
	fs.StringVar(&opts.socket, "socket", "", "Override server.local.path")
	fs.BoolVar(&opts.showVersion, "version", false, "Show version information")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return opts, nil
}

func run(args []string, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	if opts.showVersion {
		fmt.Fprintf(stdout, "filekv-server %s\n", buildinfo.String())
		return nil
	}

	loader := newLoader(opts)
	cfg, err := loadConfig(loader)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := initLogger(cfg, os.Stderr)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	slogLogger := log.Slog()

	log.Info("starting filekv-server",
		"version", buildinfo.Get().Version,
		"commit", buildinfo.Get().Commit,
		"config", opts.configFile)

	metrics := metric.Global()

	jrnl, err := initJournal(cfg, slogLogger, metrics)
	if err != nil {
		return fmt.Errorf("init journal: %w", err)
	}

	storeOpts := []service.Option{
		service.WithLogger(slogLogger.With("component", "datastore")),
		service.WithMetrics(metrics),
	}
	if jrnl != nil {
		storeOpts = append(storeOpts, service.WithJournal(jrnl))
	}
	store, err := service.NewDataStore(cfg.DataStoreConfig(), storeOpts...)
	if err != nil {
		if jrnl != nil {
			_ = jrnl.Close()
		}
		return fmt.Errorf("init datastore: %w", err)
	}

	ctx := context.Background()
	if _, err := store.Recover(ctx); err != nil {
		_ = store.Close(ctx)
		return fmt.Errorf("recover: %w", err)
	}

	sh := shutdown.NewHandler(shutdown.DefaultTimeout, slogLogger)
	// Hooks run in reverse: servers stop before the store closes.
	sh.OnShutdown("datastore", store.Close)

	local := localserver.New(cfg.Server.Local.Path, localserver.NewHandler(store),
		localserver.WithLogger(log.With("component", "localserver")))
	if err := local.Listen(); err != nil {
		_ = sh.Run()
		return err
	}
	sh.OnShutdown("localserver", local.Shutdown)
	go serve("localserver", local.Serve, localserver.ErrServerClosed, log, sh)

	if cfg.Server.HTTP.Addr != "" {
		httpSrv := httpserver.New(cfg.Server.HTTP.Addr, httpserver.NewRouter(&httpserver.RouterConfig{
			Store:   store,
			Metrics: metrics.Handler(),
			Logger:  slogLogger.With("component", "httpserver"),
		}))
		if err := httpSrv.Listen(); err != nil {
			_ = sh.Run()
			return fmt.Errorf("http listen: %w", err)
		}
		log.Info("http server listening", "addr", httpSrv.Addr())
		sh.OnShutdown("httpserver", httpSrv.Shutdown)
		go serve("httpserver", httpSrv.Serve, http.ErrServerClosed, log, sh)
	}

	if opts.configFile != "" {
		stop, err := watchConfig(loader, cfg, log)
		if err != nil {
			log.Warn("config watcher disabled", "error", err)
		} else {
			sh.OnShutdown("config-watcher", func(context.Context) error { return stop() })
		}
	}

	log.Info("server started", "socket", local.Path())
	if err := sh.Wait(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}
	log.Info("server stopped gracefully")
	return nil
}

// serve runs a server loop; an unexpected exit triggers shutdown.
func serve(name string, fn func() error, closed error, log logger.Logger, sh *shutdown.Handler) {
	if err := fn(); err != nil && !errors.Is(err, closed) {
		log.Error("server failed", "server", name, "error", err)
		sh.Trigger()
	}
}

func newLoader(opts *options) *confloader.Loader {
	overrides := map[string]any{}
	if opts.logLevel != "" {
		overrides["log.level"] = opts.logLevel
	}
	if opts.socket != "" {
		overrides["server.local.path"] = opts.socket
	}

	loaderOpts := []confloader.Option{confloader.WithOverrides(overrides)}
	if opts.configFile != "" {
		loaderOpts = append(loaderOpts, confloader.WithConfigFile(opts.configFile))
	}
	return confloader.NewLoader(loaderOpts...)
}

// loadConfig loads, normalizes and validates the configuration.
func loadConfig(loader *confloader.Loader) (*config.ServerConfig, error) {
	cfg := config.Default()
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}
	cfg = config.Sanitize(cfg)
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func initLogger(cfg *config.ServerConfig, out io.Writer) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: out,
	})
	if err != nil {
		return nil, err
	}
	logger.SetDefault(log)
	return log, nil
}

// initJournal opens the configured journal. It returns nil when the engine
// is "none".
func initJournal(cfg *config.ServerConfig, log *slog.Logger, metrics *metric.Registry) (*journal.Journal, error) {
	j, err := journal.Open(cfg.JournalConfig(), log.With("component", "journal"))
	if err != nil || j == nil {
		return nil, err
	}
	if be, ok := j.Engine().(*journal.BadgerEngine); ok {
		be.RegisterMetrics(metrics.Registerer())
	}
	log.Info("journal opened", "engine", cfg.Journal.Engine, "dir", cfg.Journal.Dir)
	return j, nil
}

// watchConfig re-applies log.level whenever the config file changes.
// Other settings need a restart.
func watchConfig(loader *confloader.Loader, current *config.ServerConfig, log logger.Logger) (func() error, error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log.Slog().With("component", "config-watcher")))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(loader.FilePath()); err != nil {
		_ = w.Stop()
		return nil, err
	}

	active := *current
	w.OnChange(func(path string) {
		next, err := loadConfig(loader)
		if err != nil {
			log.Warn("config reload rejected", "path", path, "error", err)
			return
		}
		if from := logger.Level(); next.Log.Level != from {
			if err := logger.SetLevel(next.Log.Level); err != nil {
				log.Warn("log level not changed", "error", err)
			} else {
				log.Info("log level changed", "from", from, "to", logger.Level())
			}
		}
		prev := active
		prev.Log.Level = next.Log.Level
		if *next != prev {
			log.Warn("config changed; restart to apply settings other than log.level", "path", path)
		}
		active = *next
	})
	w.StartAsync()
	return w.Stop, nil
}
