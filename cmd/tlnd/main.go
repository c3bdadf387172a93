package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/modoterra/tln/internal/buildinfo"
	"github.com/modoterra/tln/pkg/config"
	"github.com/modoterra/tln/pkg/console"
	"github.com/modoterra/tln/pkg/core"
	"github.com/modoterra/tln/pkg/daemon"
	"github.com/modoterra/tln/pkg/host"
	"github.com/modoterra/tln/pkg/outbound"
	"github.com/modoterra/tln/pkg/plugins/logs"
	"github.com/modoterra/tln/pkg/plugins/relay"
	"github.com/modoterra/tln/pkg/secret"
	"github.com/modoterra/tln/pkg/sources"
	"github.com/modoterra/tln/pkg/sources/filetail"
	"github.com/modoterra/tln/pkg/sources/journald"
)

type options struct {
	version    bool
	configPath string
}

func parseArgs(args []string) (options, error) {
	opts := options{configPath: config.DefaultPath}
	for i := 0; i < len(args); i++ {
		switch a := args[i]; a {
		case "version", "--version":
			opts.version = true
		case "--config", "-c":
			if i+1 >= len(args) {
				return opts, fmt.Errorf("%s requires a path", a)
			}
			i++
			opts.configPath = args[i]
		default:
			return opts, fmt.Errorf("unknown argument %q", a)
		}
	}
	return opts, nil
}

func main() {
	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "tlnd: %v\nusage: tlnd [--config path] | tlnd version\n", err)
		os.Exit(2)
	}
	if opts.version {
		fmt.Printf("tlnd %s (%s) built %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.Date)
		return
	}

	cfg, err := config.LoadOrDefault(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tlnd: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))

	if errs := config.Validate(cfg); len(errs) > 0 {
		for _, e := range errs {
			logger.Error("config validation", "err", e)
		}
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	d, box, err := setup(cfg, logger)
	if err != nil {
		logger.Error("setup failed", "err", err)
		os.Exit(1)
	}
	defer d.Shutdown()
	defer d.Host().UnloadAll()

	go daemon.NewForwarder(d.Host(), logger).Run(ctx)
	go daemon.NewReportLoop(d.Host(), cfg.ReportInterval, logger).Run(ctx)
	startSources(ctx, cfg, d.Host(), box, logger)

	logger.Info("starting tlnd", "version", buildinfo.Version, "name", cfg.Name, "socket", cfg.Socket)
	if err := d.Run(ctx); err != nil {
		logger.Error("daemon error", "err", err)
		os.Exit(1)
	}
}

// setup builds the host with the logs and relay plugins loaded and wraps it in a
// daemon. The returned box is nil when no key is configured.
func setup(cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, *secret.Box, error) {
	tx := outbound.New(cfg.QueueSize, cfg.SendTimeout)
	h := host.New(tx, logger)
	d := daemon.New(cfg.Socket, h, cfg.Name, logger)
	printer := console.New(os.Stdout, cfg.Journal)

	var (
		dec core.Decrypter
		box *secret.Box
	)
	key, err := cfg.ResolveKey()
	switch {
	case err == nil:
		if box, err = secret.NewBox(key); err != nil {
			return nil, nil, err
		}
		dec = box
	case cfg.Key == "" && cfg.KeyFile == "":
		logger.Warn("no decryption key configured; add commands will fail")
	default:
		return nil, nil, fmt.Errorf("load key: %w", err)
	}

	h.Register(logs.Module, logs.Factory(logs.Options{
		Capacity:    cfg.Capacity,
		Decrypter:   dec,
		Names:       cfg,
		RelayPlugin: cfg.RelayPlugin,
		Logger:      logger,
		Console:     printer,
	}))
	h.Register(cfg.RelayPlugin, relay.Factory(cfg.RelayPlugin, d, logger, printer))

	if err := h.LoadAll(); err != nil {
		return nil, nil, fmt.Errorf("load plugins: %w", err)
	}
	return d, box, nil
}

// startSources follows every configured local log stream until ctx is done.
func startSources(ctx context.Context, cfg *config.Config, h *host.Host, box *secret.Box, logger *slog.Logger) {
	if len(cfg.Sources) == 0 {
		return
	}
	if box == nil {
		logger.Warn("sources configured without a key; not starting them", "sources", len(cfg.Sources))
		return
	}
	f, err := sources.NewFeeder(h, box, logger)
	if err != nil {
		logger.Error("sources disabled", "err", err)
		return
	}
	for _, sc := range cfg.Sources {
		src := buildSource(sc, logger)
		if src == nil {
			continue
		}
		go func() {
			if err := f.Run(ctx, src); err != nil {
				logger.Error("source failed", "source", src.Name(), "err", err)
			}
		}()
	}
}

func buildSource(sc config.Source, logger *slog.Logger) sources.Source {
	switch sc.Kind {
	case config.SourceFile:
		return filetail.New(sc.Path, sc.FromStart, logger)
	case config.SourceJournal:
		return journald.New(sc.Unit, logger)
	}
	return nil
}
