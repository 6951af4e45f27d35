package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/brettbedarf/webdrive"
	"github.com/brettbedarf/webdrive/adapters"
	"github.com/brettbedarf/webdrive/config"
	"github.com/brettbedarf/webdrive/filesystem"
	"github.com/brettbedarf/webdrive/internal/util"
	"github.com/brettbedarf/webdrive/requests"
	"github.com/brettbedarf/webdrive/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"
)

func main() {
	var (
		configPath  string
		user        int64
		verbose     int
		umount      bool
		bucket      string
		metricsAddr string
	)
	flag.StringVarP(&configPath, "config", "c", "", "Path to a YAML or JSON config file")
	flag.Int64VarP(&user, "user", "u", 0, "Id of the user whose drive is mounted")
	flag.IntVarP(&verbose, "verbose", "v", config.InfoVerbose, "Log verbosity level between 1 (error) and 5 (trace)")
	flag.BoolVar(&umount, "umount", false,
		"Unmount the fs first if needed before mounting again. Useful for debuggers that don't exit properly.")
	flag.StringVar(&bucket, "bucket", "", "Bucket holding the drives; overrides the config file")
	flag.StringVar(&metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address, e.g. :9100")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] MOUNTPOINT\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	// Config file first, flags win
	override := &config.ConfigOverride{}
	if configPath != "" {
		fileOverride, err := config.LoadConfigOverrideFile(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config %s: %v\n", configPath, err)
			os.Exit(2)
		}
		override = fileOverride
	}
	if flag.CommandLine.Changed("verbose") || override.LogLvl == nil {
		override.LogLvl = &verbose
	}
	if bucket != "" {
		override.Bucket = &bucket
	}
	if metricsAddr != "" {
		override.MetricsAddr = &metricsAddr
	}
	cfg := config.NewConfig(override)

	util.InitializeLogger(cfg.LogLvl, cfg.LogJSON)
	logger := util.GetLogger("main")

	mnt := flag.Arg(0)
	logger.Info().
		Int64("user", user).
		Str("config", configPath).
		Str("bucket", cfg.Bucket).
		Str("mnt", mnt).
		Msg("WebDrive initializing")

	if mnt == "" {
		logger.Fatal().Msg("Mount point not specified; it must be passed as the argument")
	}
	owner := webdrive.UserID(user)
	if !owner.Valid() {
		logger.Fatal().Int64("user", user).Msg("A positive --user is required")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}
	// Try unmount if requested
	if umount {
		cmd := exec.Command("fusermount", "-u", mnt)
		// we ignore error here if not already mounted
		cmd.Run() // nolint:errcheck
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, cfg, owner, mnt); err != nil {
		dto := requests.NewErrorDTO(err)
		logger.Fatal().Err(err).
			Str("kind", dto.Kind).
			Str("path", dto.Path).
			Strs("failed", dto.Failed).
			Msg("WebDrive stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, user webdrive.UserID, mnt string) error {
	logger := util.GetLogger("main.run")

	adapters.RegisterBuiltins()
	raw, err := cfg.StorageJSON()
	if err != nil {
		return fmt.Errorf("encode storage config: %w", err)
	}
	backend, err := adapters.NewStore(ctx, raw)
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}
	logger.Debug().
		Interface("type", cfg.Storage["type"]).
		Stringer("part_size", cfg.UploadPartSize).
		Msg("Object store ready")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	store := adapters.NewMetricsStore(backend, reg)

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Str("addr", cfg.MetricsAddr).Msg("Metrics server failed")
			}
		}()
		defer srv.Close()
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("Serving metrics")
	}

	drive, err := filesystem.NewFS(cfg, store)
	if err != nil {
		return err
	}
	if err := drive.Init(ctx); err != nil {
		return fmt.Errorf("ensure bucket %s: %w", cfg.Bucket, err)
	}
	if err := drive.CreateUserNamespace(ctx, user); err != nil {
		return fmt.Errorf("create namespace of user %s: %w", user, err)
	}

	wd := server.New(cfg, drive, user)
	if err := wd.Serve(mnt); err != nil {
		return fmt.Errorf("mount %s: %w", mnt, err)
	}
	logger.Info().Str("mountpoint", mnt).Stringer("user", user).Msg("Drive mounted successfully")

	unmounted := make(chan struct{})
	go func() {
		wd.Wait()
		close(unmounted)
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("Received signal, unmounting drive")
	case <-unmounted:
		logger.Info().Msg("Drive was unmounted externally")
		return nil
	}

	if err := wd.Unmount(); err != nil {
		return fmt.Errorf("unmount %s: %w", mnt, err)
	}
	logger.Info().Msg("Drive unmounted successfully")
	return nil
}
