package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/bukget/pkg/config"
	"github.com/platinummonkey/bukget/pkg/ingest"
	"github.com/platinummonkey/bukget/pkg/observability"
	"github.com/platinummonkey/bukget/pkg/storage/postgres"
)

// Options holds the importer command line
type Options struct {
	ConfigPath string
	Watch      bool
	Workers    int
	Mirror     bool
	Timeout    time.Duration
	LogLevel   string
	Paths      []string
}

// bukget-import loads generator catalog files (JSON or YAML) into the catalog
// database. Each path is a file or a directory of files. With -watch the
// directories are imported again whenever a file in them changes.
func main() {
	opts := parseFlags()

	logger := setupLogger(opts.LogLevel)
	if len(opts.Paths) == 0 {
		logger.Fatal("Usage: bukget-import [flags] <file|dir>...")
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Received shutdown signal, stopping importer...")
		cancel()
	}()

	storeLogger := observability.NewLogger(observability.ParseLogLevel(opts.LogLevel), os.Stderr)
	store, err := postgres.Open(ctx, cfg.Storage, storeLogger, nil)
	if err != nil {
		logger.Fatalf("Failed to open catalog store: %v", err)
	}
	defer store.Close()

	importerOpts := []ingest.Option{
		ingest.WithLogger(logger),
		ingest.WithWorkers(opts.Workers),
		ingest.WithTimeout(opts.Timeout),
	}

	if cfg.Storage.CacheEnabled {
		redisClient, err := postgres.NewRedisClient(cfg.Storage)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, cached responses will expire on their own")
		} else {
			defer redisClient.Close()
			importerOpts = append(importerOpts,
				ingest.WithInvalidator(postgres.NewCachedRepository(store, redisClient, cfg.Storage, nil)))
		}
	}

	if opts.Mirror {
		if !cfg.Storage.MirrorEnabled() {
			logger.Fatal("-mirror requires storage.s3_bucket")
		}
		mirror, err := postgres.NewMirror(ctx, cfg.Storage)
		if err != nil {
			logger.Fatalf("Failed to connect to download mirror: %v", err)
		}
		if err := mirror.EnsureBucket(ctx); err != nil {
			logger.Fatalf("Failed to prepare mirror bucket: %v", err)
		}
		importerOpts = append(importerOpts, ingest.WithMirror(mirror, &http.Client{Timeout: opts.Timeout}))
	}

	importer := ingest.NewImporter(store, importerOpts...)

	var dirs []string
	for _, path := range opts.Paths {
		if err := importPath(ctx, importer, path, &dirs); err != nil {
			logger.Fatalf("Import of %s failed: %v", path, err)
		}
	}

	if !opts.Watch {
		return
	}
	if len(dirs) == 0 {
		logger.Fatal("-watch requires at least one directory")
	}

	done := make(chan error, len(dirs))
	for _, dir := range dirs {
		go func(dir string) { done <- importer.Watch(ctx, dir) }(dir)
	}
	for range dirs {
		if err := <-done; err != nil {
			logger.WithError(err).Error("Watcher stopped")
			cancel()
		}
	}
	logger.Info("Importer stopped")
}

func importPath(ctx context.Context, importer *ingest.Importer, path string, dirs *[]string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		*dirs = append(*dirs, path)
		_, err := importer.ImportDir(ctx, path)
		return err
	}
	_, err = importer.ImportFile(ctx, path)
	return err
}

func parseFlags() *Options {
	opts := &Options{}

	flag.StringVar(&opts.ConfigPath, "config", os.Getenv(config.EnvConfigPath), "Path to the YAML configuration file")
	flag.BoolVar(&opts.Watch, "watch", false, "Keep running and re-import changed files in directory arguments")
	flag.IntVar(&opts.Workers, "workers", 4, "Number of plugins stored concurrently")
	flag.BoolVar(&opts.Mirror, "mirror", false, "Copy the newest file of each plugin to the S3 download mirror")
	flag.DurationVar(&opts.Timeout, "timeout", 30*time.Second, "Timeout for each plugin write or file copy")
	flag.StringVar(&opts.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <file|dir>...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	opts.Paths = flag.Args()

	return opts
}

func setupLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	return logger
}
