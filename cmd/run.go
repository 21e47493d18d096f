package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcpubsub "cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crickstats/cricsync/internal/api"
	"github.com/crickstats/cricsync/internal/archive"
	archivegcs "github.com/crickstats/cricsync/internal/archive/gcs"
	archivelocal "github.com/crickstats/cricsync/internal/archive/local"
	"github.com/crickstats/cricsync/internal/browser"
	"github.com/crickstats/cricsync/internal/clock/system"
	"github.com/crickstats/cricsync/internal/config"
	"github.com/crickstats/cricsync/internal/engine"
	eventspubsub "github.com/crickstats/cricsync/internal/events/pubsub"
	"github.com/crickstats/cricsync/internal/extract"
	hashsha "github.com/crickstats/cricsync/internal/hash/sha256"
	"github.com/crickstats/cricsync/internal/listing"
	"github.com/crickstats/cricsync/internal/logging"
	"github.com/crickstats/cricsync/internal/navigator"
	"github.com/crickstats/cricsync/internal/retry"
	"github.com/crickstats/cricsync/internal/scrape"
	"github.com/crickstats/cricsync/internal/storage/memory"
	"github.com/crickstats/cricsync/internal/storage/postgres"
	"github.com/crickstats/cricsync/internal/syncer"
)

// newRunCmd creates the 'run' subcommand: the long-running scrape engine
// plus the read API.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the scrape engine and read API",
		RunE:  runService,
	}
}

func runService(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	launch, cleanupBrowser := browser.NewChromeLauncher(browser.ChromeConfig{
		UserAgent:  cfg.Browser.UserAgent,
		NavTimeout: cfg.Browser.NavTimeout(),
	})
	defer cleanupBrowser()

	pool, err := browser.NewPool(browser.PoolConfig{
		Capacity:       cfg.Browser.PoolSize,
		AcquireTimeout: cfg.Browser.AcquireTimeout(),
	}, launch, logger)
	if err != nil {
		return fmt.Errorf("init session pool: %w", err)
	}
	defer pool.Close()

	clk := system.New()

	publisher, closePublisher, err := buildPublisher(ctx, cfg)
	if err != nil {
		return err
	}
	defer closePublisher()

	archiver, err := buildArchiver(ctx, cfg, clk, logger)
	if err != nil {
		return err
	}

	nav := navigator.New(navigator.Config{
		NavTimeout:     cfg.Browser.NavTimeout(),
		SectionTimeout: cfg.Browser.SectionTimeout(),
	}, logger)
	extractor := extract.New(hashsha.New())
	writer := syncer.New(store, publisher, cfg.Events.Topic, logger)

	coord := retry.New(pool, nav, extractor, writer, archiver, clk, retry.Config{
		MaxRetries:     cfg.Retry.MaxRetries,
		BackoffBase:    cfg.Retry.BackoffBase(),
		BackoffCeiling: cfg.Retry.BackoffCeiling(),
		AttemptTimeout: cfg.Browser.AttemptTimeout(),
	}, logger)

	lister := listing.New(listing.Config{
		URL:       cfg.Listing.URL,
		UserAgent: cfg.Browser.UserAgent,
	}, logger)

	eng := engine.New(cfg, store, coord, lister, clk, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewServer(store, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("read API listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("read API failed", zap.Error(err))
			stop()
		}
	}()

	logger.Info("engine starting",
		zap.Int("pool_size", cfg.Browser.PoolSize),
		zap.String("listing_url", cfg.Listing.URL),
	)
	runErr := eng.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("read API shutdown failed", zap.Error(err))
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("run engine: %w", runErr)
	}
	logger.Info("engine stopped")
	return nil
}

// buildStore selects PostgreSQL when a DSN is configured, otherwise the
// in-memory store for local development.
func buildStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (scrape.Store, func(), error) {
	if cfg.DB.DSN == "" {
		logger.Warn("no db.dsn configured, using in-memory store")
		return memory.New(), func() {}, nil
	}
	store, err := postgres.New(ctx, postgres.Config{
		DSN:      cfg.DB.DSN,
		MaxConns: cfg.DB.MaxConns,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init postgres store: %w", err)
	}
	return store, store.Close, nil
}

func buildPublisher(ctx context.Context, cfg config.Config) (scrape.Publisher, func(), error) {
	if !cfg.Events.Enabled {
		return nil, func() {}, nil
	}
	client, err := gcpubsub.NewClient(ctx, cfg.Events.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("init pubsub client: %w", err)
	}
	publisher, err := eventspubsub.New(client)
	if err != nil {
		return nil, nil, err
	}
	closeAll := func() {
		publisher.Close()
		_ = client.Close()
	}
	return publisher, closeAll, nil
}

func buildArchiver(ctx context.Context, cfg config.Config, clk scrape.Clock, logger *zap.Logger) (retry.Archiver, error) {
	if !cfg.Archive.Enabled {
		return nil, nil
	}
	var (
		blobs scrape.BlobStore
		err   error
	)
	switch cfg.Archive.Provider {
	case "gcs":
		var client *gcstorage.Client
		client, err = gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		blobs, err = archivegcs.New(client, archivegcs.Config{Bucket: cfg.Archive.Bucket})
	default:
		blobs, err = archivelocal.New(archivelocal.Config{BaseDir: cfg.Archive.Dir})
	}
	if err != nil {
		return nil, fmt.Errorf("init archive blob store: %w", err)
	}
	return archive.New(blobs, clk, logger), nil
}
