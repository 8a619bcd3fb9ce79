package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/coliving-calendar-api/internal/repository"
	"github.com/noah-isme/coliving-calendar-api/internal/service"
	"github.com/noah-isme/coliving-calendar-api/pkg/config"
	"github.com/noah-isme/coliving-calendar-api/pkg/database"
	"github.com/noah-isme/coliving-calendar-api/pkg/ical"
	"github.com/noah-isme/coliving-calendar-api/pkg/logger"
	"github.com/noah-isme/coliving-calendar-api/pkg/storage"
)

func main() {
	var (
		manifestPath string
		outputDir    string
	)
	flag.StringVar(&manifestPath, "manifest", "feed-export.yaml", "Path to the YAML export manifest")
	flag.StringVar(&outputDir, "out", "", "Output directory (overrides manifest output_dir and EXPORTS_STORAGE_DIR)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	m, err := loadManifest(manifestPath)
	if err != nil {
		logr.Fatal("invalid manifest", zap.String("path", manifestPath), zap.Error(err))
	}
	blocks, err := m.extraBlocks()
	if err != nil {
		logr.Fatal("invalid manifest block", zap.Error(err))
	}

	dir := cfg.Exports.StorageDir
	if m.OutputDir != "" {
		dir = m.OutputDir
	}
	if outputDir != "" {
		dir = outputDir
	}
	store, err := storage.NewLocalStorage(dir)
	if err != nil {
		logr.Fatal("output directory unavailable", zap.Error(err))
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("postgres unavailable", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	feeds := service.NewFeedService(
		repository.NewApartmentRepository(db),
		&blockOverlay{base: repository.NewAvailabilityRepository(db), blocks: blocks},
		repository.NewBookingRepository(db),
		nil,
		ical.NewBuilder(ical.Config{
			ProductID:       cfg.Calendar.ProductID,
			Timezone:        cfg.Calendar.Timezone,
			RefreshInterval: cfg.Calendar.RefreshInterval,
			UIDDomain:       cfg.Calendar.UIDDomain,
		}),
		nil,
		logr,
		service.FeedConfig{
			Window:          service.WindowPolicy{LookbackDays: cfg.Feeds.LookbackDays, HorizonDays: cfg.Feeds.HorizonDays},
			SkipInvalid:     cfg.Feeds.SkipInvalid,
			DefaultTimezone: cfg.Calendar.Timezone,
		},
	)

	exporter := &batchExporter{
		feeds:      feeds,
		store:      store,
		logger:     logr,
		workers:    m.Workers,
		retries:    m.Retries,
		retryDelay: time.Second,
	}
	result, err := exporter.Run(ctx, m.Apartments)
	if err != nil {
		logr.Fatal("export aborted", zap.Error(err))
	}

	logr.Info("export finished",
		zap.String("dir", dir),
		zap.Int("written", len(result.Written)),
		zap.Int("failed", len(result.Failed)),
	)
	if len(result.Failed) > 0 {
		for _, task := range result.Failed {
			logr.Error("feed export failed", zap.String("apartment_id", task.ApartmentID), zap.String("mode", string(task.Mode)))
		}
		logr.Sync() //nolint:errcheck
		os.Exit(1)
	}
}
