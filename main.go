package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/panjf2000/ants/v2"
	"github.com/urfave/negroni"

	"github.com/serisow/vibeveed/batch"
	"github.com/serisow/vibeveed/config"
	"github.com/serisow/vibeveed/handlers"
	"github.com/serisow/vibeveed/logging"
	"github.com/serisow/vibeveed/pipeline"
	"github.com/serisow/vibeveed/plugin_registry"
	"github.com/serisow/vibeveed/server"
	"github.com/serisow/vibeveed/services/asset_service"
	"github.com/serisow/vibeveed/services/fal_service"
	"github.com/serisow/vibeveed/services/notify_service"
	"github.com/serisow/vibeveed/services/speech_service"
	"github.com/serisow/vibeveed/storage"
	"github.com/serisow/vibeveed/uploads"
)

func main() {
	cfg := config.Load()

	logger, err := initLogger(cfg.LogDir)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := "serve"
	args := os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}

	switch command {
	case "serve":
		err = runServe(ctx, cfg, logger, args)
	case "batch":
		err = runBatch(ctx, cfg, logger, args)
	default:
		err = fmt.Errorf("unknown command %q (expected serve or batch)", command)
	}
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}

func runServe(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	port := fs.String("port", cfg.HTTPPort, "HTTP port used outside production")
	fs.Parse(args)
	cfg.HTTPPort = *port

	if missing := cfg.MissingVendorKeys(); len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s (set them in your .env file)", strings.Join(missing, ", "))
	}
	logger.Info("Required environment variables found")

	registry := plugin_registry.NewPluginRegistry()
	registerAssetStores(registry, cfg, logger)
	closeNotifiers := registerNotifiers(registry, cfg)
	defer closeNotifiers()

	resultStore, closeStore := buildResultStore(ctx, cfg, logger)
	defer closeStore()

	recorder := pipeline.MultiRecorder{
		pipeline.RunStoreRecorder{},
		storage.NewStoreRecorder(resultStore, logger),
		notify_service.NewNotifierRecorder(logger, registry.Notifiers()...),
	}
	orchestrator, err := buildOrchestrator(ctx, cfg, registry, recorder, logger)
	if err != nil {
		return err
	}

	pipeline.StartRunStoreCleanup(cfg.RunRetention, time.Hour)
	defer pipeline.StopRunStoreCleanup()

	cleanup := uploads.NewCleanupService(logger, 6*time.Hour)
	cleanup.PerformCleanup()
	cleanup.StartCleanupSchedule(time.Hour)
	defer cleanup.Stop()

	videoHandler := handlers.NewVideoHandler(orchestrator, cfg.MaxUploadMB<<20, logger)
	n := setupNegroni(server.SetupRoutes(videoHandler))

	srvCfg := server.Config{
		Domains:      cfg.Domains,
		CertCacheDir: cfg.CertCacheDir,
		HTTPPort:     cfg.HTTPPort,
		IdleTimeout:  time.Minute,
		ReadTimeout:  time.Minute,
		// a full run waits on several vendor queues
		WriteTimeout: 30 * time.Minute,
	}

	logger.Info("Starting video processing server",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.HTTPPort),
		slog.String("asset_store", cfg.AssetStore))

	if cfg.Environment == "production" {
		server.ServeProduction(ctx, n, srvCfg)
	} else {
		server.ServeDevelopment(ctx, n, srvCfg)
	}
	return nil
}

func runBatch(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	assetsDir := fs.String("assets", "assets", "directory of images to process")
	effects := fs.String("effects", "", "effects prompt for image-to-video (empty skips effects and lip-sync)")
	message := fs.String("message", "", "text to speak (empty skips audio and lip-sync)")
	delay := fs.Duration("delay", time.Second, "pause between submissions")
	concurrency := fs.Int("concurrency", 1, "runs in flight at once")
	fs.Parse(args)

	registry := plugin_registry.NewPluginRegistry()
	registerAssetStores(registry, cfg, logger)
	closeNotifiers := registerNotifiers(registry, cfg)
	defer closeNotifiers()

	resultStore, closeStore := buildResultStore(ctx, cfg, logger)
	defer closeStore()

	recorder := pipeline.MultiRecorder{
		storage.NewStoreRecorder(resultStore, logger),
		notify_service.NewNotifierRecorder(logger, registry.Notifiers()...),
	}
	orchestrator, err := buildOrchestrator(ctx, cfg, registry, recorder, logger)
	if err != nil {
		return err
	}

	pool, err := ants.NewPool(max(*concurrency, 1), ants.WithPanicHandler(func(p interface{}) {
		logger.Error("Panic in batch worker", slog.Any("panic", p))
	}))
	if err != nil {
		return fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	summary, err := batch.NewRunner(orchestrator, pool, logger).Run(ctx, batch.Options{
		AssetsDir:     *assetsDir,
		EffectsPrompt: *effects,
		Message:       *message,
		Delay:         *delay,
	})
	if err != nil {
		return err
	}
	logger.Info(fmt.Sprintf("Processed %d images: %d completed, %d failed",
		len(summary.Results), summary.Completed, summary.Failed))
	return nil
}

func buildOrchestrator(ctx context.Context, cfg config.Config, registry *plugin_registry.PluginRegistry, recorder pipeline.Recorder, logger *slog.Logger) (*pipeline.Orchestrator, error) {
	assets, err := registry.NewAssetStore(ctx, cfg.AssetStore)
	if err != nil {
		return nil, err
	}

	fal := fal_service.NewClient(cfg.FalKey, cfg.FalQueueURL, cfg.FalPollInterval, logger)
	stages := pipeline.Stages{
		Assets:     assets,
		Remover:    fal_service.NewBackgroundRemover(fal, cfg.BackgroundRemovalApp),
		Effects:    fal_service.NewEffectsGenerator(fal, cfg.ImageToVideoApp),
		Speech:     speech_service.NewElevenLabsService(cfg.ElevenLabsAPIURL, cfg.ElevenLabsAPIKey, cfg.ElevenLabsVoiceID, cfg.ElevenLabsModelID, logger),
		Compositor: fal_service.NewLipSyncCompositor(fal, cfg.LipSyncApp),
	}

	return pipeline.NewOrchestrator(stages, logger,
		pipeline.WithFolders(cfg.ImageFolder, cfg.AudioFolder),
		pipeline.WithRecorder(recorder),
	), nil
}

func registerAssetStores(registry *plugin_registry.PluginRegistry, cfg config.Config, logger *slog.Logger) {
	registry.RegisterAssetStore("cloudinary", func(ctx context.Context) (pipeline.AssetStore, error) {
		return asset_service.NewCloudinaryStore(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, logger)
	})
	registry.RegisterAssetStore("s3", func(ctx context.Context) (pipeline.AssetStore, error) {
		return asset_service.NewS3Store(ctx, cfg.S3Bucket, cfg.S3Region, cfg.AssetURLTTL, logger)
	})
	registry.RegisterAssetStore("minio", func(ctx context.Context) (pipeline.AssetStore, error) {
		return asset_service.NewMinioStore(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL, cfg.AssetURLTTL, logger)
	})
}

// registerNotifiers registers the notifiers that are configured and returns a
// func releasing their connections.
func registerNotifiers(registry *plugin_registry.PluginRegistry, cfg config.Config) func() {
	if cfg.ResultWebhookURL != "" {
		registry.RegisterNotifier(notify_service.NewWebhookNotifier(cfg.ResultWebhookURL))
	}
	if cfg.TwilioAccountSid != "" && cfg.TwilioToNumber != "" {
		registry.RegisterNotifier(notify_service.NewSMSNotifier(notify_service.TwilioCredentials{
			AccountSid: cfg.TwilioAccountSid,
			AuthToken:  cfg.TwilioAuthToken,
			FromNumber: cfg.TwilioFromNumber,
			ToNumber:   cfg.TwilioToNumber,
		}))
	}
	if cfg.KafkaBroker != "" {
		kafkaNotifier := notify_service.NewKafkaNotifier(cfg.KafkaBroker, cfg.KafkaTopic)
		registry.RegisterNotifier(kafkaNotifier)
		return func() { kafkaNotifier.Close() }
	}
	return func() {}
}

// buildResultStore always writes JSON files and adds Postgres when
// DATABASE_URL is set. A database that cannot be reached is logged and
// skipped.
func buildResultStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage.ResultStore, func()) {
	stores := storage.MultiResultStore{storage.NewFileResultStore(cfg.ResultsDir)}
	if cfg.DatabaseURL == "" {
		return stores, func() {}
	}

	pool, err := storage.Connect(ctx, cfg.DatabaseURL, 3, 5*time.Second)
	if err != nil {
		logger.Error("Results will not be stored in the database", slog.String("error", err.Error()))
		return stores, func() {}
	}
	return append(stores, storage.NewPostgresResultStore(pool)), pool.Close
}

func setupNegroni(r *mux.Router) *negroni.Negroni {
	n := negroni.New()

	n.Use(negroni.NewRecovery())
	n.Use(negroni.NewLogger())

	n.UseHandler(r)
	return n
}

func initLogger(logDir string) (*slog.Logger, error) {
	fileHandler, err := logging.NewDailyFileHandler(logDir, "vibeveed", &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	if err != nil {
		return nil, err
	}

	return slog.New(fileHandler), nil
}
