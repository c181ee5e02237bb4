package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mediafetch/internal/api"
	"mediafetch/internal/cache"
	"mediafetch/internal/fetch"
	"mediafetch/internal/notify"
	"mediafetch/internal/platform/config"
	"mediafetch/internal/platform/logger"
	"mediafetch/internal/platform/metrics"
	"mediafetch/internal/platform/ratelimit"
	"mediafetch/internal/selection"
	"mediafetch/internal/source"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	manifestBaseURL := config.GetEnv("MANIFEST_BASE_URL", "http://localhost:9000")
	cacheTTL := config.GetEnvDuration("CACHE_TTL", cache.DefaultTTL)
	cacheMaxSize := config.GetEnvInt("CACHE_MAX_SIZE", cache.DefaultMaxSize)
	sweepInterval := config.GetEnvDuration("CACHE_SWEEP_INTERVAL", time.Minute)
	ffmpegPath := config.GetEnv("FFMPEG_PATH", "ffmpeg")
	mergeTimeout := config.GetEnvDuration("MERGE_TIMEOUT", fetch.DefaultMergeTimeout)
	tmpRoot := config.GetEnv("TMP_DIR", os.TempDir())
	outDir := config.GetEnv("OUTPUT_DIR", "downloads")
	rateEnabled := config.GetEnvBool("RATE_LIMIT_ENABLED", true)
	rateRPS := config.GetEnvInt("RATE_LIMIT_RPS", 5)
	rateBurst := config.GetEnvInt("RATE_LIMIT_BURST", 10)
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")

	log := logger.New(logLevel, logFormat)

	met := metrics.New()
	analyses := cache.NewAnalysisCache(cacheTTL, cacheMaxSize)
	engine := selection.NewEngine(logger.Component(log, "selection"))
	provider := source.NewManifestProvider(manifestBaseURL, nil)
	ffmpeg := fetch.NewFFmpeg(ffmpegPath, mergeTimeout)
	pipeline := fetch.NewOrchestrator(provider, ffmpeg, tmpRoot, outDir, logger.Component(log, "fetch"))
	notifier := &notify.LogNotifier{Log: logger.Component(log, "notify")}

	svc := api.NewService(provider, analyses, engine, pipeline, ffmpeg, ffmpeg, met, log)
	h := api.NewHandler(svc, notifier, log)

	var downloadLimit func(http.Handler) http.Handler
	if rateEnabled {
		downloadLimit = ratelimit.Middleware(ratelimit.New(float64(rateRPS), rateBurst))
	}

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetCacheSize(svc.CacheLen()) }).ServeHTTP(w, r)
	})
	h.Routes(r, downloadLimit)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				if n := svc.SweepCache(); n > 0 {
					log.Debug("cache sweep", "removed", n)
				}
			}
		}
	}()

	if !ffmpeg.Available() {
		log.Warn("merge tool not found, adaptive downloads disabled", "path", ffmpegPath)
	}

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"manifest_base_url", manifestBaseURL,
		"cache_ttl", cacheTTL.String(),
		"cache_max_size", cacheMaxSize,
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
