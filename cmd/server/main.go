package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"market-sentry/internal/alert"
	"market-sentry/internal/bot"
	"market-sentry/internal/cache"
	"market-sentry/internal/config"
	"market-sentry/internal/db"
	"market-sentry/internal/dispatch"
	"market-sentry/internal/handler"
	"market-sentry/internal/job"
	"market-sentry/internal/provider"
	"market-sentry/internal/repository"
	"market-sentry/internal/service"
	"market-sentry/pkg/tracing"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"
)

var (
	loadEnvFunc      = godotenv.Load
	loadConfigFunc   = config.Load
	initPostgresFunc = db.InitPostgres
	initRedisFunc    = cache.InitRedis
	initTracerFunc   = tracing.InitTracer
	newDestRepoFunc  = repository.NewDestinationRepository
	newProviderFunc  = func(baseURL string, tracer trace.Tracer) service.MarketProvider {
		return provider.NewCoinGecko(baseURL, tracer)
	}
	newMarketServiceFunc   = service.NewMarketService
	newScannerFunc         = job.NewMarketScanner
	startScannerFunc       = func(s *job.MarketScanner, ctx context.Context) { go s.Start(ctx) }
	newDispatcherFunc      = dispatch.New
	startDispatcherFunc    = func(d *dispatch.Dispatcher, ctx context.Context) { go d.Run(ctx) }
	startTelegramBotFunc   = bot.StartTelegramBot
	newHandlerFunc         = handler.New
	newRouterFunc          = gin.Default
	setupSignalNotify      = ossignal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initPostgresFunc(ctx, cfg.DatabaseURL)
	initRedisFunc(ctx, cfg.RedisURL)

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	var pool repository.PgxPool
	if db.Pool != nil {
		pool = db.Pool
	}
	destRepo := newDestRepoFunc(pool, tracer)
	if db.Pool != nil {
		if err := destRepo.RunMigrations(ctx); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
	}

	cgProvider := newProviderFunc(cfg.CoinGeckoBaseURL, tracer)
	marketService := newMarketServiceFunc(tracer, cgProvider, cache.Client)

	os.Setenv("TELEGRAM_BOT_TOKEN", cfg.TelegramBotToken)
	sender := startTelegramBotFunc(destRepo)

	dispatcher := newDispatcherFunc(tracer, destRepo, sender, 0)
	startDispatcherFunc(dispatcher, ctx)

	scanner := newScannerFunc(tracer, marketService, alert.NewRegistry(), dispatcher, job.ScanConfig{
		TopN:              cfg.ScanTopN,
		Interval:          cfg.ScanInterval,
		SignalCooldown:    cfg.SignalCooldown,
		MovementCooldown:  cfg.MovementCooldown,
		MovementThreshold: cfg.MovementPct,
		SubjectDelay:      cfg.SubjectDelay,
	})
	startScannerFunc(scanner, ctx)

	h := newHandlerFunc(tracer, destRepo, dispatcher)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("market-sentry"))
	r.Use(cors.Default())

	h.RegisterRoutes(r)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
