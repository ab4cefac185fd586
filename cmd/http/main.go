package main

import (
	"context"
	"expvar"
	"log"
	"runtime"

	"github.com/devclip/clipsync/internal/domain"
	"github.com/devclip/clipsync/internal/infrastructure/cipher"
	"github.com/devclip/clipsync/internal/infrastructure/configs"
	"github.com/devclip/clipsync/internal/infrastructure/ratelimiter"
	"github.com/devclip/clipsync/internal/infrastructure/store"
	"github.com/devclip/clipsync/internal/infrastructure/tracing"
	"github.com/devclip/clipsync/internal/infrastructure/ws"
	"github.com/devclip/clipsync/internal/presentation/api"
	"github.com/devclip/clipsync/internal/presentation/handler/devices"
	"github.com/devclip/clipsync/internal/presentation/handler/health"
	"github.com/devclip/clipsync/internal/service"
	"go.uber.org/zap"
)

const serviceName = "clipsync-api"

func main() {
	logger := zap.Must(zap.NewProduction()).Sugar()
	defer logger.Sync()

	configPath := configs.DetermineConfigPath()
	cfg, err := configs.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	if cfg.Tracing.Enabled {
		tracerCfg := tracing.NewDefaultConfig(serviceName)
		tracerCfg.OTLPEndpoint = cfg.Tracing.Endpoint

		sh, err := tracing.InitTracer(tracerCfg)
		if err != nil {
			log.Fatalf("Failed to initialize the tracer: %v", err)
		}
		defer sh(context.Background())
	}

	sessionStore, closeStore, err := buildStore(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer closeStore()

	sessions := service.NewSessionService(sessionStore, cipher.NewAESGCM(), cfg.Store.SessionTTL, logger)

	groupManager := ws.NewGroupManager()
	wsCore := ws.NewCore(groupManager, sessions, logger)
	go wsCore.Run()

	deviceHandler := devices.NewHandler(sessions, groupManager, wsCore)
	healthHandler := health.NewHandler(groupManager)

	rl := ratelimiter.New(ratelimiter.Options{
		MaxRatePerSecond: cfg.RateLimiter.MaxRatePerSecond,
		MaxBurst:         cfg.RateLimiter.MaxBurst,
		CacheTTL:         cfg.RateLimiter.CacheTTL,
		SourceHeaderKey:  cfg.RateLimiter.SourceHeaderKey,
	})
	app := api.NewApplication(*cfg, *deviceHandler, *healthHandler, logger, rl)

	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	mux := app.Mount()
	logger.Fatal(app.Run(mux))
}

func buildStore(cfg *configs.Config) (domain.SessionStore, func(), error) {
	switch cfg.Store.Backend {
	case "memory":
		return store.NewMemoryStore(), func() {}, nil
	default:
		rs, err := store.NewRedisStore(cfg.Store.RedisAddr, cfg.Store.RedisPassword)
		if err != nil {
			return nil, nil, err
		}
		return rs, func() { _ = rs.Close() }, nil
	}
}
