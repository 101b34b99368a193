package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"os"
	"runtime"
	"time"

	"github.com/namimod25/toko-online/internal/domain"
	"github.com/namimod25/toko-online/internal/infrastructure/configs"
	"github.com/namimod25/toko-online/internal/infrastructure/events"
	"github.com/namimod25/toko-online/internal/infrastructure/logging"
	"github.com/namimod25/toko-online/internal/infrastructure/messaging"
	"github.com/namimod25/toko-online/internal/infrastructure/metrics"
	"github.com/namimod25/toko-online/internal/infrastructure/ratelimiter"
	"github.com/namimod25/toko-online/internal/infrastructure/repository"
	"github.com/namimod25/toko-online/internal/infrastructure/tracing"
	"github.com/namimod25/toko-online/internal/infrastructure/ws"
	"github.com/namimod25/toko-online/internal/persistence/db"
	mongorepo "github.com/namimod25/toko-online/internal/persistence/repository"
	"github.com/namimod25/toko-online/internal/presentation/api"
	"github.com/namimod25/toko-online/internal/presentation/handler/health"
	"github.com/namimod25/toko-online/internal/presentation/handler/products"
	"github.com/namimod25/toko-online/internal/presentation/handler/realtime"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

const drainTimeout = 5 * time.Second

func main() {
	configPath := configs.DetermineConfigPath(os.Args[1:])
	cfg, err := configs.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.NewLogger(&logging.LoggerConfig{
		FilePath: cfg.Logger.FilePath,
		Encoding: cfg.Logger.Encoding,
		Level:    cfg.Logger.Level,
		Logger:   cfg.Logger.Driver,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx := context.Background()

	shutdownTracer, err := tracing.InitTracer(ctx, cfg.Tracing)
	if err != nil {
		logger.Fatal(logging.General, logging.Startup, "failed to init tracer", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
	defer shutdownTracer(context.Background())

	m := metrics.New()

	registry := ws.NewRegistry(logger, m)
	emitter := ws.NewEmitter(registry, logger,
		ws.WithQueueSize(cfg.Realtime.EventQueueSize),
		ws.WithObserver(m),
	)

	emitterCtx, stopEmitter := context.WithCancel(ctx)
	emitterDone := make(chan struct{})
	go func() {
		defer close(emitterDone)
		_ = emitter.Run(emitterCtx)
	}()

	productRepository, mongoClient := newProductRepository(ctx, cfg, logger)
	if mongoClient != nil {
		defer db.DisconnectMongo(context.Background(), mongoClient)
	}

	var redisClient *redis.Client
	if cfg.Relay.Driver == configs.RelayRedis {
		redisClient, err = messaging.NewRedisClient(ctx, cfg.Relay.Redis.Addr, cfg.Relay.Redis.Password, cfg.Relay.Redis.DB)
		if err != nil {
			logger.Fatal(logging.Redis, logging.Startup, "failed to connect to redis", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		}
		defer redisClient.Close()
	}

	bus, err := newBus(cfg.Relay, redisClient)
	if err != nil {
		logger.Fatal(logging.General, logging.Startup, "failed to init relay bus", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}

	var publisher events.Publisher = events.NewLocalPublisher(emitter)
	if bus != nil {
		defer bus.Close()

		publisher = events.NewRelayPublisher(bus, m)
		consumer := events.NewRelayConsumer(bus, emitter, logger, m)
		go func() {
			if err := consumer.Listen(emitterCtx); err != nil {
				logger.Error(logging.Realtime, logging.Relay, "relay consumer stopped", map[logging.ExtraKey]any{
					logging.ErrorMessage: err.Error(),
				})
			}
		}()
	}

	// Control buckets are keyed by connection id and stay in process.
	var limiterStore ratelimiter.Store
	if redisClient != nil {
		limiterStore = ratelimiter.NewRedis(redisClient)
	}
	requestLimiter := ratelimiter.New(ratelimiter.Options{
		MaxRatePerSecond: cfg.RateLimiter.MaxRatePerSecond,
		MaxBurst:         cfg.RateLimiter.MaxBurst,
		Store:            limiterStore,
		TTL:              cfg.RateLimiter.CacheTTL,
		Namespace:        "http",
		SourceHeaderKey:  cfg.RateLimiter.SourceHeaderKey,
	})
	controlLimiter := ratelimiter.New(ratelimiter.Options{
		MaxRatePerSecond: cfg.Realtime.ControlRatePerSecond,
		MaxBurst:         cfg.Realtime.ControlBurst,
		TTL:              cfg.Realtime.PongWait,
		Namespace:        "control",
	})

	clientConfig := ws.ClientConfig{
		SendBufferSize: cfg.Realtime.SendBufferSize,
		PingInterval:   cfg.Realtime.PingInterval,
		PongWait:       cfg.Realtime.PongWait,
		WriteWait:      cfg.Realtime.WriteWait,
		ReadLimit:      cfg.Realtime.ReadLimit,
	}

	productsHandler := products.NewHandler(productRepository, publisher, logger)
	realtimeHandler := realtime.NewHandler(registry, ws.NewUpgrader(cfg.HTTP.AllowedOrigins), clientConfig, controlLimiter, logger)
	healthHandler := health.NewHandler(registry, emitter)

	app := api.NewApplication(*cfg, productsHandler, realtimeHandler, healthHandler, logger, requestLimiter, m)
	app.OnShutdown(registry.Close)

	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))
	expvar.Publish("connections", expvar.Func(func() any {
		return registry.Count()
	}))

	mux := app.Mount()
	if err := app.Run(mux); err != nil {
		logger.Error(logging.General, logging.Shutdown, "server stopped with error", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}

	stopEmitter()
	select {
	case <-emitterDone:
	case <-time.After(drainTimeout):
		logger.Warn(logging.Realtime, logging.Emission, "emitter did not drain in time", map[logging.ExtraKey]any{
			"pending": emitter.Pending(),
		})
	}
}

func newProductRepository(ctx context.Context, cfg *configs.Config, logger logging.Logger) (domain.ProductRepository, *mongo.Client) {
	if cfg.ProductStore.Driver != configs.StoreMongo {
		return repository.NewProductRepository(cfg.ProductStore.Capacity), nil
	}

	client, err := db.NewMongoClient(ctx, cfg.Mongo)
	if err != nil {
		logger.Fatal(logging.MongoDB, logging.Startup, "failed to connect to mongo", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}

	database := client.Database(cfg.Mongo.Database)
	if err := db.EnsureProductIndexes(ctx, database); err != nil {
		logger.Fatal(logging.MongoDB, logging.Startup, "failed to prepare products collection", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}

	return mongorepo.NewProductRepository(database), client
}

// newBus returns nil when the relay is disabled.
func newBus(cfg configs.RelayConfig, redisClient *redis.Client) (messaging.Bus, error) {
	switch cfg.Driver {
	case configs.RelayNone, "":
		return nil, nil
	case configs.RelayRabbitMQ:
		bus, err := messaging.NewRabbitMQ(cfg.RabbitMQ.URI, cfg.RabbitMQ.Exchange)
		if err != nil {
			return nil, err
		}
		return bus, nil
	case configs.RelayRedis:
		return messaging.NewRedis(redisClient, cfg.Redis.Channel), nil
	}

	return nil, fmt.Errorf("%w: relay driver %q", configs.ErrInvalidConfig, cfg.Driver)
}
