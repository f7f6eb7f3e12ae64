package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/api"
	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/broker"
	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/config"
	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/directory"
	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/gateway"
	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/identity"
	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/observability"
	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/presence"
	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/ratelimit"
	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/server"
	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/stream"
	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// Observability
	observability.InitLogger(cfg.ServiceName, cfg.LogLevel)
	log := observability.Log.With(zap.String("instance_id", cfg.InstanceID))

	ctx, cancel := setupSignalHandler(log)
	defer cancel()

	if cfg.TracingEnabled {
		tp, err := observability.InitTracer(ctx, cfg.ServiceName, cfg.InstanceID, cfg.OTLPEndpoint)
		if err != nil {
			log.Fatal("failed to initialize tracer", zap.Error(err))
		}
		defer tp.Shutdown(context.Background())
	}

	var rdb *redis.Client
	if cfg.NeedsRedis() {
		rdb = initRedis(ctx, cfg, log)
		defer rdb.Close()
	}

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db = initPostgres(ctx, cfg.DatabaseURL, log)
		defer db.Close()
	}

	store := initStore(ctx, cfg, rdb, db, log)
	bridge := broker.NewBridge(initBroker(cfg, rdb, log))
	defer bridge.Close()
	pres, limiter := initPresence(cfg, rdb)
	dir := initDirectory(ctx, db, rdb, log)

	gw := gateway.New(gatewayConfig(cfg), store, bridge, pres, limiter, dir)

	monitor := observability.NewHealthMonitor(cfg.HealthInterval, healthChecks(store, bridge, rdb))
	grpcSrv, _ := server.NewHealthGRPC(monitor, cfg.ServiceName)
	monitor.Start(ctx)

	resolver := initResolver(cfg)
	wsHandler := websocket.NewHandler(gw, resolver, cfg.SendQueueSize)
	router := api.NewRouter(
		api.RouterConfig{ServiceName: cfg.ServiceName, RateLimit: cfg.HTTPRateLimit},
		wsHandler,
		observability.HealthHandler(monitor, cfg.InstanceID, gw.ConnectionCount),
		resolver,
		api.NewRoomHandler(gw, store, dir, cfg.HistoryLimit),
		api.NewPresenceHandler(pres),
	)

	// Servers
	mainSrv := server.New(cfg.HTTPAddr, router)
	obsSrv := initObservabilityServer(cfg, monitor)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := mainSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("main server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Info("starting observability server", zap.String("addr", cfg.ObsHTTPAddr))
		if err := obsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("observability server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		log.Info("starting grpc health server", zap.String("addr", cfg.GRPCAddr))
		if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		performGracefulShutdown(obsSrv, mainSrv, grpcSrv, gw, log)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("relay stopped with error", zap.Error(err))
		os.Exit(1)
	}
	log.Info("shutdown complete, exiting")
}

func setupSignalHandler(log *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received signal, initiating shutdown", zap.String("signal", sig.String()))
		cancel()
	}()
	return ctx, cancel
}

func initRedis(ctx context.Context, cfg *config.Config, log *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	return client
}

func initPostgres(ctx context.Context, url string, log *zap.Logger) *sql.DB {
	db, err := stream.OpenPostgres(ctx, url)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	return db
}

func initStore(ctx context.Context, cfg *config.Config, rdb *redis.Client, db *sql.DB, log *zap.Logger) stream.Store {
	var s stream.Store
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pg := stream.NewPostgres(db)
		if err := pg.Migrate(ctx); err != nil {
			log.Fatal("failed to migrate message store", zap.Error(err))
		}
		s = pg
	case config.BackendMemory:
		log.Warn("using in-memory message store, history is lost on restart")
		s = stream.NewMemory()
	default:
		s = stream.NewRedis(rdb, cfg.StreamMaxLen)
	}
	return stream.Instrument(s, cfg.StoreBackend)
}

func initBroker(cfg *config.Config, rdb *redis.Client, log *zap.Logger) broker.Backend {
	switch cfg.BrokerBackend {
	case config.BackendNATS:
		natsCfg := broker.DefaultNATSConfig()
		natsCfg.URL = cfg.NATSURL
		natsCfg.Name = cfg.ServiceName + "-" + cfg.InstanceID
		b, err := broker.NewNATS(natsCfg)
		if err != nil {
			log.Fatal("failed to connect to nats", zap.Error(err))
		}
		return b
	case config.BackendKafka:
		b, err := broker.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Fatal("failed to create kafka client", zap.Error(err))
		}
		return b
	case config.BackendMemory:
		log.Warn("using in-process broker, rooms do not span instances")
		return broker.NewMemory()
	default:
		return broker.NewRedis(rdb)
	}
}

func initPresence(cfg *config.Config, rdb *redis.Client) (presence.Tracker, gateway.Limiter) {
	if rdb == nil {
		return presence.NewMemory(cfg.PresenceTTL, time.Now), ratelimit.NewMemory(time.Now)
	}
	return presence.NewRedis(rdb, cfg.PresenceTTL), ratelimit.NewRedis(rdb)
}

func initDirectory(ctx context.Context, db *sql.DB, rdb *redis.Client, log *zap.Logger) directory.Directory {
	if db == nil {
		return directory.NewStatic()
	}
	pg := directory.NewPostgres(db)
	if err := pg.Migrate(ctx); err != nil {
		log.Fatal("failed to migrate directory", zap.Error(err))
	}
	if rdb == nil {
		return pg
	}
	return directory.NewCached(pg, rdb, directory.DefaultCacheTTL)
}

// healthChecks probes every backend the relay depends on. Redis backs
// presence and rate limits whenever a client exists.
func healthChecks(store stream.Store, bridge *broker.Bridge, rdb *redis.Client) map[string]observability.Check {
	checks := map[string]observability.Check{
		"store":  store.Ping,
		"broker": bridge.Ping,
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}
	}
	return checks
}

func initResolver(cfg *config.Config) identity.Resolver {
	if cfg.AuthMode == config.AuthHeader {
		return identity.HeaderResolver{}
	}
	return identity.NewJWT(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience)
}

func gatewayConfig(cfg *config.Config) gateway.Config {
	return gateway.Config{
		InstanceID:        cfg.InstanceID,
		SendLimit:         cfg.SendLimit,
		SendWindow:        cfg.SendWindow,
		MaxTextLength:     cfg.MaxMessageLength,
		TypingTimeout:     cfg.TypingTimeout,
		HeartbeatInterval: cfg.HeartbeatInterval,
		IOTimeout:         cfg.IOTimeout,
		DedupWindow:       cfg.DedupWindow,
	}
}

func initObservabilityServer(cfg *config.Config, monitor *observability.HealthMonitor) *http.Server {
	mux := chi.NewRouter()
	mux.Use(observability.MetricsMiddleware(cfg.ServiceName))
	mux.Handle("/metrics", promhttp.Handler())
	mux.Get("/health/live", observability.HealthLiveHandler)
	mux.Get("/health/ready", observability.HealthReadyHandler(monitor))
	return &http.Server{Addr: cfg.ObsHTTPAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

// performGracefulShutdown stops accepting work, then closes every client
// connection so their read loops release rooms and subscriptions.
func performGracefulShutdown(obs *http.Server, mainSrv *server.Server, grpcSrv *grpc.Server, gw *gateway.Gateway, log *zap.Logger) {
	log.Info("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := mainSrv.Shutdown(ctx); err != nil {
		log.Error("error during main server shutdown", zap.Error(err))
	}
	gw.Shutdown()
	if err := obs.Shutdown(ctx); err != nil {
		log.Error("error during observability server shutdown", zap.Error(err))
	}
	grpcSrv.GracefulStop()
}
