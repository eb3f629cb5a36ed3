package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	mrand "math/rand/v2"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/devghori1264/prodmon/internal/api"
	"github.com/devghori1264/prodmon/internal/auth"
	"github.com/devghori1264/prodmon/internal/config"
	"github.com/devghori1264/prodmon/internal/events"
	kafkaclient "github.com/devghori1264/prodmon/internal/kafka"
	"github.com/devghori1264/prodmon/internal/logging"
	natsclient "github.com/devghori1264/prodmon/internal/nats"
	"github.com/devghori1264/prodmon/internal/seed"
	"github.com/devghori1264/prodmon/internal/server"
	"github.com/devghori1264/prodmon/internal/simulator"
	"github.com/devghori1264/prodmon/internal/storage"
	"github.com/devghori1264/prodmon/internal/telemetry"
	"github.com/devghori1264/prodmon/internal/views"
)

func main() {
	cfgPath := flag.String("config", "", "config file path")
	addr := flag.String("grpc-addr", "", "gRPC listen address")
	httpAddr := flag.String("http-addr", "", "HTTP listen address")
	dbPath := flag.String("db", "", "Badger DB path")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.GRPCAddr = *addr
	}
	if *httpAddr != "" {
		cfg.Server.HTTPAddr = *httpAddr
	}
	if *dbPath != "" {
		cfg.Store.Path = *dbPath
	}

	log, err := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("prodmon exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(cfg.Tracing.Enabled, cfg.Tracing.ServiceName, os.Stderr)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	emitter, err := openEvents(cfg.Events, log.Named("events"))
	if err != nil {
		return err
	}
	defer emitter.Close()

	seedValue := cfg.Simulation.Seed
	if seedValue == 0 {
		seedValue = mrand.Uint64()
	}
	rnd := mrand.New(mrand.NewPCG(seedValue, seedValue>>1|1))

	sc := cfg.Simulation
	sim := simulator.New(simulator.Config{
		Machines:      sc.Machines,
		TargetMin:     sc.TargetMin,
		TargetMax:     sc.TargetMax,
		ProduceChance: sc.ProduceChance,
		MaxProduce:    sc.MaxProduce,
		IdleAfter:     sc.IdleAfter,
		FailureChance: sc.FailureChance,
	}, rnd)

	srv := server.New(storage.NewState(store, log.Named("store")), sim, server.Options{
		HistoryLimit: sc.HistoryLimit,
		ArchiveLimit: sc.ArchiveLimit,
		Events:       emitter,
		Logger:       log.Named("server"),
	})

	provider, err := openAuth(ctx, cfg.Auth, store, log.Named("auth"))
	if err != nil {
		return err
	}

	if cfg.Seed.Enabled {
		if err := seed.Run(ctx, store, time.Now().UTC(), cfg.Seed.Days, rnd, log.Named("seed")); err != nil {
			return err
		}
	}

	leader := views.NewLeader(srv, views.Intervals{
		Tick:  sc.TickInterval,
		Sync:  sc.SyncInterval,
		Clock: sc.ClockInterval,
	}, log.Named("leader"), nil)
	engineering := views.NewEngineering(srv, sc.SyncInterval, log.Named("engineering"), nil)
	leader.Start(ctx)
	engineering.Start(ctx)

	// Start gRPC server
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Server.GRPCAddr, err)
	}
	grpcServer := grpc.NewServer()
	srv.RegisterGRPC(grpcServer)

	errc := make(chan error, 3)
	go func() {
		log.Info("gRPC server listening", zap.String("addr", cfg.Server.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			errc <- fmt.Errorf("grpc serve: %w", err)
		}
	}()

	httpServer := &http.Server{
		Addr: cfg.Server.HTTPAddr,
		Handler: api.NewHTTPHandler(api.Deps{
			Server:      srv,
			Leader:      leader,
			Engineering: engineering,
			Auth:        provider,
			Store:       store,
			Logger:      log.Named("api"),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http listen: %w", err)
		}
	}()

	mux := http.NewServeMux()
	api.RegisterMetrics(mux)
	metricsServer := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("Prometheus metrics available", zap.String("addr", cfg.Server.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	log.Info("prodmon started", zap.String("version", cfg.Version), zap.String("store", cfg.Store.Driver), zap.Uint64("seed", seedValue))

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown initiated")
	case runErr = <-errc:
		log.Error("server failed", zap.Error(runErr))
	}

	leader.Stop()
	engineering.Stop()
	grpcServer.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown", zap.Error(err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("metrics server shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("tracing shutdown", zap.Error(err))
	}
	log.Info("shutdown complete")
	return runErr
}

func openStore(ctx context.Context, sc config.StoreConfig) (storage.Store, error) {
	switch sc.Driver {
	case "redis":
		st, err := storage.NewRedisStore(ctx, storage.RedisOptions{
			Addr:     sc.Redis.Addr,
			Password: sc.Redis.Password,
			DB:       sc.Redis.DB,
			Prefix:   sc.Redis.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		return st, nil
	default:
		st, err := storage.NewBadgerStore(sc.Path)
		if err != nil {
			return nil, fmt.Errorf("open badger store: %w", err)
		}
		return st, nil
	}
}

func openEvents(ec config.EventsConfig, log *zap.Logger) (*events.Emitter, error) {
	var pub events.Publisher
	switch ec.Driver {
	case "nats":
		p, err := natsclient.NewPublisher(ec.NATSURL, log)
		if err != nil {
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		pub = p
	case "kafka":
		p, err := kafkaclient.NewPublisher(ec.KafkaBrokers)
		if err != nil {
			return nil, fmt.Errorf("kafka writer: %w", err)
		}
		pub = p
	default:
		return events.NewEmitter(nil, ec.SubjectRoot, log), nil
	}
	return events.NewEmitter(pub, ec.SubjectRoot, log), nil
}

func openAuth(ctx context.Context, ac config.AuthConfig, store storage.Store, log *zap.Logger) (*auth.Provider, error) {
	secret := ac.JWTSecret
	if secret == "" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return nil, err
		}
		secret = hex.EncodeToString(b)
		log.Warn("no jwt secret configured; sessions will not survive a restart")
	}
	p, err := auth.NewProvider(store, secret, ac.TokenTTL, log)
	if err != nil {
		return nil, err
	}
	for _, u := range ac.Users {
		role, err := auth.ParseRole(u.Role)
		if err != nil {
			return nil, fmt.Errorf("auth user %s: %w", u.Email, err)
		}
		if _, err := p.Register(ctx, u.Email, u.Password, role, u.Name); err != nil {
			return nil, fmt.Errorf("register %s: %w", u.Email, err)
		}
		log.Info("user provisioned", zap.String("email", u.Email), zap.String("role", u.Role))
	}
	return p, nil
}
