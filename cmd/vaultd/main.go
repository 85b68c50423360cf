package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"rewardvault/config"
	"rewardvault/core/epoch"
	"rewardvault/core/events"
	"rewardvault/core/state"
	"rewardvault/gateway/middleware"
	"rewardvault/gateway/routes"
	"rewardvault/native/bank"
	nativecommon "rewardvault/native/common"
	"rewardvault/native/validators"
	"rewardvault/native/vault"
	"rewardvault/observability/logging"
	"rewardvault/observability/metrics"
	telemetry "rewardvault/observability/otel"
	"rewardvault/storage"
)

var genesisTimeKey = []byte("vaultd/genesis-time")

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser := logging.SetupWithOptions(logging.Options{
		Service: "vaultd",
		Env:     cfg.Env,
		File:    cfg.LogFile,
	})
	err = run(cfg, logger)
	if err != nil {
		logger.Error("vaultd exited", slog.Any("error", err))
	}
	_ = logCloser.Close()
	if err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "vaultd",
		Environment: cfg.Env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
	})
	if err != nil {
		return fmt.Errorf("initialise telemetry: %w", err)
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	db, err := storage.Open(cfg.DatabaseBackend, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	manager := state.NewManager(db)
	clock, err := openClock(cfg, manager)
	if err != nil {
		return err
	}
	tokens := bank.NewLedger(db, cfg.VaultAccount)
	engine := vault.NewEngine(manager, tokens, validators.NewRegistry(manager), clock)
	engine.SetOwner(cfg.OwnerAccount)
	engine.SetEmitter(logEmitter{logger: logger})
	engine.SetMetrics(metrics.Vault())
	engine.SetLogger(logger)

	if err := ensureInitialised(cfg, manager, engine, logger); err != nil {
		return err
	}
	engine.SetPauses(nativecommon.NewPauses(cfg.Pauses.PausedModules()...))

	rateLimiter := middleware.NewRateLimiter(map[string]middleware.RateLimit{
		routes.RateLimitKey: {RequestsPerMinute: float64(cfg.RequestsPerMinute), Burst: cfg.Burst},
	}, logger)
	obs := middleware.NewObservability(middleware.ObservabilityConfig{ServiceName: "vaultd", Enabled: true}, logger)
	routeCfg := routes.Config{Vault: engine, RateLimiter: rateLimiter, Observability: obs}
	if cfg.Auth.Enabled {
		routeCfg.Writer = engine
		routeCfg.Minter = tokens
		routeCfg.Auth = middleware.NewAuthenticator(middleware.AuthConfig{
			Enabled:    true,
			HMACSecret: cfg.Auth.HMACSecret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
			ClockSkew:  time.Duration(cfg.Auth.ClockSkewSeconds) * time.Second,
		}, logger)
	}
	router, err := routes.New(routeCfg)
	if err != nil {
		return err
	}
	handler := http.Handler(router)
	if cfg.Telemetry.Endpoint != "" {
		handler = otelhttp.NewHandler(router, "vaultd")
	}
	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go advanceLoop(ctx, engine, clock, time.Duration(cfg.BlockIntervalSeconds)*time.Second, logger)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("vault API listening",
			slog.String("address", cfg.ListenAddress),
			slog.String("network", cfg.NetworkName),
			slog.Bool("writeRoutes", cfg.Auth.Enabled))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	logger.Info("vaultd shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openClock anchors block heights at the first start time so epochs survive
// restarts.
func openClock(cfg *config.Config, manager *state.Manager) (*epoch.Clock, error) {
	var genesisUnix uint64
	ok, err := manager.KVGet(genesisTimeKey, &genesisUnix)
	if err != nil {
		return nil, fmt.Errorf("load genesis time: %w", err)
	}
	if !ok {
		genesisUnix = uint64(time.Now().Unix())
		if err := manager.KVPut(genesisTimeKey, genesisUnix); err != nil {
			return nil, fmt.Errorf("store genesis time: %w", err)
		}
	}
	interval := time.Duration(cfg.BlockIntervalSeconds) * time.Second
	source := epoch.NewWallClock(time.Unix(int64(genesisUnix), 0), interval)
	return epoch.NewClock(epoch.Config{GenesisHeight: cfg.GenesisHeight, Length: cfg.EpochLength}, source)
}

// ensureInitialised creates the vault on first start and applies the
// configured cap. On later starts the stored values win; a config that
// disagrees with them is reported, not applied.
func ensureInitialised(cfg *config.Config, manager *state.Manager, engine *vault.Engine, logger *slog.Logger) error {
	allocation, err := cfg.Allocation()
	if err != nil {
		return err
	}
	pool, err := manager.LoadPool()
	if err != nil {
		return err
	}
	if pool == nil {
		if _, err := engine.Initialize(allocation); err != nil {
			return fmt.Errorf("initialise vault: %w", err)
		}
		if cfg.MaxCapMultiplier > 0 {
			if _, err := engine.SetMaxCapMultiplier(cfg.MaxCapMultiplier); err != nil {
				return fmt.Errorf("apply max cap multiplier: %w", err)
			}
		}
		return nil
	}
	if pool.PerEpochAllocation.Cmp(allocation) != 0 {
		logger.Warn("configured PerEpochAllocation ignored, vault already initialised; use the allocation route to change it",
			slog.String("stored", pool.PerEpochAllocation.String()),
			slog.String("configured", allocation.String()))
	}
	ledger, err := manager.LoadLedger()
	if err != nil {
		return err
	}
	if ledger != nil && ledger.MaxCapMultiplier != cfg.MaxCapMultiplier {
		logger.Warn("configured MaxCapMultiplier ignored, vault already initialised; use the max-cap route to change it",
			slog.Uint64("stored", ledger.MaxCapMultiplier),
			slog.Uint64("configured", cfg.MaxCapMultiplier))
	}
	return nil
}

// advanceLoop commits the exchange rate once per block interval so metrics
// and stored state track the clock even without traffic.
func advanceLoop(ctx context.Context, engine *vault.Engine, clock *epoch.Clock, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := engine.Advance(clock.CurrentEpoch()); err != nil {
				logger.Warn("vault advance failed", slog.Any("error", err))
			}
		}
	}
}

type logEmitter struct {
	logger *slog.Logger
}

func (l logEmitter) Emit(evt events.Event) {
	payload := evt.Event()
	if payload == nil {
		return
	}
	attrs := []any{slog.String("type", payload.Type), slog.Uint64("epoch", payload.Epoch)}
	for key, value := range payload.Attributes {
		attrs = append(attrs, slog.String(key, value))
	}
	l.logger.Info("vault event", attrs...)
}
