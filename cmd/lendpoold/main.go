package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"lendpool/config"
	"lendpool/core/events"
	"lendpool/crypto"
	"lendpool/native/lending"
	"lendpool/observability/logging"
	"lendpool/observability/metrics"
	telemetry "lendpool/observability/otel"
	lendstate "lendpool/state/lending"
	"lendpool/storage"
)

func main() {
	configPath := flag.String("config", "./config.toml", "path to the pool configuration file")
	serverConfigPath := flag.String("server-config", "", "optional YAML file with HTTP server settings")
	listen := flag.String("listen", "", "listen address override")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.ServiceName, cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Metrics || cfg.Telemetry.Traces {
		shutdown, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName: cfg.ServiceName,
			Environment: cfg.Environment,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
			Metrics:     cfg.Telemetry.Metrics,
			Traces:      cfg.Telemetry.Traces,
		})
		if err != nil {
			logger.Error("init telemetry", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("telemetry shutdown", "error", err)
			}
		}()
	}

	if strings.TrimSpace(cfg.PoolAddress) == "" {
		logger.Error("PoolAddress is required")
		os.Exit(1)
	}
	poolAddress, err := crypto.DecodeAddress(cfg.PoolAddress)
	if err != nil {
		logger.Error("parse pool address", "error", err)
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	manager := lendstate.NewManager(db)
	engine := lending.NewEngine(poolAddress)
	engine.SetState(manager)
	engine.SetEmitter(events.Multi(events.NewLogEmitter(logger), metrics.Lending()))

	if err := bootstrapParams(manager, cfg, logger); err != nil {
		logger.Error("bootstrap pool parameters", "error", err)
		os.Exit(1)
	}

	srvCfg := defaultServerConfig()
	if *serverConfigPath != "" {
		srvCfg, err = loadServerConfig(*serverConfigPath)
		if err != nil {
			logger.Error("load server config", "error", err)
			os.Exit(1)
		}
	}
	if *listen != "" {
		srvCfg.ListenAddress = *listen
	}

	server := &http.Server{
		Addr:              srvCfg.ListenAddress,
		Handler:           otelhttp.NewHandler(newRouter(engine, logger), "lendpoold.api"),
		ReadHeaderTimeout: srvCfg.ReadTimeout,
	}
	go func() {
		logger.Info("api listening", "address", srvCfg.ListenAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), srvCfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
}

// bootstrapParams writes the configured pool parameters on first start;
// subsequent starts keep the persisted state authoritative.
func bootstrapParams(manager *lendstate.Manager, cfg *config.Config, logger *slog.Logger) error {
	existing, err := manager.GetParams()
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	if strings.TrimSpace(cfg.Pool.Owner) == "" {
		return errors.New("pool owner required for first start")
	}
	params, err := cfg.Pool.Params()
	if err != nil {
		return err
	}
	if err := manager.PutParams(params); err != nil {
		return err
	}
	logger.Info("pool initialized", "owner", cfg.Pool.Owner)
	return nil
}
