package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/authplane/authplane/pkg/api"
	"github.com/authplane/authplane/pkg/config"
	"github.com/authplane/authplane/pkg/gateway"
	"github.com/authplane/authplane/pkg/httputil"
	"github.com/authplane/authplane/pkg/observability"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.WithFields(map[string]interface{}{
		"gateway_mode": cfg.Gateway.Mode,
		"port":         cfg.Server.Port,
	}).Info("Starting authplane console")

	ctx := context.Background()
	tp, err := observability.InitTracing(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
		os.Exit(1)
	}

	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	gw := buildGateway(cfg, logger, metrics)

	server := api.NewServer(gw, metrics)

	middlewares := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(logger),
		httputil.RecoveryMiddleware(logger),
		httputil.MaxBytesMiddleware(1 << 20),
	}
	if metrics != nil {
		middlewares = append(middlewares, observability.HTTPMetricsMiddleware(metrics))
	}
	handler := httputil.Chain(middlewares...)(server)

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics run on their own listener so probes and scrapes
	// stay reachable independently of the API port.
	checker := observability.NewHealthChecker(func(ctx context.Context) error {
		_, err := gw.ListTenants(ctx)
		return err
	})
	opsMux := http.NewServeMux()
	observability.RegisterHealthRoutes(opsMux, checker)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(opsMux, registry)
	}
	opsServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: opsMux,
	}

	shutdown := observability.NewShutdownManager(logger, apiServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(opsServer.Shutdown)
	if tp != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return observability.ShutdownTracing(ctx, tp, logger)
		})
	}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("API server listening on %s", apiServer.Addr)
		if err := apiServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Infof("Health server listening on %s", opsServer.Addr)
		if err := opsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(shutdown.WaitForShutdown)

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("Server exited with error")
		os.Exit(1)
	}
	logger.Info("Server stopped")
}

// buildGateway selects the gateway client. Memory mode runs the console
// against an in-process store seeded with a development tenant and service,
// useful for local UI work without identity-API credentials.
func buildGateway(cfg *config.Config, logger *observability.Logger, metrics *observability.Metrics) gateway.Client {
	if cfg.Gateway.Mode == "memory" {
		logger.Warn("Running with in-memory gateway; state is not persisted")
		mem := gateway.NewMemory()
		mem.AddTenant("dev-tenant")
		mem.AddService("dev-service")
		return mem
	}
	httpCfg := gateway.HTTPConfig{
		BaseURL: cfg.Gateway.BaseURL,
		Token:   cfg.Gateway.Token,
		Timeout: cfg.Gateway.Timeout,
	}
	if metrics != nil {
		httpCfg.Observe = metrics.ObserveGateway
	}
	return gateway.NewHTTP(httpCfg)
}
