// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command objrpcd serves the sample services over objrpc, with an optional
// JSON-RPC gateway and Prometheus metrics endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/luxfi/objrpc"
	"github.com/luxfi/objrpc/internal/hello"
)

const shutdownTimeout = 5 * time.Second

func main() {
	path := flag.String("config", "", "path to the yaml configuration")
	flag.Parse()

	cfg, err := loadConfig(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fx.New(appOptions(cfg)...).Run()
}

func loadConfig(path string) (*objrpc.Config, error) {
	if path == "" {
		return objrpc.DefaultConfig(), nil
	}
	return objrpc.LoadConfig(path)
}

func appOptions(cfg *objrpc.Config) []fx.Option {
	return []fx.Option{
		fx.Supply(cfg),
		fx.Provide(provideLogger, provideRegistry, provideMetrics),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Named("fx")}
		}),
		serverModule,
		gatewayModule,
		metricsModule,
	}
}

func provideLogger(cfg *objrpc.Config) (*zap.Logger, error) {
	return cfg.Log.NewLogger()
}

func provideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

func provideMetrics(reg *prometheus.Registry) (*objrpc.Metrics, error) {
	return objrpc.NewMetrics(reg)
}

// runtimeOptions are shared by the listener and the gateway endpoint.
func runtimeOptions(cfg *objrpc.Config, logger *zap.Logger, m *objrpc.Metrics) []objrpc.Option {
	return append(cfg.Options(),
		objrpc.WithFactory(hello.Factory()),
		objrpc.WithLogger(logger),
		objrpc.WithMetrics(m),
	)
}

var serverModule = fx.Module("server",
	fx.Provide(provideServer),
	fx.Invoke(registerServer),
)

func provideServer(cfg *objrpc.Config, logger *zap.Logger, m *objrpc.Metrics) (*objrpc.Server, error) {
	return objrpc.Listen(cfg.Address, runtimeOptions(cfg, logger.Named("objrpc"), m)...)
}

func registerServer(lc fx.Lifecycle, s *objrpc.Server, cfg *objrpc.Config, logger *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			logger.Info("serving objects",
				zap.String("transport", cfg.Transport),
				zap.String("address", s.Addr()))
			go func() {
				defer close(done)
				if err := s.Serve(ctx); err != nil {
					logger.Error("server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			err := s.Close()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return err
		},
	})
}

var gatewayModule = fx.Module("gateway",
	fx.Invoke(registerGateway),
)

func registerGateway(lc fx.Lifecycle, cfg *objrpc.Config, logger *zap.Logger, m *objrpc.Metrics) error {
	if cfg.GatewayAddress == "" {
		return nil
	}
	ep := objrpc.NewEndpoint(hello.Factory(), runtimeOptions(cfg, logger.Named("gateway"), m)...)
	gw, err := objrpc.NewGateway(ep, logger.Named("gateway"))
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/rpc", gw.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	lc.Append(httpHook(srv, cfg.GatewayAddress, logger.Named("gateway")))
	lc.Append(fx.StopHook(ep.Close))
	return nil
}

var metricsModule = fx.Module("metrics",
	fx.Invoke(registerMetrics),
)

func registerMetrics(lc fx.Lifecycle, cfg *objrpc.Config, reg *prometheus.Registry, logger *zap.Logger) {
	if cfg.MetricsAddress == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	lc.Append(httpHook(srv, cfg.MetricsAddress, logger.Named("metrics")))
}

// httpHook binds addr on start so address errors fail the app, and shuts
// the server down on stop.
func httpHook(srv *http.Server, addr string, logger *zap.Logger) fx.Hook {
	return fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			logger.Info("http listening", zap.String("address", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	}
}
