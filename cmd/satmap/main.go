package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/signalsfoundry/satmap/canvas"
	"github.com/signalsfoundry/satmap/core"
	"github.com/signalsfoundry/satmap/internal/config"
	"github.com/signalsfoundry/satmap/internal/ephemeris"
	"github.com/signalsfoundry/satmap/internal/fetch"
	"github.com/signalsfoundry/satmap/internal/logging"
	"github.com/signalsfoundry/satmap/internal/observability"
	"github.com/signalsfoundry/satmap/internal/server"
	"github.com/signalsfoundry/satmap/kb"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	log := logging.NewFromEnv()
	ctx := context.Background()

	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		log.Error(ctx, "invalid configuration", logging.Err(err))
		os.Exit(2)
	}

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(ctx, shutdownTracing, log)

	httpLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		log.Error(ctx, "failed to listen for HTTP", logging.String("addr", cfg.HTTPAddr), logging.Err(err))
		os.Exit(1)
	}
	var grpcLis net.Listener
	if cfg.GRPCAddr != "" {
		grpcLis, err = net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Error(ctx, "failed to listen for gRPC", logging.String("addr", cfg.GRPCAddr), logging.Err(err))
			os.Exit(1)
		}
	}

	stopCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(stopCtx, cfg, log, prometheus.NewRegistry(), httpLis, grpcLis); err != nil {
		log.Error(ctx, "satmap exited", logging.Err(err))
		os.Exit(1)
	}
}

// app holds the wired components.
type app struct {
	cfg      config.Config
	log      logging.Logger
	client   *fetch.Client
	catalog  *kb.Catalog
	m        *core.Map
	anim     *core.Animator
	tracker  *server.Tracker
	hub      *server.Hub
	health   *health.Server
	animator *observability.AnimatorCollector
}

func newApp(cfg config.Config, log logging.Logger, reg *prometheus.Registry) (*app, *server.Server, error) {
	animMetrics, err := observability.NewAnimatorCollector(reg)
	if err != nil {
		return nil, nil, err
	}
	fetchMetrics, err := observability.NewFetchCollector(reg)
	if err != nil {
		return nil, nil, err
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		catalog:  kb.NewCatalog(),
		health:   health.NewServer(),
		animator: animMetrics,
	}
	a.client = fetch.NewClient(fetch.Options{Logger: log, Metrics: fetchMetrics})

	var source ephemeris.Source
	switch cfg.Source {
	case config.SourceN2YO:
		source = ephemeris.NewN2YO(a.client, ephemeris.N2YOConfig{
			BaseURL:           cfg.N2YOBaseURL,
			APIKey:            cfg.N2YOAPIKey,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Burst:             cfg.FetchConcurrency,
			Logger:            log,
			Metrics:           fetchMetrics,
		})
	default:
		source = ephemeris.NewSGP4Source(a.catalog)
	}
	if cfg.CacheSize > 0 {
		cached := ephemeris.NewCached(source, cfg.CacheSize, cfg.CacheTTL, fetchMetrics)
		// Fresher elements invalidate propagated series.
		a.catalog.Subscribe(func(ev kb.Event) {
			if ev.Type == kb.EventSatelliteUpdated {
				cached.Purge()
			}
		})
		source = cached
	}

	policy := core.DeferDrop
	if cfg.DeferPolicy == config.DeferQueueLatest {
		policy = core.DeferQueueLatest
	}
	status := &core.StatusText{}
	a.m = core.NewMap(
		canvas.NewRaster(cfg.Width, cfg.Height),
		canvas.NewRaster(cfg.Width, cfg.Height),
		core.WithMapLogger(log),
	)
	a.anim = core.NewAnimator(a.m,
		core.WithStatus(status),
		core.WithLogger(log),
		core.WithMetrics(animMetrics),
		core.WithInterval(cfg.Interval),
		core.WithTimeScale(cfg.TimeScale),
		core.WithStep(cfg.Step),
		core.WithDeferPolicy(policy),
	)
	a.tracker = server.NewTracker(source, a.anim, cfg.FetchConcurrency, log)
	a.hub = server.NewHub(log)
	a.anim.OnFrame(a.hub.PublishFrame)
	status.Subscribe(a.hub.PublishStatus)

	srv := server.New(server.Options{
		Map:      a.m,
		Animator: a.anim,
		Tracker:  a.tracker,
		Status:   status,
		Catalog:  a.catalog,
		Hub:      a.hub,
		Metrics:  animMetrics.Handler(),
		Observer: cfg.Observer,
		Logger:   log,
	})
	a.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return a, srv, nil
}

// prepare loads the catalog and world geometry and draws the base map.
// A geometry failure is logged and leaves the map undrawn.
func (a *app) prepare(ctx context.Context) {
	if a.cfg.TLEURL != "" {
		if _, err := a.client.LoadCatalog(ctx, a.cfg.TLEURL, a.catalog); err != nil {
			a.log.Error(ctx, "failed to load TLE catalog", logging.Err(err))
		}
	}

	fc, err := a.client.LoadGeometry(ctx, a.cfg.GeometryURL, a.cfg.GeometryObject)
	if err != nil {
		a.log.Error(ctx, "failed to load world geometry", logging.Err(err))
		return
	}
	if err := a.m.DrawBase(ctx, fc); err != nil {
		a.log.Error(ctx, "failed to draw base map", logging.Err(err))
		return
	}
	a.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	a.log.Info(ctx, "base map ready", logging.Int("features", len(fc.Features)))

	if len(a.cfg.Satellites) > 0 {
		if _, err := a.tracker.Track(ctx, a.cfg.Satellites, a.cfg.Observer); err != nil {
			a.log.Warn(ctx, "initial tracking request failed", logging.Err(err))
		}
	}
}

// run serves until ctx is cancelled. grpcLis may be nil.
func run(ctx context.Context, cfg config.Config, log logging.Logger, reg *prometheus.Registry, httpLis, grpcLis net.Listener) error {
	a, srv, err := newApp(cfg, log, reg)
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 2)
	go func() {
		log.Info(ctx, "serving HTTP", logging.String("addr", httpLis.Addr().String()))
		if err := httpSrv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var grpcSrv *grpc.Server
	if grpcLis != nil {
		grpcSrv = grpc.NewServer(
			grpc.StatsHandler(otelgrpc.NewServerHandler()),
			grpc.ChainUnaryInterceptor(a.animator.UnaryServerInterceptor()),
		)
		healthpb.RegisterHealthServer(grpcSrv, a.health)
		go func() {
			log.Info(ctx, "serving gRPC health", logging.String("addr", grpcLis.Addr().String()))
			if err := grpcSrv.Serve(grpcLis); err != nil {
				errCh <- err
			}
		}()
	}

	go a.prepare(ctx)

	select {
	case <-ctx.Done():
	case err = <-errCh:
	}

	log.Info(context.Background(), "shutting down satmap")
	a.anim.Stop()
	a.hub.Close()
	a.health.Shutdown()
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if shutdownErr := httpSrv.Shutdown(shutdownCtx); shutdownErr != nil && err == nil {
		err = shutdownErr
	}
	return err
}
