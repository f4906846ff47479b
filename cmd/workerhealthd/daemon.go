package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonwraymond/workerhealth/auth"
	"github.com/jonwraymond/workerhealth/bus"
	"github.com/jonwraymond/workerhealth/cache"
	"github.com/jonwraymond/workerhealth/collector"
	"github.com/jonwraymond/workerhealth/config"
	"github.com/jonwraymond/workerhealth/health"
	"github.com/jonwraymond/workerhealth/observe"
	"github.com/jonwraymond/workerhealth/revocation"
)

const shutdownTimeout = 10 * time.Second

// daemon owns every long-lived component of workerhealthd.
type daemon struct {
	cfg  config.Config
	inst observe.Instrumentation
	self bus.ThreadID

	registry  *health.Registry
	collector *collector.Collector
	monitor   *health.Monitor
	checker   *revocation.Checker
	auth      auth.Authenticator

	background []func(ctx context.Context)
	closers    []func() error
}

func newDaemon(ctx context.Context, cfg config.Config, inst observe.Instrumentation, self bus.ThreadID) (*daemon, error) {
	d := &daemon{
		cfg:      cfg,
		inst:     inst.OrNop(),
		self:     self,
		registry: health.NewRegistry(),
	}
	d.monitor = health.NewMonitor(d.registry)

	if err := d.init(ctx); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

func (d *daemon) init(ctx context.Context) error {
	if err := d.monitor.Register("memory", health.NewMemoryChecker(health.MemoryCheckerConfig{})); err != nil {
		return err
	}
	d.background = append(d.background, func(ctx context.Context) {
		d.monitor.Run(ctx, d.cfg.CheckInterval)
	})

	a, err := auth.New(d.cfg.Auth)
	if err != nil {
		return err
	}
	d.auth = a

	setupBus := d.setupHub
	if d.cfg.NATSURL != "" {
		setupBus = d.setupNATS
	}
	if err := setupBus(); err != nil {
		return err
	}
	return d.setupRevocation(ctx)
}

// setupHub runs every worker context in this process.
func (d *daemon) setupHub() error {
	hub := bus.NewHub(d.cfg.Workers)
	d.closers = append(d.closers, hub.Close)

	for _, ep := range hub.Workers() {
		reg := health.NewRegistry()
		if err := reg.Component("worker").Healthy("accepting requests"); err != nil {
			return err
		}
		c, err := collector.New(d.cfg.Collector, reg, ep, ep, collector.WithInstrumentation(d.inst))
		if err != nil {
			return err
		}
		d.closers = append(d.closers, c.Close)
	}

	self := hub.Main()
	c, err := collector.New(d.cfg.Collector, d.registry, self, self, collector.WithInstrumentation(d.inst))
	if err != nil {
		return err
	}
	d.collector = c
	d.closers = append(d.closers, c.Close)
	return nil
}

// setupNATS joins a bus shared with the other workerhealthd processes.
func (d *daemon) setupNATS() error {
	nc, err := bus.ConnectNATS(d.cfg.NATSURL, "workerhealthd-"+d.self.Label())
	if err != nil {
		return err
	}
	d.closers = append(d.closers, func() error {
		nc.Close()
		return nil
	})

	b, err := bus.NewNATSBus(nc, bus.NATSConfig{
		Self:   d.self,
		Peers:  d.cfg.Workers,
		Logger: d.inst.Logger,
	})
	if err != nil {
		return err
	}
	d.closers = append(d.closers, b.Close)

	if err := d.monitor.Register("bus", health.NewCheckerFunc("bus", func(context.Context) health.Result {
		if status := nc.Status(); status != nats.CONNECTED {
			return health.Unhealthy("nats "+status.String(), nil)
		}
		return health.Healthy("connected to " + nc.ConnectedUrlRedacted())
	})); err != nil {
		return err
	}

	c, err := collector.New(d.cfg.Collector, d.registry, b, b, collector.WithInstrumentation(d.inst))
	if err != nil {
		return err
	}
	d.collector = c
	d.closers = append(d.closers, c.Close)
	return nil
}

// revocationCachePolicy bounds stored entries by the configured TTL so the
// store never expires an entry earlier than its recorded ExpiresAt.
func revocationCachePolicy(cfg revocation.Config) cache.Policy {
	return cache.Policy{DefaultTTL: cfg.CacheTTL, MaxTTL: cfg.CacheTTL}
}

func (d *daemon) setupRevocation(ctx context.Context) error {
	policy := revocationCachePolicy(d.cfg.Revocation)
	var store cache.Cache
	if d.cfg.RedisURL != "" {
		client, err := cache.Connect(d.cfg.RedisURL)
		if err != nil {
			return err
		}
		rc := cache.NewRedisCache(client, "workerhealth:revocation:", policy)
		d.closers = append(d.closers, rc.Close)
		if err := d.monitor.Register("revocation.cache", health.NewCheckerFunc("revocation.cache", func(ctx context.Context) health.Result {
			if err := rc.Ping(ctx); err != nil {
				return health.Unhealthy("redis unreachable", err)
			}
			return health.Healthy("redis reachable")
		})); err != nil {
			return err
		}
		store = rc
	} else {
		mc := cache.NewMemoryCache(policy)
		d.background = append(d.background, func(ctx context.Context) {
			mc.RunSweeper(ctx, time.Minute)
		})
		store = mc
	}

	checker, err := revocation.NewChecker(store,
		revocation.WithVerifier(revocation.MethodOCSP, revocation.NewOCSPVerifier(nil, "")),
		revocation.WithVerifier(revocation.MethodCRL, revocation.NewCRLVerifier(nil, "")),
		revocation.WithInstrumentation(d.inst),
	)
	if err != nil {
		return err
	}
	d.checker = checker

	d.inst.Logger.Info(ctx, "revocation checking configured",
		observe.F("enabled", d.cfg.Revocation.Enabled),
		observe.F("method", string(d.cfg.Revocation.Method)),
		observe.F("failure_mode", string(d.cfg.Revocation.FailureMode)),
		observe.F("shared_cache", d.cfg.RedisURL != ""),
	)
	return nil
}

func (d *daemon) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	health.RegisterRoutes(r, d.registry, d.collector)
	r.With(auth.Require(d.auth, d.inst.Logger)).
		Post("/revocation/verify", revocationHandler(d.checker, d.cfg.Revocation))
	if d.cfg.Observe.Metrics.Enabled && d.cfg.Observe.Metrics.Exporter == "prometheus" {
		r.Handle("/metrics", promhttp.Handler())
	}
	return r
}

// serve runs background loops and the HTTP server until ctx is done.
func (d *daemon) serve(ctx context.Context) error {
	for _, fn := range d.background {
		go fn(ctx)
	}

	srv := &http.Server{
		Addr:              d.cfg.HTTPAddr,
		Handler:           d.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		d.inst.Logger.Info(ctx, "serving health status",
			observe.F("addr", d.cfg.HTTPAddr),
			observe.F("thread", d.self.Label()),
			observe.F("workers", d.cfg.Workers),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	d.inst.Logger.Info(shutdownCtx, "shutting down")
	return srv.Shutdown(shutdownCtx)
}

// Close releases components in reverse order of creation.
func (d *daemon) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
