package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/Skotchmaster/storefront/internal/config"
	"github.com/Skotchmaster/storefront/internal/es"
	"github.com/Skotchmaster/storefront/internal/handlers"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/metrics"
	"github.com/Skotchmaster/storefront/internal/middleware/auth"
	"github.com/Skotchmaster/storefront/internal/middleware/csrf"
	"github.com/Skotchmaster/storefront/internal/mykafka"
	"github.com/Skotchmaster/storefront/internal/remote"
	"github.com/Skotchmaster/storefront/internal/service/cart"
	"github.com/Skotchmaster/storefront/internal/service/catalog"
	"github.com/Skotchmaster/storefront/internal/service/checkout"
	"github.com/Skotchmaster/storefront/internal/service/order"
	"github.com/Skotchmaster/storefront/internal/service/payment"
	"github.com/Skotchmaster/storefront/internal/service/search"
	"github.com/Skotchmaster/storefront/internal/service/session"
	"github.com/Skotchmaster/storefront/internal/store"
	httpserver "github.com/Skotchmaster/storefront/internal/transport/http"
	loggingmw "github.com/Skotchmaster/storefront/pkg/middleware/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.ServiceName, cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server_stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	st, err := store.Open(openCtx, store.Options{
		Driver:    cfg.StoreDriver,
		DSN:       cfg.StoreDSN,
		RedisURL:  cfg.RedisURL,
		Namespace: cfg.ServiceName,
	})
	cancel()
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("store_close_failed", "error", err)
		}
	}()

	var events mykafka.Publisher = mykafka.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		p, err := mykafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			return err
		}
		events = p
	}
	defer func() {
		if err := events.Close(); err != nil {
			logger.Warn("kafka_close_failed", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	rc := remote.NewClient(cfg.RemoteBase, cfg.RemoteTimeout, remote.WithWebhookURL(cfg.OrderWebhookURL))

	cat := &catalog.Service{Store: st, Remote: rc, Events: events, Metrics: m}
	searchSvc := &search.Service{Catalog: cat}
	if cfg.ESURL != "" {
		esCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		client, err := es.NewClient(esCtx, es.Options{URL: cfg.ESURL, User: cfg.ESUser, Password: cfg.ESPassword})
		cancel()
		if err != nil {
			logger.Warn("search_index_disabled", "error", err)
		} else {
			idx := search.NewIndex(client, cfg.ESIndex)
			cat.Index = idx
			searchSvc.Index = idx
		}
	}

	sessions := session.NewManager(
		session.Deps{Store: st, Remote: rc, Events: events, Metrics: m},
		session.Config{Secret: cfg.JWTSecret, TTL: cfg.SessionTTL, Latency: cfg.AuthLatency},
	)
	carts := cart.NewRegistry(cart.Deps{Store: st, Remote: rc, Events: events, Metrics: m, Logger: logger})
	orders := &order.Service{Repo: order.NewRepository(st), Remote: rc, Events: events, Metrics: m}
	payments := payment.NewSimulator(st, cfg.PaymentDelay, m)
	co := checkout.New(checkout.Deps{Carts: carts, Gateway: payments, Orders: orders, Remote: rc, Metrics: m})

	e := echo.New()
	e.HideBanner = true
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowCredentials: !(len(cfg.CORSOrigins) == 1 && cfg.CORSOrigins[0] == "*"),
	}))
	e.Use(m.Middleware())
	if cfg.CSRFEnabled {
		e.Use(csrf.Middleware(csrf.Config{
			TrustedOrigins: cfg.CORSOrigins,
			SkipPaths:      []string{"/api/v1/auth/login", "/api/v1/auth/register", "/metrics"},
			SkipPrefixes:   []string{"/health/"},
			Secure:         true,
		}))
	}

	httpserver.Register(e, &httpserver.Deps{
		Guard:           auth.NewGuard(sessions),
		AuthHandler:     &handlers.AuthHandler{Sessions: sessions, Carts: carts},
		CatalogHandler:  &handlers.CatalogHandler{Catalog: cat},
		SearchHandler:   &handlers.SearchHandler{Svc: searchSvc},
		CartHandler:     &handlers.CartHandler{Carts: carts, Catalog: cat},
		CheckoutHandler: &handlers.CheckoutHandler{Checkout: co},
		OrderHandler:    &handlers.OrderHandler{Orders: orders},
		PaymentHandler:  &handlers.PaymentHandler{Payments: payments},
		Gatherer:        reg,
		Ready: func(c echo.Context) error {
			_, err := st.Get(c.Request().Context(), "health:ping")
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
			return nil
		},
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      45 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server_listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("server_shutting_down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		sweepIdle(gctx, logger, cfg.IdleTTL, carts, co)
		return nil
	})

	err = g.Wait()

	// pending cart pushes and order webhooks finish before the store goes away
	carts.Close()
	co.Wait()

	logger.Info("server_stopped")
	return err
}

// sweepIdle drops cart managers and checkout flows nobody has touched for idle.
// Carts come back from the store on their next use.
func sweepIdle(ctx context.Context, logger *slog.Logger, idle time.Duration, carts *cart.Registry, co *checkout.Service) {
	if idle <= 0 {
		return
	}
	t := time.NewTicker(idle / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			nc, nf := carts.Sweep(idle), co.Prune(idle)
			if nc > 0 || nf > 0 {
				logger.Debug("idle_swept", "carts", nc, "checkout_flows", nf, "live_carts", carts.Len())
			}
		}
	}
}
