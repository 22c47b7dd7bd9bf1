package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/wichananm65/shop-checkout/internal/cart"
	"github.com/wichananm65/shop-checkout/internal/config"
	"github.com/wichananm65/shop-checkout/internal/logger"
	"github.com/wichananm65/shop-checkout/internal/metrics"
	"github.com/wichananm65/shop-checkout/internal/outbox"
	"github.com/wichananm65/shop-checkout/internal/product"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{Service: "shop-checkout", Env: cfg.AppEnv, Level: cfg.LogLevel})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	if cfg.PaymentWebhookSecret == "" {
		log.Warn("PAYMENT_WEBHOOK_SECRET is not set, every webhook will be rejected")
	}

	var (
		b   backend
		err error
	)
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL is not set, using the in-memory store")
		b = newInMemoryBackend()
	} else {
		b, err = newPostgresBackend(ctx, cfg)
		if err != nil {
			return err
		}
	}
	defer func() { _ = b.close() }()

	if cfg.SeedProducts {
		if err := b.seeder.Seed(ctx, product.SampleProducts()); err != nil {
			return fmt.Errorf("seed products: %w", err)
		}
		log.Info("seeded sample products")
	}

	var cache cart.Cache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		cache = cart.NewRedisCache(rdb, cfg.CartCacheTTL)
	}

	var publisher outbox.Publisher = outbox.LogPublisher{Log: log}
	if len(cfg.KafkaBrokers) > 0 {
		kp := outbox.NewKafkaPublisher(cfg.KafkaBrokers, cfg.OutboxTopic)
		defer kp.Close()
		publisher = kp
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	app := newApp(cfg, b, cache, m, log)
	relay := outbox.NewRelay(b.outbox, publisher, cfg.OutboxInterval, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting server", "addr", cfg.Addr, "store", b.name)
		return app.Listen(cfg.Addr)
	})
	g.Go(func() error {
		return relay.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})
	return g.Wait()
}
