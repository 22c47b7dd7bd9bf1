package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/wichananm65/shop-checkout/internal/auth"
	"github.com/wichananm65/shop-checkout/internal/cart"
	"github.com/wichananm65/shop-checkout/internal/checkout"
	"github.com/wichananm65/shop-checkout/internal/config"
	"github.com/wichananm65/shop-checkout/internal/database"
	"github.com/wichananm65/shop-checkout/internal/database/inmemory"
	"github.com/wichananm65/shop-checkout/internal/metrics"
	"github.com/wichananm65/shop-checkout/internal/order"
	"github.com/wichananm65/shop-checkout/internal/outbox"
	"github.com/wichananm65/shop-checkout/internal/payment"
	"github.com/wichananm65/shop-checkout/internal/product"
)

// backend is the storage the HTTP features run on.
type backend struct {
	name     string
	products product.Repository
	seeder   product.Seeder
	carts    cart.Repository
	orders   order.Repository
	checkout checkout.Store
	payments payment.Store
	outbox   outbox.Store
	close    func() error
}

func newInMemoryBackend() backend {
	s := inmemory.New()
	return backend{
		name:     "memory",
		products: s.Products(),
		seeder:   s.Products(),
		carts:    s.Carts(),
		orders:   s.Orders(),
		checkout: s,
		payments: s,
		outbox:   s,
		close:    func() error { return nil },
	}
}

func newPostgresBackend(ctx context.Context, cfg config.Config) (backend, error) {
	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return backend{}, err
	}
	if err := database.Migrate(db); err != nil {
		_ = db.Close()
		return backend{}, err
	}

	products := product.NewPostgresRepository(db)
	return backend{
		name:     "postgres",
		products: products,
		seeder:   products,
		carts:    cart.NewPostgresRepository(db),
		orders:   order.NewPostgresRepository(db),
		checkout: checkout.NewPostgresStore(db, cfg.CheckoutLockTimeout),
		payments: payment.NewPostgresStore(db),
		outbox:   outbox.NewPostgresStore(db),
		close:    db.Close,
	}, nil
}

// newApp wires every feature onto a fiber app. Routes registered before the
// auth middleware are public.
func newApp(cfg config.Config, b backend, cache cart.Cache, m *metrics.Metrics, log *slog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "shop-checkout",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(accessLog(log))
	app.Use(m.Middleware())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "store": b.name})
	})
	app.Get("/metrics", m.Handler())

	if cfg.AllowDevTokens {
		app.Post("/dev/token", devToken(cfg.JWTSecret))
	}

	carts := cart.NewService(b.carts, b.products, cache, log)
	checkouts := checkout.NewService(b.checkout, carts, checkout.Options{
		MaxAttempts: cfg.CheckoutMaxAttempts,
		Backoff:     10 * time.Millisecond,
		Logger:      log,
		Metrics:     m,
	})
	ledger := order.NewService(b.orders)
	gateway := payment.NewBreakerGateway(payment.DevGateway{})
	signer := payment.NewSigner(cfg.PaymentWebhookSecret, payment.DefaultSignatureMaxAge)
	payments := payment.NewService(gateway, b.payments, signer, cfg.PaymentCurrency, m, log)

	paymentHandler := payment.NewHandler(payments)
	paymentHandler.RegisterPublicRoutes(app)

	app.Use(auth.Middleware(cfg.JWTSecret, "/health", "/metrics", "/payments/webhook", "/dev/"))

	cart.NewHandler(carts).RegisterProtectedRoutes(app)
	checkout.NewHandler(checkouts).RegisterProtectedRoutes(app)
	order.NewHandler(ledger).RegisterProtectedRoutes(app)
	paymentHandler.RegisterProtectedRoutes(app)

	return app
}

func accessLog(log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
		rid, _ := c.Locals("requestid").(string)
		log.InfoContext(c.UserContext(), "http request",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"request_id", rid,
		)
		return err
	}
}

type devTokenRequest struct {
	UserID int64  `json:"userId"`
	Role   string `json:"role"`
}

// devToken mints bearer tokens for local testing. Only mounted with
// ALLOW_DEV_TOKENS=1.
func devToken(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := new(devTokenRequest)
		if err := c.BodyParser(payload); err != nil || payload.UserID <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "userId is required"})
		}
		tok, err := auth.IssueToken(secret, payload.UserID, payload.Role, 72*time.Hour)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "failed to generate token"})
		}
		return c.JSON(fiber.Map{"token": tok})
	}
}
