package payment

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/wichananm65/shop-checkout/internal/auth"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

// RegisterPublicRoutes mounts the webhook, which authenticates by signature.
func (h *Handler) RegisterPublicRoutes(app *fiber.App) {
	app.Post("/payments/webhook", h.webhook)
}

func (h *Handler) RegisterProtectedRoutes(app *fiber.App) {
	app.Post("/payments/intent", h.createIntent)
}

type intentRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

func (h *Handler) createIntent(c *fiber.Ctx) error {
	if _, err := auth.UserID(c); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	payload := new(intentRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	intent, err := h.service.CreateIntent(c.UserContext(), payload.Amount, payload.Currency)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidCurrency):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
		default:
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"message": err.Error()})
		}
	}
	return c.JSON(intent)
}

func (h *Handler) webhook(c *fiber.Ctx) error {
	applied, err := h.service.HandleWebhook(c.UserContext(), c.Body(), c.Get(SignatureHeader))
	if err != nil {
		switch {
		case errors.Is(err, ErrWebhookSignatureInvalid):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error(), "code": "WebhookSignatureInvalid"})
		case errors.Is(err, ErrInvalidWebhookPayload):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
		case errors.Is(err, ErrPaymentNotConfirmed):
			// acknowledged so the gateway stops redelivering
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"message": err.Error(), "code": "PaymentNotConfirmed"})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
		}
	}
	return c.JSON(fiber.Map{"received": true, "applied": applied})
}
