package checkout

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/shop-checkout/internal/auth"
	"github.com/wichananm65/shop-checkout/internal/cart"
	"github.com/wichananm65/shop-checkout/internal/payment"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) RegisterProtectedRoutes(app *fiber.App) {
	app.Post("/orders", h.createOrder)
}

type createOrderRequest struct {
	PaymentReference string `json:"paymentReference"`
}

func (h *Handler) createOrder(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	payload := new(createOrderRequest)
	if len(c.Body()) > 0 {
		if err := c.BodyParser(payload); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
		}
	}

	created, err := h.service.Checkout(c.UserContext(), userID, payload.PaymentReference)
	if err != nil {
		var stockErr *InsufficientStockError
		switch {
		case errors.Is(err, ErrEmptyCart):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error(), "code": "EmptyCart"})
		case errors.As(err, &stockErr):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"message":   err.Error(),
				"code":      "InsufficientStock",
				"productId": stockErr.ProductID,
				"requested": stockErr.Requested,
				"available": stockErr.Available,
			})
		case errors.Is(err, ErrConcurrentConflict):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": err.Error(), "code": "ConcurrentConflict"})
		case errors.Is(err, cart.ErrInvalidQuantity):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error(), "code": "InvalidQuantity"})
		case errors.Is(err, payment.ErrPaymentNotConfirmed):
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"message": "payment for this reference was not confirmed", "code": "PaymentNotConfirmed"})
		case errors.Is(err, ErrPaymentReferenceInUse):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": err.Error(), "code": "PaymentReferenceInUse"})
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return c.Status(fiber.StatusRequestTimeout).JSON(fiber.Map{"message": "request cancelled"})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
		}
	}
	return c.Status(fiber.StatusOK).JSON(created)
}
