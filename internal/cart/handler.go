package cart

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/shop-checkout/internal/auth"
	"github.com/wichananm65/shop-checkout/internal/product"
)

// Handler exposes the cart store over HTTP.
type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) RegisterProtectedRoutes(app *fiber.App) {
	app.Get("/cart", h.getCart)
	app.Delete("/cart", h.clearCart)
	app.Post("/cart/add", h.addItem)
	app.Post("/cart/update", h.updateItem)
	app.Post("/cart/remove", h.removeItem)
}

type cartRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

func (h *Handler) getCart(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	return h.respondWithCart(c, userID)
}

func (h *Handler) addItem(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	payload := new(cartRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	if err := h.service.AddItem(c.UserContext(), userID, payload.ProductID, payload.Quantity); err != nil {
		return writeError(c, err)
	}
	return h.respondWithCart(c, userID)
}

func (h *Handler) updateItem(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	payload := new(cartRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	if err := h.service.SetQuantity(c.UserContext(), userID, payload.ProductID, payload.Quantity); err != nil {
		return writeError(c, err)
	}
	return h.respondWithCart(c, userID)
}

func (h *Handler) removeItem(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	payload := new(cartRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	if err := h.service.RemoveItem(c.UserContext(), userID, payload.ProductID); err != nil {
		return writeError(c, err)
	}
	return h.respondWithCart(c, userID)
}

func (h *Handler) clearCart(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	if err := h.service.ClearCart(c.UserContext(), userID); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) respondWithCart(c *fiber.Ctx, userID int64) error {
	view, err := h.service.GetCart(c.UserContext(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(view)
}

func writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrInvalidQuantity):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error(), "code": "InvalidQuantity"})
	case errors.Is(err, ErrInvalidProduct):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	case errors.Is(err, product.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "product not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
}
