// Package authtest injects caller identity into fiber test apps without
// signing real tokens.
package authtest

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/wichananm65/shop-checkout/internal/auth"
)

// Middleware stores a *jwt.Token built from the X-User-ID and X-User-Role
// headers, mimicking what jwtware leaves behind after validation.
func Middleware(c *fiber.Ctx) error {
	if v := c.Get("X-User-ID"); v != "" {
		id, err := strconv.Atoi(v)
		if err == nil {
			claims := jwt.MapClaims{"user_id": id}
			if role := c.Get("X-User-Role"); role != "" {
				claims["role"] = role
			}
			c.Locals(auth.LocalsKey, &jwt.Token{Claims: claims})
		}
	}
	return c.Next()
}

// NewApp returns a fiber app with Middleware installed.
func NewApp() *fiber.App {
	app := fiber.New()
	app.Use(Middleware)
	return app
}
