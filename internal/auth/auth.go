package auth

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v2"
	"github.com/golang-jwt/jwt/v4"
)

// LocalsKey is where jwtware stores the parsed *jwt.Token.
const LocalsKey = "user"

const RoleAdmin = "admin"

// Middleware validates bearer tokens signed with secret. Requests whose path
// starts with one of the public prefixes skip validation.
func Middleware(secret string, public ...string) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: []byte(secret),
		ContextKey: LocalsKey,
		Filter: func(c *fiber.Ctx) bool {
			p := c.Path()
			for _, prefix := range public {
				if strings.HasPrefix(p, prefix) {
					return true
				}
			}
			return false
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
		},
	})
}

func claims(c *fiber.Ctx) (jwt.MapClaims, bool) {
	tok, ok := c.Locals(LocalsKey).(*jwt.Token)
	if !ok || tok == nil {
		return nil, false
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	return mc, ok
}

// UserID extracts the caller identity from the user_id claim.
func UserID(c *fiber.Ctx) (int64, error) {
	mc, ok := claims(c)
	if !ok {
		return 0, fiber.ErrUnauthorized
	}
	raw, ok := mc["user_id"]
	if !ok {
		return 0, fiber.ErrUnauthorized
	}

	var id int64
	switch v := raw.(type) {
	case float64:
		id = int64(v)
	case int:
		id = int64(v)
	case int64:
		id = v
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fiber.ErrUnauthorized
		}
		id = n
	default:
		return 0, fiber.ErrUnauthorized
	}
	if id <= 0 {
		return 0, fiber.ErrUnauthorized
	}
	return id, nil
}

// IsAdmin reports whether the role claim grants privileged reads.
func IsAdmin(c *fiber.Ctx) bool {
	mc, ok := claims(c)
	if !ok {
		return false
	}
	role, _ := mc["role"].(string)
	return role == RoleAdmin
}

// RequireAdmin rejects non-admin callers with 403.
func RequireAdmin(c *fiber.Ctx) error {
	if _, err := UserID(c); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	if !IsAdmin(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"message": "forbidden"})
	}
	return c.Next()
}

// IssueToken signs an HS256 token carrying user_id, an optional role and exp.
func IssueToken(secret string, userID int64, role string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(ttl).Unix(),
	}
	if role != "" {
		claims["role"] = role
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
