package cart_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/shop-checkout/internal/auth/authtest"
	"github.com/wichananm65/shop-checkout/internal/cart"
	"github.com/wichananm65/shop-checkout/internal/database/inmemory"
	"github.com/wichananm65/shop-checkout/internal/logger"
	"github.com/wichananm65/shop-checkout/internal/product"
)

func makeAppWithCartHandler(t *testing.T) *fiber.App {
	t.Helper()
	store := inmemory.New()
	if err := store.Products().Seed(context.Background(), product.SampleProducts()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc := cart.NewService(store.Carts(), store.Products(), nil, logger.Discard())
	app := authtest.NewApp()
	cart.NewHandler(svc).RegisterProtectedRoutes(app)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, body, userID string) (int, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	res, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	b, _ := io.ReadAll(res.Body)
	return res.StatusCode, string(b)
}

func TestCartRoutes_Registered(t *testing.T) {
	app := makeAppWithCartHandler(t)

	routes := map[string]bool{}
	for _, grp := range app.Stack() {
		for _, r := range grp {
			routes[r.Method+" "+r.Path] = true
		}
	}
	for _, want := range []string{"GET /cart", "DELETE /cart", "POST /cart/add", "POST /cart/update", "POST /cart/remove"} {
		if !routes[want] {
			t.Fatalf("expected route %q to be registered", want)
		}
	}
}

func TestCartRoutes_Unauthorized(t *testing.T) {
	app := makeAppWithCartHandler(t)

	if code, _ := doJSON(t, app, "GET", "/cart", "", ""); code != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 for unauthenticated GET, got %d", code)
	}
	if code, _ := doJSON(t, app, "POST", "/cart/add", `{"productId":2,"quantity":1}`, ""); code != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 for unauthenticated POST, got %d", code)
	}
}

func TestCartRoutes_Flow(t *testing.T) {
	app := makeAppWithCartHandler(t)

	code, body := doJSON(t, app, "POST", "/cart/add", `{"productId":3,"quantity":2}`, "42")
	if code != fiber.StatusOK {
		t.Fatalf("expected 200 for add, got %d: %s", code, body)
	}
	code, body = doJSON(t, app, "POST", "/cart/add", `{"productId":3,"quantity":3}`, "42")
	if code != fiber.StatusOK {
		t.Fatalf("expected 200 for second add, got %d", code)
	}
	var view cart.View
	if err := json.Unmarshal([]byte(body), &view); err != nil {
		t.Fatalf("decode cart: %v", err)
	}
	if len(view.Items) != 1 || view.Items[0].Quantity != 5 {
		t.Fatalf("expected one line with quantity 5, got %+v", view.Items)
	}

	code, body = doJSON(t, app, "POST", "/cart/update", `{"productId":3,"quantity":0}`, "42")
	if code != fiber.StatusOK {
		t.Fatalf("expected 200 for update, got %d", code)
	}
	if strings.Contains(body, `"productId":3`) {
		t.Fatalf("expected product 3 removed, got %s", body)
	}

	code, _ = doJSON(t, app, "POST", "/cart/remove", `{"productId":3}`, "42")
	if code != fiber.StatusOK {
		t.Fatalf("expected idempotent remove to return 200, got %d", code)
	}

	doJSON(t, app, "POST", "/cart/add", `{"productId":1,"quantity":1}`, "42")
	code, _ = doJSON(t, app, "DELETE", "/cart", "", "42")
	if code != fiber.StatusNoContent {
		t.Fatalf("expected 204 for clear cart, got %d", code)
	}
	_, body = doJSON(t, app, "GET", "/cart", "", "42")
	if strings.Contains(body, "productId") {
		t.Fatalf("expected empty cart after clear, got %s", body)
	}
}

func TestCartRoutes_InvalidQuantity(t *testing.T) {
	app := makeAppWithCartHandler(t)

	code, body := doJSON(t, app, "POST", "/cart/add", `{"productId":3,"quantity":0}`, "42")
	if code != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
	if !strings.Contains(body, "InvalidQuantity") {
		t.Fatalf("expected InvalidQuantity code, got %s", body)
	}
}

func TestCartRoutes_QuantityAboveColumnRange(t *testing.T) {
	app := makeAppWithCartHandler(t)

	code, body := doJSON(t, app, "POST", "/cart/add", `{"productId":3,"quantity":9223372036854775807}`, "42")
	if code != fiber.StatusBadRequest || !strings.Contains(body, "InvalidQuantity") {
		t.Fatalf("expected 400 InvalidQuantity, got %d %s", code, body)
	}
	_, body = doJSON(t, app, "GET", "/cart", "", "42")
	if strings.Contains(body, "productId") {
		t.Fatalf("expected cart to stay empty, got %s", body)
	}
}

func TestCartRoutes_UnknownProduct(t *testing.T) {
	app := makeAppWithCartHandler(t)

	if code, _ := doJSON(t, app, "POST", "/cart/add", `{"productId":77,"quantity":1}`, "42"); code != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
	if code, _ := doJSON(t, app, "POST", "/cart/add", `{"quantity":1}`, "42"); code != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for missing productId, got %d", code)
	}
}
