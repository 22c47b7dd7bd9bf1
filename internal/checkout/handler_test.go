package checkout_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/shop-checkout/internal/auth/authtest"
	"github.com/wichananm65/shop-checkout/internal/checkout"
	"github.com/wichananm65/shop-checkout/internal/order"
)

func makeApp(t *testing.T) (*fiber.App, fixture) {
	t.Helper()
	f := newFixture(t)
	app := authtest.NewApp()
	checkout.NewHandler(f.checkout).RegisterProtectedRoutes(app)
	return app, f
}

func postOrder(t *testing.T, app *fiber.App, userID, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest("POST", "/orders", r)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	res, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	out := map[string]any{}
	_ = json.NewDecoder(res.Body).Decode(&out)
	return res.StatusCode, out
}

func TestCreateOrder_Success(t *testing.T) {
	app, f := makeApp(t)
	if err := f.carts.AddItem(context.Background(), 42, 2, 2); err != nil {
		t.Fatal(err)
	}

	code, body := postOrder(t, app, "42", "")
	if code != fiber.StatusOK {
		t.Fatalf("expected 200, got %d: %v", code, body)
	}
	if body["status"] != string(order.StatusPending) {
		t.Errorf("expected Pending order, got %v", body["status"])
	}
	if body["totalAmount"] != "840" {
		t.Errorf("expected total 840, got %v", body["totalAmount"])
	}
}

func TestCreateOrder_EmptyCart(t *testing.T) {
	app, _ := makeApp(t)

	code, body := postOrder(t, app, "42", `{}`)
	if code != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
	if body["code"] != "EmptyCart" {
		t.Errorf("expected EmptyCart code, got %v", body["code"])
	}
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	app, f := makeApp(t)
	if err := f.carts.AddItem(context.Background(), 42, 4, 3); err != nil {
		t.Fatal(err)
	}

	code, body := postOrder(t, app, "42", "")
	if code != fiber.StatusConflict {
		t.Fatalf("expected 409, got %d", code)
	}
	if body["code"] != "InsufficientStock" || body["productId"] != float64(4) {
		t.Errorf("expected InsufficientStock naming product 4, got %v", body)
	}
}

func TestCreateOrder_PaymentReferenceInUse(t *testing.T) {
	app, f := makeApp(t)
	ctx := context.Background()
	if err := f.carts.AddItem(ctx, 1, 1, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := f.checkout.Checkout(ctx, 1, "pi_x"); err != nil {
		t.Fatal(err)
	}
	if err := f.carts.AddItem(ctx, 42, 1, 1); err != nil {
		t.Fatal(err)
	}

	code, body := postOrder(t, app, "42", `{"paymentReference":"pi_x"}`)
	if code != fiber.StatusConflict || body["code"] != "PaymentReferenceInUse" {
		t.Fatalf("expected 409 PaymentReferenceInUse, got %d %v", code, body)
	}
}

func TestCreateOrder_Unauthorized(t *testing.T) {
	app, _ := makeApp(t)

	if code, _ := postOrder(t, app, "", ""); code != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestCreateOrder_DeclinedPayment(t *testing.T) {
	app, f := makeApp(t)
	ctx := context.Background()
	if err := f.carts.AddItem(ctx, 42, 2, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := f.store.ApplyOutcome(ctx, "evt_declined", "pi_declined", order.StatusFailed); err != nil {
		t.Fatal(err)
	}

	code, body := postOrder(t, app, "42", `{"paymentReference":"pi_declined"}`)
	if code != fiber.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d: %v", code, body)
	}
	if body["code"] != "PaymentNotConfirmed" {
		t.Errorf("expected PaymentNotConfirmed code, got %v", body["code"])
	}
	if stock, _ := f.store.Stock(2); stock != 40 {
		t.Errorf("expected stock untouched, got %d", stock)
	}
}
