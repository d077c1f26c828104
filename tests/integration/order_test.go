//go:build integration

package integration

import (
	"net/http"
	"strings"
	"testing"
)

func checkout(t *testing.T, req checkoutRequest) orderResponse {
	t.Helper()

	resp := doPost(t, "/api/orders", req, withAPIKey(customerAPIKey))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		errResp := decodeJSON[errorResponse](t, resp)
		t.Fatalf("checkout: expected 201, got %d (%s)", resp.StatusCode, errResp.Message)
	}
	return decodeJSON[orderResponse](t, resp)
}

func TestCheckout(t *testing.T) {
	resetCart(t)
	addToCart(t, "BOOK-RB001", 1) // Roman Bestseller 19.99
	addToCart(t, "HOME-CD001", 1) // Coussin Décoratif 24.99
	addr := defaultAddressID(t)

	order := checkout(t, checkoutRequest{
		BillingAddressID:  addr,
		ShippingAddressID: addr,
	})

	if !strings.HasPrefix(order.Number, "SD") || len(order.Number) != 10 {
		t.Errorf("order number %q: want SD prefix and length 10", order.Number)
	}
	if order.Status != "pending" {
		t.Errorf("status: got %q, want pending", order.Status)
	}
	if order.PaymentStatus != "pending" {
		t.Errorf("payment status: got %q, want pending", order.PaymentStatus)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(order.Items))
	}

	assertMoney(t, "44.98", order.Subtotal, "subtotal")
	assertMoney(t, "9.00", order.TaxAmount, "tax")
	assertMoney(t, "5.00", order.ShippingCost, "shipping")
	assertMoney(t, "0", order.DiscountAmount, "discount")
	assertMoney(t, "58.98", order.TotalAmount, "total")

	// Checkout consumes the cart.
	resp := doGet(t, "/api/cart", withAPIKey(customerAPIKey))
	cart := decodeJSON[cartResponse](t, resp)
	resp.Body.Close()
	if !cart.IsEmpty {
		t.Error("expected cart to be empty after checkout")
	}
}

func TestCheckout_PercentageCoupon(t *testing.T) {
	resetCart(t)
	addToCart(t, "BOOK-RB001", 1)
	addToCart(t, "HOME-CD001", 1)
	addr := defaultAddressID(t)

	order := checkout(t, checkoutRequest{
		BillingAddressID:  addr,
		ShippingAddressID: addr,
		CouponCode:        "WELCOME10",
	})

	if order.CouponCode != "WELCOME10" {
		t.Errorf("coupon code: got %q, want WELCOME10", order.CouponCode)
	}
	// 10% of 44.98 = 4.50; tax stays on the undiscounted subtotal.
	assertMoney(t, "4.50", order.DiscountAmount, "discount")
	assertMoney(t, "9.00", order.TaxAmount, "tax")
	assertMoney(t, "54.48", order.TotalAmount, "total")
}

func TestCheckout_FreeShippingCoupon(t *testing.T) {
	resetCart(t)
	addToCart(t, "BOOK-RB001", 1)
	addToCart(t, "HOME-CD001", 1)
	addr := defaultAddressID(t)

	order := checkout(t, checkoutRequest{
		BillingAddressID:  addr,
		ShippingAddressID: addr,
		CouponCode:        "SHIPFREE",
	})

	assertMoney(t, "0", order.ShippingCost, "shipping")
	assertMoney(t, "0", order.DiscountAmount, "discount")
	assertMoney(t, "53.98", order.TotalAmount, "total")
}

func TestCheckout_UnknownCoupon(t *testing.T) {
	resetCart(t)
	addToCart(t, "BOOK-RB001", 1)
	addr := defaultAddressID(t)

	resp := doPost(t, "/api/orders", checkoutRequest{
		BillingAddressID:  addr,
		ShippingAddressID: addr,
		CouponCode:        "NONEXISTENT",
	}, withAPIKey(customerAPIKey))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}

	// The failed checkout leaves the cart intact.
	cartResp := doGet(t, "/api/cart", withAPIKey(customerAPIKey))
	cart := decodeJSON[cartResponse](t, cartResp)
	cartResp.Body.Close()
	if cart.IsEmpty {
		t.Error("expected cart to survive a failed checkout")
	}
}

func TestCheckout_CouponBelowMinimum(t *testing.T) {
	resetCart(t)
	addToCart(t, "BOOK-RB001", 1) // 19.99, below the 20.00 minimum
	addr := defaultAddressID(t)

	resp := doPost(t, "/api/orders", checkoutRequest{
		BillingAddressID:  addr,
		ShippingAddressID: addr,
		CouponCode:        "WELCOME10",
	}, withAPIKey(customerAPIKey))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestCheckout_EmptyCart(t *testing.T) {
	resetCart(t)
	addr := defaultAddressID(t)

	resp := doPost(t, "/api/orders", checkoutRequest{
		BillingAddressID:  addr,
		ShippingAddressID: addr,
	}, withAPIKey(customerAPIKey))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCheckout_GuestForbidden(t *testing.T) {
	resp := doPost(t, "/api/orders", checkoutRequest{
		BillingAddressID:  "demo-address",
		ShippingAddressID: "demo-address",
	}, withSessionKey("guest-checkout-session"))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestValidateCoupon(t *testing.T) {
	resp := doPost(t, "/api/coupons/validate", map[string]any{
		"code":        "WELCOME10",
		"orderAmount": "50.00",
	}, withAPIKey(customerAPIKey))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body := decodeJSON[struct {
		Code           string `json:"code"`
		Type           string `json:"type"`
		DiscountAmount string `json:"discountAmount"`
	}](t, resp)
	if body.Code != "WELCOME10" {
		t.Errorf("code: got %q, want WELCOME10", body.Code)
	}
	if body.Type != "percentage" {
		t.Errorf("type: got %q, want percentage", body.Type)
	}
	assertMoney(t, "5.00", body.DiscountAmount, "discount")
}

func TestCancelOrder(t *testing.T) {
	resetCart(t)
	addToCart(t, "MODE-TS001", 1)
	addr := defaultAddressID(t)
	placed := checkout(t, checkoutRequest{BillingAddressID: addr, ShippingAddressID: addr})

	resp := doPost(t, "/api/orders/"+placed.ID+"/cancel", nil, withAPIKey(customerAPIKey))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", resp.StatusCode)
	}
	cancelled := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()
	if cancelled.Status != "cancelled" {
		t.Errorf("status: got %q, want cancelled", cancelled.Status)
	}

	// Cancelling again is rejected: the order is terminal.
	resp = doPost(t, "/api/orders/"+placed.ID+"/cancel", nil, withAPIKey(customerAPIKey))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("second cancel: expected 422, got %d", resp.StatusCode)
	}
}

func TestAdminTransition(t *testing.T) {
	resetCart(t)
	addToCart(t, "MODE-TS001", 1)
	addr := defaultAddressID(t)
	placed := checkout(t, checkoutRequest{BillingAddressID: addr, ShippingAddressID: addr})

	// A customer-scoped key cannot drive fulfillment.
	resp := doPost(t, "/api/orders/"+placed.ID+"/status", map[string]any{
		"status": "confirmed",
	}, withAPIKey(customerAPIKey))
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("customer transition: expected 403, got %d", resp.StatusCode)
	}

	resp = doPost(t, "/api/orders/"+placed.ID+"/status", map[string]any{
		"status": "confirmed",
		"notes":  "payment verified",
	}, withAPIKey(adminAPIKey))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin transition: expected 200, got %d", resp.StatusCode)
	}
	confirmed := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()
	if confirmed.Status != "confirmed" {
		t.Errorf("status: got %q, want confirmed", confirmed.Status)
	}

	// Skipping straight to delivered is rejected.
	resp = doPost(t, "/api/orders/"+placed.ID+"/status", map[string]any{
		"status": "delivered",
	}, withAPIKey(adminAPIKey))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("invalid transition: expected 422, got %d", resp.StatusCode)
	}
}

func TestTrackOrder(t *testing.T) {
	resetCart(t)
	addToCart(t, "MODE-TS001", 1)
	addr := defaultAddressID(t)
	placed := checkout(t, checkoutRequest{BillingAddressID: addr, ShippingAddressID: addr})

	resp := doGet(t, "/api/orders/track/"+placed.Number, withAPIKey(customerAPIKey))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("track: expected 200, got %d", resp.StatusCode)
	}
	tracking := decodeJSON[trackingResponse](t, resp)
	resp.Body.Close()

	if tracking.OrderNumber != placed.Number {
		t.Errorf("order number: got %q, want %q", tracking.OrderNumber, placed.Number)
	}
	if tracking.Status != "pending" {
		t.Errorf("status: got %q, want pending", tracking.Status)
	}
}

func TestTrackOrder_NotFound(t *testing.T) {
	resp := doGet(t, "/api/orders/track/SD00000000", withAPIKey(customerAPIKey))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
