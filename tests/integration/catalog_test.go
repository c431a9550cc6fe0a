//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestListItems(t *testing.T) {
	resp := doGet(t, "/api/items")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	items := decodeJSON[[]itemResponse](t, resp)
	if len(items) != 5 {
		t.Fatalf("expected 5 items, got %d", len(items))
	}
	for _, it := range items {
		if it.Price == nil {
			t.Errorf("item %s has no price breakdown", it.ID)
			continue
		}
		if it.Price.FinalPrice <= 0 {
			t.Errorf("item %s: final price %v, want > 0", it.ID, it.Price.FinalPrice)
		}
	}
}

func TestGetItem_Breakdown(t *testing.T) {
	resp := doGet(t, "/api/items/pendant-drop-si1")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	item := decodeJSON[itemResponse](t, resp)
	if item.Price == nil {
		t.Fatal("no price breakdown")
	}

	// 1.6g of 18k at 55500 per ten grams, 0.3ct of SI1 at 48000 per carat,
	// making 550 per gram, 45 flat hallmarking, 3% GST on the total.
	approx(t, "metal value", item.Price.MetalValue, 8880)
	approx(t, "gem value", item.Price.GemValue, 14400)
	approx(t, "making charge", item.Price.MakingCharge, 880)
	approx(t, "other charges", item.Price.OtherCharges, 45)
	approx(t, "tax", item.Price.Tax, 726.15)
	approx(t, "final price", item.Price.FinalPrice, 24931.15)
}

func TestGetItem_NotFound(t *testing.T) {
	resp := doGet(t, "/api/items/no-such-item")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	body := decodeJSON[errorResponse](t, resp)
	if body.Code != 404 {
		t.Errorf("error code: got %d, want 404", body.Code)
	}
}

func TestCart_AddAndPrice(t *testing.T) {
	const customer = "cust-cart-price"

	resp := doPost(t, "/api/customers/"+customer+"/cart/items",
		map[string]any{"item_id": "pendant-drop-si1", "quantity": 2})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("add item: expected 204, got %d", resp.StatusCode)
	}

	resp = doGet(t, "/api/customers/"+customer+"/cart")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get cart: expected 200, got %d", resp.StatusCode)
	}

	view := decodeJSON[cartResponse](t, resp)
	if len(view.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(view.Lines))
	}
	if view.Lines[0].Quantity != 2 {
		t.Errorf("quantity: got %d, want 2", view.Lines[0].Quantity)
	}
	approx(t, "line total", view.Lines[0].LineTotal, 49862.30)
	approx(t, "cart total", view.Total, 49862.30)
}

func TestCart_RuleDiscountAboveThreshold(t *testing.T) {
	const customer = "cust-cart-rule"

	// A single stud pair prices above the 50000 threshold, so the 3% cart
	// rule applies automatically.
	resp := doPost(t, "/api/customers/"+customer+"/cart/items",
		map[string]any{"item_id": "earring-stud-vs1", "quantity": 1})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("add item: expected 204, got %d", resp.StatusCode)
	}

	resp = doGet(t, "/api/customers/"+customer+"/cart")
	defer resp.Body.Close()

	view := decodeJSON[cartResponse](t, resp)
	approx(t, "original total", view.OriginalTotal, 72568.65)
	approx(t, "rule discount", view.RuleDiscount, 2177.06)
	approx(t, "total", view.Total, 70391.59)
}

func TestCart_Promo(t *testing.T) {
	const customer = "cust-cart-promo"

	resp := doPost(t, "/api/customers/"+customer+"/cart/items",
		map[string]any{"item_id": "pendant-drop-si1", "quantity": 1})
	resp.Body.Close()

	t.Run("invalid code rejected", func(t *testing.T) {
		resp := doPost(t, "/api/customers/"+customer+"/cart/promo",
			map[string]any{"code": "NOSUCHCODE"})
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", resp.StatusCode)
		}
	})

	t.Run("percent code discounts the cart", func(t *testing.T) {
		resp := doPost(t, "/api/customers/"+customer+"/cart/promo",
			map[string]any{"code": "WELCOME10"})
		resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("apply promo: expected 204, got %d", resp.StatusCode)
		}

		resp = doGet(t, "/api/customers/"+customer+"/cart")
		defer resp.Body.Close()
		view := decodeJSON[cartResponse](t, resp)

		if view.PromoCode != "WELCOME10" {
			t.Errorf("promo code: got %q, want WELCOME10", view.PromoCode)
		}
		approx(t, "promo discount", view.PromoDiscount, 2493.12)
		approx(t, "total", view.Total, 22438.04)
	})

	t.Run("remove promo restores total", func(t *testing.T) {
		resp := doDelete(t, "/api/customers/"+customer+"/cart/promo")
		resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("remove promo: expected 204, got %d", resp.StatusCode)
		}

		resp = doGet(t, "/api/customers/"+customer+"/cart")
		defer resp.Body.Close()
		view := decodeJSON[cartResponse](t, resp)
		if view.PromoCode != "" {
			t.Errorf("promo code still attached: %q", view.PromoCode)
		}
		approx(t, "total", view.Total, 24931.15)
	})
}
