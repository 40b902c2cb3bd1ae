//go:build integration

package integration

import (
	"net/http"
	"slices"
	"testing"
)

func TestMenu(t *testing.T) {
	resp := doGet(t, "/api/stores/"+demoStore+"/menu")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	menu := decodeJSON[menuResponse](t, resp)
	if menu.Store.ID != demoStore {
		t.Errorf("store id: got %q, want %q", menu.Store.ID, demoStore)
	}
	if len(menu.Categories) != 3 {
		t.Errorf("categories: got %d, want 3", len(menu.Categories))
	}
	if len(menu.Products) != availableProducts {
		t.Fatalf("products: got %d, want %d", len(menu.Products), availableProducts)
	}
	for _, p := range menu.Products {
		if p.ID == "demo-pudim" {
			t.Error("unavailable product listed on the menu")
		}
		if p.Price == "" {
			t.Errorf("product %s has no price", p.ID)
		}
	}
	for _, m := range []string{"cash", "debit"} {
		if !slices.Contains(menu.PaymentMethods, m) {
			t.Errorf("payment methods %v lack %q", menu.PaymentMethods, m)
		}
	}
	if slices.Contains(menu.PaymentMethods, "pix") {
		t.Error("pix offered without gateway credentials")
	}
}

func TestMenu_UnknownStore(t *testing.T) {
	resp := doGet(t, "/api/stores/nowhere/menu")
	expectError(t, resp, http.StatusNotFound, "store_not_found")
}
