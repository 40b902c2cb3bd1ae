package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/store"
)

const maxBodyBytes = 64 << 10

func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type storeView struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	LogoURL string `json:"logoUrl,omitempty"`
}

func toStoreView(v store.PublicView) storeView {
	return storeView{ID: v.ID, Name: v.Name, Phone: v.Phone, Address: v.Address, LogoURL: v.LogoURL}
}

type productView struct {
	ID          string      `json:"id"`
	CategoryID  *string     `json:"categoryId"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Price       json.Number `json:"price"`
	ImageURL    string      `json:"imageUrl,omitempty"`
}

type categoryView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type itemView struct {
	ID          string      `json:"id"`
	ProductID   *string     `json:"productId"`
	ProductName string      `json:"productName"`
	Quantity    int         `json:"quantity"`
	UnitPrice   json.Number `json:"unitPrice"`
	Subtotal    json.Number `json:"subtotal"`
}

func toItemViews(items []order.LineItem) []itemView {
	out := make([]itemView, len(items))
	for i, it := range items {
		out[i] = itemView{
			ID:          it.ID,
			ProductID:   optional(it.ProductID),
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   money(it.UnitPrice),
			Subtotal:    money(it.Subtotal),
		}
	}
	return out
}

type orderView struct {
	ID              string      `json:"id"`
	StoreID         string      `json:"storeId"`
	CustomerName    string      `json:"customerName"`
	CustomerPhone   string      `json:"customerPhone"`
	CustomerAddress string      `json:"customerAddress"`
	Total           json.Number `json:"total"`
	Status          string      `json:"status"`
	PaymentMethod   string      `json:"paymentMethod"`
	PaymentStatus   *string     `json:"paymentStatus"`
	PaymentID       *string     `json:"paymentId"`
	Notes           string      `json:"notes"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
	Items           []itemView  `json:"items,omitempty"`
}

func toOrderView(o *order.Order) orderView {
	return orderView{
		ID:              o.ID,
		StoreID:         o.StoreID,
		CustomerName:    o.Customer.Name,
		CustomerPhone:   o.Customer.Phone,
		CustomerAddress: o.Customer.Address,
		Total:           money(o.Total),
		Status:          string(o.Status),
		PaymentMethod:   string(o.PaymentMethod),
		PaymentStatus:   optional(string(o.PaymentStatus)),
		PaymentID:       optional(o.PaymentID),
		Notes:           o.Notes,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		Items:           toItemViews(o.Items),
	}
}

type trackingView struct {
	Order orderView  `json:"order"`
	Items []itemView `json:"items"`
	Store storeView  `json:"store"`
}

func toTrackingView(t *order.Tracking) trackingView {
	return trackingView{
		Order: toOrderView(t.Order),
		Items: toItemViews(t.Items),
		Store: toStoreView(t.Store),
	}
}

type updateView struct {
	OrderID       string    `json:"orderId"`
	Status        string    `json:"status"`
	PaymentStatus *string   `json:"paymentStatus"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func toUpdateView(u order.Update) updateView {
	return updateView{
		OrderID:       u.OrderID,
		Status:        string(u.Status),
		PaymentStatus: optional(string(u.PaymentStatus)),
		UpdatedAt:     u.UpdatedAt,
	}
}

func toProductView(p product.Product, imageBase string) productView {
	img := p.ImageURL
	if imageBase != "" && img != "" && !strings.Contains(img, "://") {
		img = strings.TrimRight(imageBase, "/") + "/" + strings.TrimLeft(img, "/")
	}
	return productView{
		ID:          p.ID,
		CategoryID:  optional(p.CategoryID),
		Name:        p.Name,
		Description: p.Description,
		Price:       money(p.Price),
		ImageURL:    img,
	}
}

// errorBody is the failure envelope shared by every endpoint.
type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zctx.From(r.Context()).Debug("Write response",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, r, status, errorBody{Error: message, Code: code})
}

// writeInternal logs err and hides it from the client.
func writeInternal(w http.ResponseWriter, r *http.Request, err error) {
	zctx.From(r.Context()).Error("Request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, r, http.StatusInternalServerError, "internal", "internal server error")
}

// decodeJSON reads a size-limited JSON body, rejecting unknown trailing data.
func decodeJSON(r *http.Request, v any) error {
	d := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := d.Decode(v); err != nil {
		return errors.Wrap(err, "decode body")
	}
	if d.More() {
		return errors.New("decode body: trailing data")
	}
	return nil
}
