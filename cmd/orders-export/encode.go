package main

import (
	"io"
	"log/slog"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/order"
)

// writeOrders writes one JSON object per line.
func writeOrders(w io.Writer, orders []order.Order) error {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	for i := range orders {
		e.Reset()
		encodeOrder(e, &orders[i])
		if _, err := w.Write(append(e.Bytes(), '\n')); err != nil {
			return errors.Wrapf(err, "write order %s", orders[i].ID)
		}
		if (i+1)%progressEvery == 0 {
			slog.Info("export progress", slog.Int("written", i+1), slog.Int("total", len(orders)))
		}
	}
	return nil
}

func money(e *jx.Encoder, d decimal.Decimal) {
	e.RawStr(d.StringFixed(2))
}

func optStr(e *jx.Encoder, s string) {
	if s == "" {
		e.Null()
		return
	}
	e.Str(s)
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("storeId")
	e.Str(o.StoreID)
	e.FieldStart("createdAt")
	e.Str(o.CreatedAt.UTC().Format(time.RFC3339))
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("customer")
	e.ObjStart()
	e.FieldStart("name")
	e.Str(o.Customer.Name)
	e.FieldStart("phone")
	e.Str(o.Customer.Phone)
	e.FieldStart("address")
	e.Str(o.Customer.Address)
	e.ObjEnd()
	e.FieldStart("paymentMethod")
	e.Str(string(o.PaymentMethod))
	e.FieldStart("paymentStatus")
	optStr(e, string(o.PaymentStatus))
	e.FieldStart("paymentId")
	optStr(e, o.PaymentID)
	e.FieldStart("total")
	money(e, o.Total)
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range o.Items {
		e.ObjStart()
		e.FieldStart("productId")
		optStr(e, it.ProductID)
		e.FieldStart("name")
		e.Str(it.ProductName)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("unitPrice")
		money(e, it.UnitPrice)
		e.FieldStart("subtotal")
		money(e, it.Subtotal)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}
