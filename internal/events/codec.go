package events

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/order"
)

func encodeUpdate(u order.Update) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.Obj(func(e *jx.Encoder) {
		e.Field("orderId", func(e *jx.Encoder) { e.Str(u.OrderID) })
		e.Field("storeId", func(e *jx.Encoder) { e.Str(u.StoreID) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(u.Status)) })
		e.Field("paymentStatus", func(e *jx.Encoder) {
			if u.PaymentStatus == order.PaymentUnset {
				e.Null()
				return
			}
			e.Str(string(u.PaymentStatus))
		})
		e.Field("updatedAt", func(e *jx.Encoder) { e.Str(u.UpdatedAt.UTC().Format(time.RFC3339Nano)) })
	})
	return append([]byte(nil), e.Bytes()...)
}

func decodeUpdate(data []byte) (order.Update, error) {
	var u order.Update
	err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		if d.Next() == jx.Null {
			return d.Null()
		}
		switch string(key) {
		case "orderId":
			v, err := d.Str()
			u.OrderID = v
			return err
		case "storeId":
			v, err := d.Str()
			u.StoreID = v
			return err
		case "status":
			v, err := d.Str()
			u.Status = order.Status(v)
			return err
		case "paymentStatus":
			v, err := d.Str()
			u.PaymentStatus = order.PaymentStatus(v)
			return err
		case "updatedAt":
			v, err := d.Str()
			if err != nil {
				return err
			}
			t, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				return errors.Wrap(err, "updatedAt")
			}
			u.UpdatedAt = t
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return order.Update{}, errors.Wrap(err, "decode update")
	}
	if u.OrderID == "" {
		return order.Update{}, errors.New("decode update: missing orderId")
	}
	return u, nil
}
