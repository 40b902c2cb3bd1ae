package mercadopago

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/payment"
)

func encodePayment(req payment.GatewayRequest) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	e.FieldStart("transaction_amount")
	e.RawStr(req.Amount.StringFixed(2))
	e.FieldStart("description")
	e.Str(req.Description)
	e.FieldStart("payment_method_id")
	e.Str(req.MethodID)
	if req.Token != "" {
		e.FieldStart("token")
		e.Str(req.Token)
	}
	if req.Installments > 0 {
		e.FieldStart("installments")
		e.Int(req.Installments)
	}
	e.FieldStart("payer")
	e.ObjStart()
	e.FieldStart("email")
	e.Str(req.Payer.Email)
	if req.Payer.FirstName != "" {
		e.FieldStart("first_name")
		e.Str(req.Payer.FirstName)
	}
	if req.Payer.LastName != "" {
		e.FieldStart("last_name")
		e.Str(req.Payer.LastName)
	}
	if id := req.Payer.Identification; id != nil {
		e.FieldStart("identification")
		e.ObjStart()
		e.FieldStart("type")
		e.Str(id.Type)
		e.FieldStart("number")
		e.Str(id.Number)
		e.ObjEnd()
	}
	e.ObjEnd()
	e.ObjEnd()

	return append([]byte(nil), e.Bytes()...)
}

// decodePayment reads the fields the service needs from a payment resource.
// Numeric ids are kept in their textual form.
func decodePayment(data []byte) (*payment.GatewayPayment, error) {
	var p payment.GatewayPayment
	d := jx.DecodeBytes(data)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "id":
			v, err := scalar(d)
			if err != nil {
				return errors.Wrap(err, "id")
			}
			p.ID = v
		case "status":
			v, err := scalar(d)
			if err != nil {
				return errors.Wrap(err, "status")
			}
			p.Status = v
		case "status_detail":
			v, err := scalar(d)
			if err != nil {
				return errors.Wrap(err, "status_detail")
			}
			p.StatusDetail = v
		case "point_of_interaction":
			return decodePointOfInteraction(d, &p)
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func decodePointOfInteraction(d *jx.Decoder, p *payment.GatewayPayment) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "transaction_data" {
			return d.Skip()
		}
		if d.Next() == jx.Null {
			return d.Null()
		}
		return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			var err error
			switch string(key) {
			case "qr_code":
				p.PixCode, err = scalar(d)
			case "qr_code_base64":
				p.PixQRCodeBase64, err = scalar(d)
			default:
				return d.Skip()
			}
			return err
		})
	})
}

// decodeError extracts a human readable message from an API error body.
func decodeError(data []byte) string {
	var message, code string
	d := jx.DecodeBytes(data)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "message":
			message, err = scalar(d)
		case "error":
			code, err = scalar(d)
		default:
			return d.Skip()
		}
		return err
	})
	switch {
	case err != nil:
		return string(data)
	case message != "":
		return message
	default:
		return code
	}
}

// scalar reads a string, number or null as text.
func scalar(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	case jx.Null:
		return "", d.Null()
	default:
		return "", errors.Errorf("unexpected %s", d.Next())
	}
}
