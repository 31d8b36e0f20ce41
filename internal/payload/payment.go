// Package payload defines the payment records carried by device-originated
// submissions and their compact wire encoding.
//
// A compact payload is laid out as:
//
//	magic (4 bytes: 0xC7 'T' 'X' 'R') | schema version (1 byte) | type (1 byte) | zstd(BSON(record))
//
// Decode accepts either the compact form or the plain JSON form of a record
// and tells them apart through the magic and schema header.
package payload

import "fmt"

// Type identifies one of the supported payment record shapes.
type Type string

const (
	TypeTransaction Type = "transaction"
	TypeBLEPayment  Type = "ble_payment"
	TypeQRPayment   Type = "qr_payment"
)

// wireType maps a Type to the byte stored in the compact header.
func (t Type) wireType() (byte, error) {
	switch t {
	case TypeTransaction:
		return 1, nil
	case TypeBLEPayment:
		return 2, nil
	case TypeQRPayment:
		return 3, nil
	default:
		return 0, fmt.Errorf("%w: unknown type %q", ErrUnsupportedSchema, t)
	}
}

func typeFromWire(b byte) (Type, error) {
	switch b {
	case 1:
		return TypeTransaction, nil
	case 2:
		return TypeBLEPayment, nil
	case 3:
		return TypeQRPayment, nil
	default:
		return "", fmt.Errorf("%w: unknown type byte %d", ErrUnsupportedSchema, b)
	}
}

// Token describes the asset being transferred.
type Token struct {
	Symbol   string `json:"symbol" bson:"symbol" validate:"required"`
	Name     string `json:"name,omitempty" bson:"name,omitempty"`
	Decimals uint8  `json:"decimals" bson:"decimals" validate:"lte=36"`
	Address  string `json:"address,omitempty" bson:"address,omitempty" validate:"required_if=IsNative false"`
	ChainID  string `json:"chain_id" bson:"chain_id" validate:"chainid"`
	IsNative bool   `json:"is_native" bson:"is_native"`
}

// Metadata carries merchant-side context of a payment request.
type Metadata struct {
	Merchant  string            `json:"merchant,omitempty" bson:"merchant,omitempty"`
	Location  string            `json:"location,omitempty" bson:"location,omitempty"`
	MinAmount string            `json:"min_amount,omitempty" bson:"min_amount,omitempty" validate:"omitempty,amount"`
	MaxAmount string            `json:"max_amount,omitempty" bson:"max_amount,omitempty" validate:"omitempty,amount"`
	Expiry    int64             `json:"expiry,omitempty" bson:"expiry,omitempty" validate:"gte=0"`
	Timestamp int64             `json:"timestamp,omitempty" bson:"timestamp,omitempty" validate:"gte=0"`
	Extra     map[string]string `json:"extra,omitempty" bson:"extra"`
}

// Payment is a structured payment record. Amount is a base-10 integer in the
// smallest unit of the token. Timestamps are Unix seconds.
type Payment struct {
	Type      Type      `json:"type" bson:"type" validate:"oneof=transaction ble_payment qr_payment"`
	Recipient string    `json:"recipient" bson:"recipient" validate:"required"`
	Amount    string    `json:"amount" bson:"amount" validate:"amount"`
	ChainID   string    `json:"chain_id" bson:"chain_id" validate:"chainid"`
	Token     *Token    `json:"token,omitempty" bson:"token,omitempty"`
	Metadata  *Metadata `json:"metadata,omitempty" bson:"metadata,omitempty"`
	Timestamp int64     `json:"timestamp" bson:"timestamp" validate:"gte=0"`
	Version   int32     `json:"version" bson:"version" validate:"gte=1"`
}
