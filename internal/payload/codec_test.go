package payload

import (
	"encoding/json"
	"testing"

	"github.com/gabapcia/txrelay/internal/pkg/validator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePayments() map[string]Payment {
	return map[string]Payment{
		"minimal transaction": {
			Type:      TypeTransaction,
			Recipient: "0x8ba1f109551bD432803012645Ac136ddd64DBA72",
			Amount:    "1000000000000000000",
			ChainID:   "1",
			Timestamp: 1735689600,
			Version:   1,
		},
		"ble payment with token": {
			Type:      TypeBLEPayment,
			Recipient: "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
			Amount:    "2500000",
			ChainID:   "solana-mainnet",
			Token: &Token{
				Symbol:   "USDC",
				Name:     "USD Coin",
				Decimals: 6,
				Address:  "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
				ChainID:  "solana-mainnet",
			},
			Timestamp: 1735689601,
			Version:   1,
		},
		"qr payment with metadata": {
			Type:      TypeQRPayment,
			Recipient: "0x8ba1f109551bD432803012645Ac136ddd64DBA72",
			Amount:    "42",
			ChainID:   "137",
			Token: &Token{
				Symbol:   "MATIC",
				Decimals: 18,
				ChainID:  "137",
				IsNative: true,
			},
			Metadata: &Metadata{
				Merchant:  "Corner Coffee",
				Location:  "Lisbon",
				MinAmount: "1",
				MaxAmount: "100",
				Expiry:    1735693200,
				Timestamp: 1735689600,
				Extra:     map[string]string{"order": "A-17", "table": "4"},
			},
			Timestamp: 1735689602,
			Version:   2,
		},
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	for name, p := range samplePayments() {
		t.Run(name, func(t *testing.T) {
			data, err := Encode(p)
			require.NoError(t, err)
			assert.True(t, IsCompact(data))
			assert.Equal(t, SchemaVersion, data[4])

			decoded, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, p, decoded)
		})
	}
}

func TestEncodeDecode_ExtraMap(t *testing.T) {
	for name, extra := range map[string]map[string]string{
		"nil":   nil,
		"empty": {},
	} {
		t.Run(name, func(t *testing.T) {
			p := samplePayments()["minimal transaction"]
			p.Metadata = &Metadata{Merchant: "Corner Coffee", Extra: extra}

			data, err := Encode(p)
			require.NoError(t, err)

			decoded, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, p, decoded)
		})
	}
}

func TestDecode_JSONFallback(t *testing.T) {
	for name, p := range samplePayments() {
		t.Run(name, func(t *testing.T) {
			data, err := json.Marshal(p)
			require.NoError(t, err)
			assert.False(t, IsCompact(data))

			decoded, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, p, decoded)
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	valid, err := Encode(samplePayments()["minimal transaction"])
	require.NoError(t, err)

	t.Run("unsupported schema version", func(t *testing.T) {
		data := append([]byte(nil), valid...)
		data[4] = 99

		_, err := Decode(data)
		assert.ErrorIs(t, err, ErrUnsupportedSchema)
	})

	t.Run("unknown type byte", func(t *testing.T) {
		data := append([]byte(nil), valid...)
		data[5] = 9

		_, err := Decode(data)
		assert.ErrorIs(t, err, ErrUnsupportedSchema)
	})

	t.Run("header type differs from record", func(t *testing.T) {
		data := append([]byte(nil), valid...)
		data[5] = 3

		_, err := Decode(data)
		assert.ErrorIs(t, err, ErrTypeMismatch)
	})

	t.Run("corrupted body", func(t *testing.T) {
		data := append([]byte(nil), valid[:headerSize]...)
		data = append(data, []byte("definitely not zstd")...)

		_, err := Decode(data)
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})

	t.Run("neither compact nor json", func(t *testing.T) {
		_, err := Decode([]byte{0x01, 0x02, 0x03})
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})

	t.Run("json record failing validation", func(t *testing.T) {
		_, err := Decode([]byte(`{"type":"transaction","recipient":"","amount":"01","chain_id":"1","version":1}`))
		assert.ErrorIs(t, err, validator.ErrValidationFailed)
	})
}

func TestEncode_Validation(t *testing.T) {
	t.Run("unknown type", func(t *testing.T) {
		p := samplePayments()["minimal transaction"]
		p.Type = "wire_transfer"

		_, err := Encode(p)
		assert.ErrorIs(t, err, validator.ErrValidationFailed)
	})

	t.Run("non native token without address", func(t *testing.T) {
		p := samplePayments()["ble payment with token"]
		p.Token.Address = ""

		_, err := Encode(p)
		assert.ErrorIs(t, err, validator.ErrValidationFailed)
	})

	t.Run("invalid metadata bounds", func(t *testing.T) {
		p := samplePayments()["qr payment with metadata"]
		p.Metadata.MinAmount = "-5"

		_, err := Encode(p)
		assert.ErrorIs(t, err, validator.ErrValidationFailed)
	})
}
