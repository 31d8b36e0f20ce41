package cli

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"

	"github.com/gabapcia/txrelay/internal/payload"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeCommands(t *testing.T) {
	record := `{"type":"qr_payment","recipient":"0x8ba1f109551bD432803012645Ac136ddd64DBA72","amount":"2500","chain_id":"137","timestamp":1735689600,"version":1}`

	t.Run("should encode a record that decode restores", func(t *testing.T) {
		// Arrange
		var encoded, decoded bytes.Buffer

		// Act
		err := Run(t.Context(), []string{"txrelay", "encode", "--json", record}, &encoded, unusedFactory(t))
		require.NoError(t, err)

		raw, err := hex.DecodeString(strings.TrimSpace(encoded.String()))
		require.NoError(t, err)
		assert.True(t, payload.IsCompact(raw))

		err = Run(t.Context(), []string{"txrelay", "decode", "--hex", "0x" + strings.TrimSpace(encoded.String())}, &decoded, unusedFactory(t))
		require.NoError(t, err)

		// Assert
		var got struct {
			payload.Payment
			Compact bool `json:"compact"`
		}
		require.NoError(t, json.Unmarshal(decoded.Bytes(), &got))
		assert.True(t, got.Compact)
		assert.Equal(t, payload.TypeQRPayment, got.Type)
		assert.Equal(t, "2500", got.Amount)
		assert.Equal(t, "137", got.ChainID)
	})

	t.Run("should decode json payloads given as hex", func(t *testing.T) {
		// Arrange
		var out bytes.Buffer

		// Act
		err := Run(t.Context(), []string{"txrelay", "decode", "--hex", hex.EncodeToString([]byte(record))}, &out, unusedFactory(t))

		// Assert
		require.NoError(t, err)
		assert.Contains(t, out.String(), `"compact": false`)
	})

	t.Run("should reject invalid hex", func(t *testing.T) {
		err := Run(t.Context(), []string{"txrelay", "decode", "--hex", "zz"}, &bytes.Buffer{}, unusedFactory(t))
		assert.ErrorContains(t, err, "invalid hex payload")
	})

	t.Run("should reject records failing validation", func(t *testing.T) {
		err := Run(t.Context(), []string{"txrelay", "encode", "--json", `{"type":"qr_payment","amount":"-1"}`}, &bytes.Buffer{}, unusedFactory(t))
		assert.Error(t, err)
	})

	t.Run("should require the input flag", func(t *testing.T) {
		err := Run(t.Context(), []string{"txrelay", "encode"}, &bytes.Buffer{}, unusedFactory(t))
		assert.Error(t, err)
	})
}
