package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHex_UnmarshalJSON(t *testing.T) {
	t.Run("valid quantity", func(t *testing.T) {
		var h Hex
		require.NoError(t, json.Unmarshal([]byte(`"0x1b4"`), &h))
		assert.Equal(t, Hex("0x1b4"), h)
		assert.EqualValues(t, 436, h.Uint64())
	})

	t.Run("rejects missing prefix", func(t *testing.T) {
		var h Hex
		assert.ErrorContains(t, json.Unmarshal([]byte(`"1b4"`), &h), "must start with 0x")
	})

	t.Run("rejects non hex digits", func(t *testing.T) {
		var h Hex
		assert.ErrorContains(t, json.Unmarshal([]byte(`"0xzz"`), &h), "invalid hexadecimal value")
	})

	t.Run("rejects non string", func(t *testing.T) {
		var h Hex
		assert.ErrorContains(t, json.Unmarshal([]byte(`12`), &h), "invalid hex string")
	})
}

func TestHex_Uint64(t *testing.T) {
	assert.Zero(t, Hex("").Uint64())
	assert.Zero(t, Hex("0x").Uint64())
	assert.EqualValues(t, 21000, Hex("0x5208").Uint64())
	assert.Equal(t, Hex("0x5208"), HexFromUint64(21000))
}

func TestHex_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(Hex("0x10"))
	require.NoError(t, err)
	assert.JSONEq(t, `"0x10"`, string(data))
}
