package validator

import (
	"errors"
	"testing"

	gvalidator "github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatorInitialization(t *testing.T) {
	t.Run("should initialize validator instance", func(t *testing.T) {
		assert.NotNil(t, validator)
	})

	t.Run("should support required struct validation", func(t *testing.T) {
		type NestedStruct struct {
			Inner struct {
				Value string `validate:"required"`
			} `validate:"required"`
		}

		nested := NestedStruct{}
		nested.Inner.Value = "test"

		assert.NoError(t, validator.Struct(nested))
	})
}

func TestFormatError(t *testing.T) {
	t.Run("should transform validation errors to formatted errors", func(t *testing.T) {
		testValidator := gvalidator.New()

		type TestStruct struct {
			Name string `validate:"required"`
		}

		err := testValidator.Struct(TestStruct{})
		require.Error(t, err)

		formattedErr := formatError(err)

		assert.ErrorIs(t, formattedErr, ErrValidationFailed)
		assert.Contains(t, formattedErr.Error(), "'Name': value '' does not meet the requirements for the 'required' validation")
	})

	t.Run("should return original error when not validation error", func(t *testing.T) {
		originalErr := errors.New("database connection failed")
		assert.Equal(t, originalErr, formatError(originalErr))
	})
}

func TestValidate(t *testing.T) {
	type payment struct {
		Recipient string `json:"recipient" validate:"required"`
		Amount    string `json:"amount" validate:"amount"`
		ChainID   string `json:"chain_id" validate:"chainid"`
	}

	t.Run("valid struct", func(t *testing.T) {
		err := Validate(payment{Recipient: "0xabc", Amount: "1000", ChainID: "eip155:1"})
		assert.NoError(t, err)
	})

	t.Run("zero amount is valid", func(t *testing.T) {
		err := Validate(payment{Recipient: "0xabc", Amount: "0", ChainID: "1"})
		assert.NoError(t, err)
	})

	t.Run("uses json field names", func(t *testing.T) {
		err := Validate(payment{Amount: "1", ChainID: "1"})
		require.ErrorIs(t, err, ErrValidationFailed)
		assert.Contains(t, err.Error(), "'recipient'")
	})

	t.Run("rejects malformed amounts", func(t *testing.T) {
		for _, amount := range []string{"", "-1", "01", "1.5", "1e9", "abc"} {
			err := Validate(payment{Recipient: "r", Amount: amount, ChainID: "1"})
			assert.ErrorIs(t, err, ErrValidationFailed, "amount %q", amount)
		}
	})

	t.Run("rejects malformed chain ids", func(t *testing.T) {
		for _, chainID := range []string{"", "chain id", "1/2"} {
			err := Validate(payment{Recipient: "r", Amount: "1", ChainID: chainID})
			assert.ErrorIs(t, err, ErrValidationFailed, "chain id %q", chainID)
		}
	})

	t.Run("non struct input", func(t *testing.T) {
		err := Validate("not a struct")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrValidationFailed)
	})
}
