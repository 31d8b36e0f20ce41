package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gabapcia/txrelay/internal/pkg/validator"

	"github.com/klauspost/compress/zstd"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// SchemaVersion is the compact layout version written by Encode.
const SchemaVersion byte = 1

// headerSize is the length of magic + schema version + type.
const headerSize = 6

var magic = [4]byte{0xC7, 'T', 'X', 'R'}

var (
	// ErrUnsupportedSchema is returned for a compact payload with an unknown version or type byte.
	ErrUnsupportedSchema = errors.New("unsupported payload schema")

	// ErrTypeMismatch is returned when the header type differs from the record type.
	ErrTypeMismatch = errors.New("payload type mismatch")

	// ErrMalformedPayload is returned when the data is neither a valid compact nor JSON record.
	ErrMalformedPayload = errors.New("malformed payload")
)

var (
	// Both are safe for concurrent EncodeAll/DecodeAll calls.
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	decoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
)

// IsCompact reports whether data starts with the compact payload magic.
func IsCompact(data []byte) bool {
	return len(data) >= headerSize && bytes.Equal(data[:len(magic)], magic[:])
}

// Encode validates p and serializes it into the compact binary form.
func Encode(p Payment) ([]byte, error) {
	if err := validator.Validate(p); err != nil {
		return nil, err
	}

	wt, err := p.Type.wireType()
	if err != nil {
		return nil, err
	}

	body, err := bson.Marshal(p)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, headerSize+len(body))
	out = append(out, magic[:]...)
	out = append(out, SchemaVersion, wt)
	return encoder.EncodeAll(body, out), nil
}

// Decode parses a payment record from either the compact form or plain JSON,
// then validates it.
func Decode(data []byte) (Payment, error) {
	var (
		p   Payment
		err error
	)

	if IsCompact(data) {
		p, err = decodeCompact(data)
	} else {
		p, err = decodeJSON(data)
	}
	if err != nil {
		return Payment{}, err
	}

	if err := validator.Validate(p); err != nil {
		return Payment{}, err
	}

	return p, nil
}

func decodeCompact(data []byte) (Payment, error) {
	if version := data[len(magic)]; version != SchemaVersion {
		return Payment{}, fmt.Errorf("%w: version %d", ErrUnsupportedSchema, version)
	}

	headerType, err := typeFromWire(data[len(magic)+1])
	if err != nil {
		return Payment{}, err
	}

	body, err := decoder.DecodeAll(data[headerSize:], nil)
	if err != nil {
		return Payment{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	var p Payment
	if err := bson.Unmarshal(body, &p); err != nil {
		return Payment{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	if p.Type != headerType {
		return Payment{}, fmt.Errorf("%w: header %q, record %q", ErrTypeMismatch, headerType, p.Type)
	}

	return p, nil
}

func decodeJSON(data []byte) (Payment, error) {
	var p Payment
	if err := json.Unmarshal(data, &p); err != nil {
		return Payment{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	return p, nil
}
