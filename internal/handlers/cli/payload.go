package cli

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gabapcia/txrelay/internal/payload"

	"github.com/urfave/cli/v3"
)

// decodeCommand returns the command that decodes a payment payload.
//
// Usage example:
//
//	txrelay decode --hex c7545852010128b52ffd...
func decodeCommand() *cli.Command {
	return &cli.Command{
		Name:        "decode",
		Description: "Decodes a compact or JSON payment payload and prints it as JSON.",
		Usage:       "Decodes a hex encoded payment payload.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "hex",
				Usage:    "Payload bytes as hex, with or without a 0x prefix",
				Required: true,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			data, err := hex.DecodeString(strings.TrimPrefix(c.String("hex"), "0x"))
			if err != nil {
				return fmt.Errorf("invalid hex payload: %w", err)
			}

			p, err := payload.Decode(data)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(c.Root().Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				payload.Payment
				Compact bool `json:"compact"`
			}{p, payload.IsCompact(data)})
		},
	}
}

// encodeCommand returns the command that builds a compact payload.
//
// Usage example:
//
//	txrelay encode --json '{"type":"qr_payment","recipient":"0x...","amount":"1","chain_id":"1","timestamp":1,"version":1}'
func encodeCommand() *cli.Command {
	return &cli.Command{
		Name:        "encode",
		Description: "Validates a JSON payment record and prints its compact form as hex.",
		Usage:       "Encodes a JSON payment record.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "json",
				Usage:    "Payment record as JSON",
				Required: true,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			p, err := payload.Decode([]byte(c.String("json")))
			if err != nil {
				return err
			}

			data, err := payload.Encode(p)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(c.Root().Writer, hex.EncodeToString(data))
			return err
		},
	}
}
