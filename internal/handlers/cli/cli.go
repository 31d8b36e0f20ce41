package cli

import (
	"context"
	"io"

	"github.com/urfave/cli/v3"
)

// Relay is a long-running service started by the start command.
type Relay interface {
	Start(ctx context.Context) error
	Stop()
}

// RelayFactory builds the relay. It runs only when the start command is
// invoked, so offline commands work without a full configuration.
type RelayFactory func(ctx context.Context) (Relay, error)

// Run executes the txrelay CLI with args (args[0] is the program name).
//
// Commands:
//
//   - `start`:  runs the transaction processor and the maintenance scheduler.
//   - `decode`: prints a compact or JSON payment payload as JSON.
//   - `encode`: converts a JSON payment record to its compact hex form.
//
// Command output is written to w.
func Run(ctx context.Context, args []string, w io.Writer, newRelay RelayFactory) error {
	app := &cli.Command{
		EnableShellCompletion: true,
		Name:                  "txrelay",
		Description:           "Blockchain payment relay: queues signed transactions and device payment payloads for broadcast.",
		Usage:                 "txrelay [command] [flags]",
		Writer:                w,
		Commands: []*cli.Command{
			startCommand(newRelay),
			decodeCommand(),
			encodeCommand(),
		},
	}

	return app.Run(ctx, args)
}
