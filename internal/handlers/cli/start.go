package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/gabapcia/txrelay/internal/pkg/logger"

	"github.com/urfave/cli/v3"
)

// startCommand returns the command that runs the relay.
//
// Usage example:
//
//	txrelay start
//
// The process runs until it receives SIGINT or SIGTERM, then stops the
// relay and waits for in-flight work.
func startCommand(newRelay RelayFactory) *cli.Command {
	return &cli.Command{
		Name:        "start",
		Description: "Starts the transaction processor workers and the maintenance scheduler.",
		Usage:       "Runs the relay. Terminates gracefully on Ctrl+C or termination signals.",
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			relay, err := newRelay(ctx)
			if err != nil {
				return err
			}

			if err := relay.Start(ctx); err != nil {
				return err
			}
			defer relay.Stop()

			<-ctx.Done()
			logger.Info(context.WithoutCancel(ctx), "shutting down")
			return nil
		},
	}
}
