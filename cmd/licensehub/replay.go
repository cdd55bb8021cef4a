package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paymentservice "github.com/fitsuite/licensehub/internal/payment/service"
	"github.com/fitsuite/licensehub/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func replayCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "replay <payment-id>",
		Short: "Process one payment by id, as if its webhook had just arrived",
		Long: `Fetches the payment from the provider and runs it through the same
idempotent pipeline as the webhook. Already processed payments are reported
and left untouched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var processor *paymentservice.Processor
			app := fx.New(core(), server.Services, fx.Populate(&processor), fx.NopLogger)
			if err := app.Err(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if err := app.Start(ctx); err != nil {
				return err
			}
			defer func() {
				stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer stopCancel()
				_ = app.Stop(stopCtx)
			}()

			outcome, err := processor.Process(ctx, args[0])
			if err != nil {
				return fmt.Errorf("replay %s: %w", args[0], err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(outcome)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "overall deadline for the replay")
	return cmd
}
