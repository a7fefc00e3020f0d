package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/systmms/apimprobe/internal/config"
)

func NewPollCommand(cfg *config.Config) *cobra.Command {
	var maxWait time.Duration

	cmd := &cobra.Command{
		Use:   "poll <tenant> <location>",
		Short: "Wait for an asynchronous operation to finish",
		Long: `Query an operation location every poll interval until its JSON status is
succeeded, completed or failed, or until --max-wait elapses.

The location may be the absolute URL from an Operation-Location header or a
path relative to the tenant.

Examples:
  apimprobe poll docs https://apim.example.net/docs/operations/42
  apimprobe poll docs /operations/42 --max-wait 30s`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, location := args[0], args[1]

			p, err := newProbe(cfg)
			if err != nil {
				return err
			}
			if err := p.checkTenant(tenant); err != nil {
				return err
			}
			if maxWait <= 0 {
				maxWait = cfg.Definition.Poll.MaxWait
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			op, err := p.poller.Poll(ctx, tenant, location, maxWait)
			if op.Body != "" {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), op.Body)
			}
			if err != nil {
				return err
			}
			cfg.Logger.Info("Operation %s", op.Status)
			return nil
		},
	}

	cmd.Flags().DurationVar(&maxWait, "max-wait", 0, "Maximum time to poll (default from config)")

	return cmd
}
