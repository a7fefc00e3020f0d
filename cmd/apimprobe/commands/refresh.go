package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/apimprobe/internal/config"
	"github.com/systmms/apimprobe/internal/credentials"
	aperrors "github.com/systmms/apimprobe/internal/errors"
)

func NewRefreshCommand(cfg *config.Config) *cobra.Command {
	var slot string

	cmd := &cobra.Command{
		Use:   "refresh <tenant>",
		Short: "Fetch the tenant's current key from the secret service",
		Long: `Resolve which key slot is safe from the tenant's rotation metadata and
fetch that key from the secret service, falling back to the other slot.

The key itself is never printed.

Examples:
  apimprobe refresh wlrs
  apimprobe refresh wlrs --slot secondary`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant := args[0]

			preferred, err := credentials.ParseSlot(slot)
			if err != nil {
				return aperrors.UserError{
					Message:    err.Error(),
					Suggestion: "Use --slot primary or --slot secondary, or omit it to follow rotation metadata",
				}
			}

			p, err := newProbe(cfg)
			if err != nil {
				return err
			}
			if err := p.checkTenant(tenant); err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			cred, err := p.store.Refresh(ctx, tenant, preferred)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s key from %s %s\n", tenant, cred.Slot, p.vault.Name(), p.vault.Instance())
			return nil
		},
	}

	cmd.Flags().StringVar(&slot, "slot", "", "Slot to try first: primary or secondary")

	return cmd
}
