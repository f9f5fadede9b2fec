package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	apiclient "github.com/donaldgifford/buybox/internal/api/client"
)

func overrideCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "override",
		Short: "Manage admin overrides",
		Long: "Force an offer to win a product's Buy Box regardless of score,\n" +
			"inspect the active override, or clear it.",
	}

	root.AddCommand(
		overrideSetCmd(),
		overrideGetCmd(),
		overrideClearCmd(),
	)

	return root
}

func overrideSetCmd() *cobra.Command {
	var (
		req apiclient.OverrideRequest
		ttl time.Duration
	)

	cmd := &cobra.Command{
		Use:   "set <product-id>",
		Short: "Force an offer to win",
		Example: `  bbx override set sku-123 --offer offer-9 --reason "launch partner" --set-by ops
  bbx override set sku-123 --offer offer-9 --ttl 24h`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if ttl < 0 {
				return fmt.Errorf("--ttl must be positive")
			}
			if ttl > 0 {
				exp := time.Now().Add(ttl).UTC()
				req.ExpiresAt = &exp
			}

			o, err := newClient().SetOverride(context.Background(), args[0], &req)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(cmd.OutOrStdout(), o)
			}
			return printOverride(cmd.OutOrStdout(), o)
		},
	}

	cmd.Flags().StringVar(&req.OfferID, "offer", "", "offer ID to force as winner (required)")
	cmd.Flags().StringVar(&req.VendorID, "vendor", "", "vendor ID of the offer")
	cmd.Flags().StringVar(&req.Reason, "reason", "", "why the override is set")
	cmd.Flags().StringVar(&req.SetBy, "set-by", "", "who is setting the override")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "expire the override after this duration (default: never)")
	cobra.CheckErr(cmd.MarkFlagRequired("offer"))

	return cmd
}

func overrideGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "get <product-id>",
		Short:   "Show a product's active override",
		Example: `  bbx override get sku-123`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := newClient().GetOverride(context.Background(), args[0])
			if apiclient.IsNotFound(err) {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "No active override for %s.\n", args[0])
				return err
			}
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(cmd.OutOrStdout(), o)
			}
			return printOverride(cmd.OutOrStdout(), o)
		},
	}
}

func overrideClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "clear <product-id>",
		Short:   "Clear a product's override",
		Example: `  bbx override clear sku-123`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient().ClearOverride(context.Background(), args[0]); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Override cleared for %s.\n", args[0])
			return err
		},
	}
}
