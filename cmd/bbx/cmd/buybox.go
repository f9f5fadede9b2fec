package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func buyboxCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "buybox",
		Short: "Inspect Buy Box rankings",
		Long: "Query the Buy Box winner and full offer ranking for products,\n" +
			"and drop cached results so they are recalculated.",
	}

	root.AddCommand(
		buyboxGetCmd(),
		buyboxWinnerCmd(),
		buyboxBatchCmd(),
		buyboxInvalidateCmd(),
	)

	return root
}

func buyboxGetCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "get <product-id>",
		Short: "Show a product's Buy Box ranking",
		Example: `  bbx buybox get sku-123
  bbx buybox get sku-123 --force
  bbx buybox get sku-123 --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := newClient().GetBuyBox(context.Background(), args[0], force)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(cmd.OutOrStdout(), res)
			}
			return printResult(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "recalculate even when a cached result exists")
	return cmd
}

func buyboxWinnerCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "winner <product-id>",
		Short:   "Print a product's winning offer ID",
		Example: `  bbx buybox winner sku-123`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := newClient().GetWinner(context.Background(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(cmd.OutOrStdout(), map[string]string{
					"product_id":      args[0],
					"winner_offer_id": id,
				})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
			return err
		},
	}
}

func buyboxBatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "batch <product-id>...",
		Short:   "Calculate several products at once",
		Example: `  bbx buybox batch sku-1 sku-2 sku-3`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := newClient().BatchBuyBox(context.Background(), args)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(cmd.OutOrStdout(), res)
			}
			return printBatchTable(cmd.OutOrStdout(), res)
		},
	}
}

func buyboxInvalidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "invalidate <product-id>",
		Short:   "Drop a product's cached result",
		Example: `  bbx buybox invalidate sku-123`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient().InvalidateBuyBox(context.Background(), args[0]); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Cache invalidated for %s.\n", args[0])
			return err
		},
	}
}
