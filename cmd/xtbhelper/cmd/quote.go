package cmd

import (
	"fmt"

	"github.com/rovshanmuradov/xtbhelper/internal/ui/render"
	"github.com/spf13/cobra"
)

var quoteCmd = &cobra.Command{
	Use:   "quote SYMBOL...",
	Short: "Resolve current prices through the provider chain",
	Example: `  xtbhelper quote SAP.DE IFX.DE
  xtbhelper quote BTC/USD`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := setup()
		if err != nil {
			return err
		}
		defer cleanup()

		results := a.Quote(cmd.Context(), args)
		fmt.Fprintln(cmd.OutOrStdout(), render.Quotes(results))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(quoteCmd)
}
