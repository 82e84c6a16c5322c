package cmd

import (
	"fmt"

	"github.com/rovshanmuradov/xtbhelper/internal/ui/render"
	"github.com/spf13/cobra"
)

var moversTop int

var moversCmd = &cobra.Command{
	Use:   "movers",
	Short: "Rank the configured exchange's daily gainers and losers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := setup()
		if err != nil {
			return err
		}
		defer cleanup()

		report, err := a.Movers(cmd.Context())
		if err != nil {
			return err
		}
		n := moversTop
		if n <= 0 {
			n = a.MoversTopN()
		}
		fmt.Fprintln(cmd.OutOrStdout(), render.Movers(report, n))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(moversCmd)

	moversCmd.Flags().IntVarP(&moversTop, "top", "n", 0, "entries per side (default movers.top_n)")
}
