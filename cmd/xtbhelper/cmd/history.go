package cmd

import (
	"fmt"

	"github.com/rovshanmuradov/xtbhelper/internal/app"
	"github.com/rovshanmuradov/xtbhelper/internal/ui/render"
	"github.com/spf13/cobra"
)

var (
	historyMonth int
	historyNames bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show closed trades with partial fills merged",
	Long: `Read the closed-positions export, merge fills of the same symbol closed
within a minute of each other and print the result.

--month restricts the view to one calendar month, counted from the current
one (0 this month, -1 last month), and adds its turnover, saldo and
cost-weighted return.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := setup()
		if err != nil {
			return err
		}
		defer cleanup()

		q := app.HistoryQuery{Names: historyNames}
		if cmd.Flags().Changed("month") {
			month := historyMonth
			q.Month = &month
		}

		trades, summary, err := a.History(cmd.Context(), q)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if summary != nil {
			fmt.Fprintln(out, render.MonthSummary(*summary, render.DefaultCurrency))
		}
		fmt.Fprintln(out, render.ClosedTrades(trades, render.DefaultCurrency))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyMonth, "month", "m", 0, "month offset from the current month (0 current, -1 previous)")
	historyCmd.Flags().BoolVar(&historyNames, "names", false, "look up instrument names")
}
