package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Continuously value the portfolio",
	Long: `Value the positions file every refresh interval and redraw the table.

Press Enter to refresh immediately, 'r' to reload the positions file and 'q'
to quit. SIGINT and SIGTERM stop the loop cleanly.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := setup()
		if err != nil {
			return err
		}
		defer cleanup()

		return a.Watch(cmd.Context(), os.Stdin, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
