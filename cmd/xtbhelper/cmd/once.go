package cmd

import (
	"github.com/spf13/cobra"
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Value the portfolio a single time and print it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := setup()
		if err != nil {
			return err
		}
		defer cleanup()

		_, err = a.Once(cmd.Context(), cmd.OutOrStdout())
		return err
	},
}

func init() {
	rootCmd.AddCommand(onceCmd)
}
