package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Round-trip a byte through the device to confirm the link is alive",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := app().Ping(0x42); err != nil {
			cobra.CheckErr(err)
		}
		fmt.Println("ping: ok")
	},
}

func init() {
	rootCmd.AddCommand(pingCmd)
}
