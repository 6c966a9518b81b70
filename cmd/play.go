package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play FILE",
	Short: "Upload a motion program from FILE and start executing it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data, err := os.ReadFile(args[0])
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to read %s: %w", args[0], err))
		}
		if err := app().Play(data); err != nil {
			cobra.CheckErr(err)
		}
		fmt.Printf("play: uploaded %d bytes\n", len(data))
	},
}

func init() {
	rootCmd.AddCommand(playCmd)
}
