package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pauseCmd = &cobra.Command{
	Use:   "pause on|off",
	Short: "Pause or resume the device",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var pausing bool
		switch args[0] {
		case "on":
			pausing = true
		case "off":
			pausing = false
		default:
			cobra.CheckErr(fmt.Errorf("argument must be 'on' or 'off', got %q", args[0]))
		}
		if err := app().Pause(pausing); err != nil {
			cobra.CheckErr(err)
		}
		fmt.Println("pause: ok")
	},
}

func init() {
	rootCmd.AddCommand(pauseCmd)
}
