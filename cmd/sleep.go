package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var sleepCmd = &cobra.Command{
	Use:   "sleep CHANNEL on|off",
	Short: "Engage or disengage a motor channel's holding current",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		channel, err := strconv.ParseUint(args[0], 10, 8)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("invalid channel %q: %w", args[0], err))
		}
		var sleeping bool
		switch args[1] {
		case "on":
			sleeping = true
		case "off":
			sleeping = false
		default:
			cobra.CheckErr(fmt.Errorf("second argument must be 'on' or 'off', got %q", args[1]))
		}
		if err := app().Sleep(uint8(channel), sleeping); err != nil {
			cobra.CheckErr(err)
		}
		fmt.Println("sleep: ok")
	},
}

func init() {
	rootCmd.AddCommand(sleepCmd)
}
