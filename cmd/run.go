package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run CHANNEL SPEED",
	Short: "Spin a motor channel at the given speed (0 stops it)",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		channel, err := strconv.ParseUint(args[0], 10, 8)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("invalid channel %q: %w", args[0], err))
		}
		speed, err := strconv.ParseFloat(args[1], 32)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("invalid speed %q: %w", args[1], err))
		}
		if err := app().Run(uint8(channel), float32(speed)); err != nil {
			cobra.CheckErr(err)
		}
		fmt.Println("run: ok")
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
