package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var setposCmd = &cobra.Command{
	Use:   "setpos CHANNEL POSITION",
	Short: "Override a channel's current position counter",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		channel, err := strconv.ParseUint(args[0], 10, 8)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("invalid channel %q: %w", args[0], err))
		}
		pos, err := strconv.ParseInt(args[1], 10, 32)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("invalid position %q: %w", args[1], err))
		}
		if err := app().SetPos(uint8(channel), int32(pos)); err != nil {
			cobra.CheckErr(err)
		}
		fmt.Println("setpos: ok")
	},
}

var getposCmd = &cobra.Command{
	Use:   "getpos CHANNEL",
	Short: "Print a channel's current position counter",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		channel, err := strconv.ParseUint(args[0], 10, 8)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("invalid channel %q: %w", args[0], err))
		}
		pos, err := app().GetPos(uint8(channel))
		if err != nil {
			cobra.CheckErr(err)
		}
		fmt.Println(pos)
	},
}

func init() {
	rootCmd.AddCommand(setposCmd, getposCmd)
}
