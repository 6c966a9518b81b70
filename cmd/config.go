package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var loadCmd = &cobra.Command{
	Use:   "load [CHANNEL]",
	Short: "Reload one channel, or every channel, from persisted storage",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		p := app()
		if len(args) == 0 {
			if err := p.LoadAll(); err != nil {
				cobra.CheckErr(err)
			}
			fmt.Println("load: all channels ok")
			return
		}
		channel, err := strconv.ParseUint(args[0], 10, 8)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("invalid channel %q: %w", args[0], err))
		}
		if err := p.Load(uint8(channel)); err != nil {
			cobra.CheckErr(err)
		}
		fmt.Println("load: ok")
	},
}

var saveCmd = &cobra.Command{
	Use:   "save [CHANNEL]",
	Short: "Persist one channel, or every channel, to device storage",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		p := app()
		if len(args) == 0 {
			if err := p.SaveAll(); err != nil {
				cobra.CheckErr(err)
			}
			fmt.Println("save: all channels ok")
			return
		}
		channel, err := strconv.ParseUint(args[0], 10, 8)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("invalid channel %q: %w", args[0], err))
		}
		if err := p.Save(uint8(channel)); err != nil {
			cobra.CheckErr(err)
		}
		fmt.Println("save: ok")
	},
}

var writeChannelCmd = &cobra.Command{
	Use:   "write-channel [CHANNEL]",
	Short: "Write the cached record for one channel, or every channel, back to the device",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		p := app()
		if len(args) == 0 {
			if err := p.WriteAll(); err != nil {
				cobra.CheckErr(err)
			}
			fmt.Println("write-channel: all channels ok")
			return
		}
		channel, err := strconv.ParseUint(args[0], 10, 8)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("invalid channel %q: %w", args[0], err))
		}
		if err := p.WriteChannel(uint8(channel)); err != nil {
			cobra.CheckErr(err)
		}
		fmt.Println("write-channel: ok")
	},
}

func init() {
	rootCmd.AddCommand(loadCmd, saveCmd, writeChannelCmd)
}
