package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var settempCmd = &cobra.Command{
	Use:   "settemp CHANNEL TARGET",
	Short: "Set a heater channel's target temperature",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		channel, err := strconv.ParseUint(args[0], 10, 8)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("invalid channel %q: %w", args[0], err))
		}
		target, err := strconv.ParseFloat(args[1], 32)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("invalid target %q: %w", args[1], err))
		}
		if err := app().SetTemp(uint8(channel), float32(target)); err != nil {
			cobra.CheckErr(err)
		}
		fmt.Println("settemp: ok")
	},
}

var waittempCmd = &cobra.Command{
	Use:   "waittemp CHANNEL LOW HIGH",
	Short: "Block until a heater channel's temperature enters [LOW, HIGH]",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		channel, err := strconv.ParseUint(args[0], 10, 8)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("invalid channel %q: %w", args[0], err))
		}
		lo, err := strconv.ParseFloat(args[1], 32)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("invalid low %q: %w", args[1], err))
		}
		hi, err := strconv.ParseFloat(args[2], 32)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("invalid high %q: %w", args[2], err))
		}
		p := app()
		if err := p.WaitTemp(uint8(channel), float32(lo), float32(hi)); err != nil {
			cobra.CheckErr(err)
		}
		if err := p.BlockTemps(); err != nil {
			cobra.CheckErr(err)
		}
		fmt.Println("waittemp: ok")
	},
}

var readtempCmd = &cobra.Command{
	Use:   "readtemp CHANNEL",
	Short: "Print a heater channel's current measured temperature",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		channel, err := strconv.ParseUint(args[0], 10, 8)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("invalid channel %q: %w", args[0], err))
		}
		t, err := app().ReadTemp(uint8(channel))
		if err != nil {
			cobra.CheckErr(err)
		}
		fmt.Printf("%.2f\n", t)
	},
}

func init() {
	rootCmd.AddCommand(settempCmd, waittempCmd, readtempCmd)
}
