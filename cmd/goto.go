package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"printerlink/printer"
)

var (
	gotoAxes  []float32
	gotoSpeed float32
	gotoWait  bool
)

var gotoCmd = &cobra.Command{
	Use:   "goto",
	Short: "Move the listed axes to absolute positions at the given speed",
	Long:  "Move the listed axes to absolute positions at the given speed. Axis targets are given with --axis as a list of positions in axis index order (repeat the flag or separate values with commas); values beyond the device's axis count are ignored.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		targets := printer.GotoTargets{
			Axes: make(map[uint8]float32),
			F0:   &gotoSpeed,
		}
		s := dev.Session
		for axis := uint8(0); int(axis) < len(gotoAxes); axis++ {
			if axis >= s.NumAxes {
				break
			}
			targets.Axes[axis] = gotoAxes[axis]
		}
		if err := app().Goto(targets, gotoWait); err != nil {
			cobra.CheckErr(err)
		}
		if gotoWait {
			if err := s.PumpUntil(app().BlockTimeout, func() bool { return s.MoveWait == 0 }); err != nil {
				cobra.CheckErr(err)
			}
		}
		fmt.Println("goto: ok")
	},
}

func init() {
	gotoCmd.Flags().Float32SliceVar(&gotoAxes, "axis", nil, "target position for each axis, in declaration order")
	gotoCmd.Flags().Float32Var(&gotoSpeed, "speed", 0, "move speed")
	gotoCmd.Flags().BoolVar(&gotoWait, "wait", false, "block until the move callback fires")
	rootCmd.AddCommand(gotoCmd)
}
