package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the device's name and capability limits",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s := dev.Session
		fmt.Printf("device:    %s\n", s.Name)
		fmt.Printf("axes:      %d (max %d)\n", s.NumAxes, s.MaxAxes)
		fmt.Printf("extruders: %d (max %d)\n", s.NumExtruders, s.MaxExtruders)
		fmt.Printf("temps:     %d (max %d)\n", s.NumTemps, s.MaxTemps)
		fmt.Printf("room temp: %.1f\n", s.RoomT)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
