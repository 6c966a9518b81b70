package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"printerlink/discovery"
	"printerlink/printer"
	"printerlink/profile"
)

var dev *discovery.Result

var rootCmd = &cobra.Command{
	Use:   "printerlink",
	Short: "A CLI program which drives a 3D printer controller over serial",
	Long:  "The printerlink tool discovers and drives a 3D printer controller attached over serial, using the controller's request/response protocol.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		prof, err := profile.Load()
		if err != nil {
			return fmt.Errorf("failed to load profile: %w", err)
		}
		dev, err = discovery.Find(prof, discovery.Options{})
		if err != nil {
			return fmt.Errorf("failed to find printer controller: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if dev != nil {
			dev.Close()
		}
	},
}

// app returns the façade for the current command's device.
func app() *printer.Printer {
	return dev.Printer
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
