package cmd

import (
	"github.com/spf13/cobra"
	"github.com/vadiminshakov/gridsim/internal/setup"
)

var setupOutput string

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive wizard that writes a config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setup.RunTUI(setupOutput)
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
	setupCmd.Flags().StringVarP(&setupOutput, "output", "o", setup.DefaultOutput, "where to write the generated config")
}
