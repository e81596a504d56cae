package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/meziantou/Meziantou.MusicApp-sub000/src/internal/config"
)

// testCmd represents the test command
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Verify musicapp configuration",
	Long:  "Check the musicapp configuration file for completeness and consistency",
	Run: func(cmd *cobra.Command, args []string) {
		if err := config.Test(cfgPath); err != nil {
			fmt.Printf("%v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(testCmd)
}
