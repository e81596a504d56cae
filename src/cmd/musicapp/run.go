package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/meziantou/Meziantou.MusicApp-sub000/src/internal/server"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run musicapp service",
	Long:  "Run the musicapp service until SIGINT or SIGTERM",
	Run: func(cmd *cobra.Command, args []string) {
		if err := server.Run(Version, cfgPath); err != nil {
			fmt.Printf("musicapp cannot be run: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
