package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/meziantou/Meziantou.MusicApp-sub000/src/internal/server"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the music directory",
	Long:  "Perform one scan of the music directory and print the library status",
	Run: func(cmd *cobra.Command, args []string) {
		if err := server.Scan(cfgPath); err != nil {
			fmt.Printf("scan failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
