package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/meziantou/Meziantou.MusicApp-sub000/src/internal/config"
)

var preamble = `musicapp ` + Version + `

musicapp is a single-server music streaming backend. It indexes a music
directory into a browsable library and serves audio, cover art, lyrics and
playlists.`

// cfgPath is the path of the configuration file (--config flag)
var cfgPath string

var rootCmd = &cobra.Command{
	Use:     "musicapp",
	Short:   "musicapp music server",
	Long:    preamble,
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultCfgPath, "path of the configuration file")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}
}
