package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/fusionrt/fusion-runtime/server"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of Fusion Runtime",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Fusion Runtime v0.1.0")
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold a default gateway.yaml in the current directory",
	Run: func(cmd *cobra.Command, args []string) {
		if err := server.Init(); err != nil {
			log.Fatalf("init failed: %v", err)
		}
	},
}

var pluginDirs []string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Fusion Runtime gateway server",
	Run: func(cmd *cobra.Command, args []string) {
		server.Run(pluginDirs...)
	},
}

func main() {
	serveCmd.Flags().StringArrayVar(&pluginDirs, "plugin-dir", nil, "directory to search for transport-<kind> plugin binaries (repeatable)")

	rootCmd := cobra.Command{Use: "fusion-runtime"}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
