package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "riftd",
		Short: "rift - HTTP fault-injection proxy and imposter server",
		Long:  "riftd runs the fault-injection proxy, the imposter/stub server, and the admin REST API that administers both.",
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (optional, flags and env override)")

	rootCmd.AddCommand(
		serveCmd(),
		validateConfigCmd(),
		lintStubsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
