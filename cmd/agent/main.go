// Command agent runs the extension handler orchestrator: a reconciliation
// loop that drives publisher extension handlers (install/enable/disable/
// uninstall/update) toward the goal state fetched from the host protocol
// endpoint, plus a read-only debug HTTP API for inspecting the result.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "agent",
	Short: "Extension handler orchestrator",
	Long: `agent reconciles the publisher extension handlers present on this
host against the goal state published by the protocol endpoint, then
serves a read-only debug API describing the result.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: /etc/guest-extension-agent/config.yaml)")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newVersionCommand())
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath("/etc/guest-extension-agent")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("GUEST_EXTENSION_AGENT")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			fmt.Fprintf(os.Stderr, "agent: failed to read config file: %v\n", err)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
