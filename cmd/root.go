// Package cmd provides the command-line interface for viewtree.
//
// Configuration sources, highest priority first:
//  1. Command-line flags (--config, --port, ...)
//  2. VIEWTREE_-prefixed environment variables (VIEWTREE_SERVER_PORT, ...)
//  3. The .viewtree.yml configuration file
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "viewtree",
	Short: "Compose and render nested view trees",
	Long: `Viewtree composes trees of template-backed views declared in YAML
layouts, renders them into an HTML host document, and serves a live
preview that re-renders on template change.

Quick Start:
  viewtree render --layout page      Render a layout to stdout
  viewtree serve                     Start the live preview server
  viewtree list                      List registered view types`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .viewtree.yml)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("VIEWTREE_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".viewtree")
	}

	viper.SetEnvPrefix("VIEWTREE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
