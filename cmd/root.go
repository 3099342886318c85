// nolint
package cmd

import (
	"context"
	"strings"

	log "github.com/lualive/livepatch/logger"
	"github.com/lualive/livepatch/patch"
	"github.com/lualive/livepatch/pkg/address"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// RootCmd sends the file named by its first argument to the listener
var RootCmd = &cobra.Command{
	Use:   "livepatch [file]",
	Short: "Send a file to a live-patch listener",
	Long: `Send the contents of a file to a live-patch listener over a zmq
request/reply socket and print the listener's reply. The contents are
appended to <file>_versions.json before they are sent. Without arguments
livepatch does nothing.`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return nil
		}
		filename, err := homedir.Expand(args[0])
		if err != nil {
			return err
		}
		s := patch.NewSender(address.NewPatchAddrFromConfig().Get(), cmd.OutOrStdout())
		return s.Patch(context.Background(), filename)
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		log.Fatalf("%v", err)
	}
	log.Sync()
}

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.livepatch.yaml)")
	RootCmd.PersistentFlags().String("patch-ip", address.DefaultPatchIP, "IP of the patch listener")
	RootCmd.PersistentFlags().IntP("patch-port", "p", address.DefaultPatchPort, "Port of the patch listener")
	RootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn or error")
	viper.BindPFlag("patch-ip", RootCmd.PersistentFlags().Lookup("patch-ip"))
	viper.BindPFlag("patch-port", RootCmd.PersistentFlags().Lookup("patch-port"))
	viper.BindPFlag("log-level", RootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			log.Debugf("no home directory: %v", err)
		} else {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(".livepatch")
	}
	viper.SetEnvPrefix("livepatch")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		log.Debugf("Using config file: %v", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		log.Fatalf("Failed to read config file %v: %v", cfgFile, err)
	}
	if err := log.SetLevel(viper.GetString("log-level")); err != nil {
		log.Warningf("Unknown log level %q, keeping info", viper.GetString("log-level"))
	}
}
