// nolint
package cmd

import (
	"github.com/lualive/livepatch/listen"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// listenCmd represents the listen command
var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Run a patch listener",
	Long: `Bind a zmq reply socket on patch-ip:patch-port, journal every patch
received and answer {"result": ...} or {"error": ...}.`,
	Run: func(cmd *cobra.Command, args []string) {
		listen.Start()
	},
}

func init() {
	RootCmd.AddCommand(listenCmd)
	listenCmd.PersistentFlags().StringP("journal-path", "j", "livepatch_journal.log", "File the received patches are appended to")
	listenCmd.PersistentFlags().Int("health-port", 0, "Port of the grpc health service (0 disables it)")
	viper.BindPFlag("journal-path", listenCmd.PersistentFlags().Lookup("journal-path"))
	viper.BindPFlag("health-port", listenCmd.PersistentFlags().Lookup("health-port"))
}
