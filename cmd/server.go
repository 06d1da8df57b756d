package cmd

import (
	"EchoFM/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the EchoFM HTTP server",
	Long:  `Start the EchoFM HTTP server serving the streaming API and the local library.`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
