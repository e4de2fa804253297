package commands

import (
	"os"

	"portalbridge/internal/mcpserver"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the assistant protocol over stdin/stdout.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		p := buildPortal(cfg)

		server := mcpserver.New(p, mcpserver.Options{
			ServerName:    cfg.ServerName,
			ServerVersion: cfg.ServerVersion,
		}, telemetryAPI())

		if err := server.Run(cmd.Context(), os.Stdin, os.Stdout); err != nil {
			os.Exit(1)
		}
	},
}
