// =============================================================================
// Invoice Export - Serve Command
// =============================================================================
//
// This file defines the 'serve' command, which exposes the exporters over
// HTTP. See internal/server for the endpoints.
//
// COMMAND USAGE:
//   invoice-export serve [--addr :8080]
//
// =============================================================================

package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/invoice-export/internal/server"
)

// listenAddr overrides listen_addr from the main configuration.
var listenAddr string

// serveCmd represents the 'serve' command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve invoice exports over HTTP",
	Long: `The serve command starts an HTTP server that encodes invoices posted as
JSON with the export profiles from the profiles directory.

  POST /api/export/{format}?profile=<code>
  GET  /api/formats
  GET  /healthz

The server stops gracefully on SIGINT or SIGTERM.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, profiles, err := loadConfigAndProfiles()
		if err != nil {
			return err
		}

		addr := cfg.ListenAddr
		if listenAddr != "" {
			addr = listenAddr
		}

		srv, err := server.New(server.Options{Profiles: profiles}, nil)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&listenAddr, "addr", "", "Listen address (default from listen_addr)")
}
