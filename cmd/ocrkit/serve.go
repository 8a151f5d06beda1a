package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wudi/ocrkit/ocr"
	"github.com/wudi/ocrkit/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP extraction API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		serverCfg := cfg.ServerConfig()
		if serveAddr != "" {
			serverCfg.Addr = serveAddr
		}

		var opts []server.Option
		if cfg.OCR.Script != "" {
			source, err := os.ReadFile(cfg.OCR.Script)
			if err != nil {
				return err
			}
			opts = append(opts, server.WithScript(string(source)))
		}

		srv := server.New(serverCfg, ocr.DefaultEngine(), log, opts...)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return srv.ListenAndServe(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :8080)")
	rootCmd.AddCommand(serveCmd)
}
