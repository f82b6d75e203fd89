package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/veridoc/veridoc/internal/app/ui"
	"github.com/veridoc/veridoc/internal/engine"
	"github.com/veridoc/veridoc/internal/logging"
	"github.com/veridoc/veridoc/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the analysis HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		addr := cfg.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}

		log := logging.For("serve")
		srv := &http.Server{
			Addr:              addr,
			Handler:           server.New(engine.New(cfg, store), store).Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, cancel := ui.WaitForCancel(cmd.Context())
		defer cancel()

		errCh := make(chan error, 1)
		go func() {
			log.Info("listening", "addr", addr)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
		}

		log.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides the config file)")
	rootCmd.AddCommand(serveCmd)
}
