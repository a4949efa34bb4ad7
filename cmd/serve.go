package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abhisek/synapse/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the functions over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		cfg := rt.cfg.Server
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Addr = addr
		}

		srv := server.New(cfg, server.Options{
			Registry: rt.registry,
			Metrics:  rt.metrics.Handler(),
			Health:   rt.health,
			Logger:   rt.logger.Named("http"),
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := srv.ListenAndServe(ctx); err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides SYNAPSE_ADDR)")
}
