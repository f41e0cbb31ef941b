package main

import (
	"taskpilot/internal/di"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Resume the saved queue and serve the control API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := loadConfig()
			if addr != "" {
				cfg.HTTPAddr = addr
			}

			c, err := di.NewContainer(ctx, cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			if c.Scheduler.Restore(ctx) {
				c.Logger.Info("Resuming saved queue")
				c.Scheduler.Start(ctx)
			}
			return c.API.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides HTTP_ADDR)")
	return cmd
}
