package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newRunCmd(flags *overrides) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once and export the results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close()

			_, err = a.pipeline.RunOnce(ctx)
			return err
		},
	}
}
