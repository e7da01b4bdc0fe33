// Command trends computes weekly and monthly epidemic trend statistics from a
// cumulative case time series and exports them to stdout, Kafka or PostgreSQL.
//
// Usage:
//
//	trends run                 # one run, then exit
//	trends serve               # rerun every RUN_INTERVAL, serve /healthz, /readyz, /metrics, /api/v1/results
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "trends",
		Short:        "Epidemic trend ETL: weekly statistics by continent and monthly slope clusters",
		SilenceUsage: true,
	}

	var flags overrides
	root.PersistentFlags().StringVar(&flags.input, "input", "", "input CSV path (overrides INPUT_PATH)")
	root.PersistentFlags().StringVar(&flags.format, "format", "", "input format: global or national (overrides INPUT_FORMAT)")
	root.PersistentFlags().StringVar(&flags.sink, "sink", "", "result sink: stdout, kafka or postgres (overrides SINK)")

	root.AddCommand(newRunCmd(&flags), newServeCmd(&flags))
	return root
}
