package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/czhu95/zsim/benchmarks"
)

func newBenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run the synthetic translation workloads.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			format, _ := cmd.Flags().GetString("format")

			h := benchmarks.NewHarness(benchmarks.HarnessConfig{
				System: cfg,
				Output: cmd.OutOrStdout(),
			})
			h.AddBenchmarks(benchmarks.GetWorkloads(cfg.TLB.Lines))

			results, err := h.RunAll()
			if err != nil {
				return err
			}

			switch format {
			case "json":
				return h.PrintJSON(results)
			case "csv":
				h.PrintCSV(results)
			case "text":
				h.PrintResults(results)
			default:
				return fmt.Errorf("unknown format %q", format)
			}

			return nil
		},
	}

	cmd.Flags().String("format", "text", "output format: text, csv or json")

	return cmd
}
