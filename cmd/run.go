package cmd

import (
	"fmt"
	"io"
	"os"
	"runtime/pprof"
	"slices"

	"github.com/spf13/cobra"

	"github.com/czhu95/zsim/config"
	"github.com/czhu95/zsim/internal/simlog"
	"github.com/czhu95/zsim/stats"
	"github.com/czhu95/zsim/system"
	"github.com/czhu95/zsim/timing/core"
)

type runOptions struct {
	tracePath   string
	statsOut    string
	statsFormat string
	cpuProfile  string
	outConfig   string
	interval    int
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Replay a translation trace.",
		Long: "Replay a trace of \"core vaddr [gap]\" records and dump the " +
			"statistics of every component.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			return runSimulation(cfg, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.tracePath, "trace", "", "trace file to replay")
	cmd.Flags().StringVar(&opts.statsOut, "stats-out", "",
		"statistics destination (default stdout; database name for sqlite)")
	cmd.Flags().StringVar(&opts.statsFormat, "stats-format", "text",
		"statistics format: text, yaml or sqlite")
	cmd.Flags().StringVar(&opts.cpuProfile, "cpuprofile", "",
		"write cpu profile to file")
	cmd.Flags().StringVar(&opts.outConfig, "out-config", "",
		"write the effective configuration to file")
	cmd.Flags().IntVar(&opts.interval, "stats-interval", 0,
		"dump statistics every N records (0 dumps once at the end)")
	_ = cmd.MarkFlagRequired("trace")

	return cmd
}

func runSimulation(cfg *config.Config, opts runOptions, out io.Writer) error {
	if opts.cpuProfile != "" {
		f, err := os.Create(opts.cpuProfile)
		if err != nil {
			return fmt.Errorf("failed to create cpu profile: %w", err)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("failed to start cpu profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	net, err := cfg.BuildNetwork()
	if err != nil {
		return err
	}

	sys, err := system.MakeBuilder().WithConfig(cfg).WithNetwork(net).Build()
	if err != nil {
		return err
	}

	records, err := core.LoadTrace(opts.tracePath)
	if err != nil {
		return err
	}

	d, closeDumper, err := openDumper(opts, out)
	if err != nil {
		return err
	}
	defer func() { _ = closeDumper() }()

	phases := newPhaseDumper(d, sys.Stats)

	simlog.Default().Infof("replaying %d records from %s",
		len(records), opts.tracePath)

	if err := sys.RunPhases(records, opts.interval, phases.dump); err != nil {
		return err
	}

	simlog.Default().Infof("finished at cycle %d after %d stats phases",
		sys.Cycles(), phases.count)

	if opts.outConfig != "" {
		if err := cfg.Save(opts.outConfig); err != nil {
			return err
		}
	}

	return closeDumper()
}

// openDumper returns the dumper selected by the options and a function that
// flushes and closes its destination. The close function may be called more
// than once.
func openDumper(opts runOptions, out io.Writer) (stats.Dumper, func() error, error) {
	switch opts.statsFormat {
	case "sqlite":
		d, err := stats.NewSQLiteDumper(opts.statsOut)
		if err != nil {
			return nil, nil, err
		}

		simlog.Default().Infof("writing statistics to %s", d.FileName())

		return d, d.Close, nil
	case "text", "yaml":
	default:
		return nil, nil, fmt.Errorf("unknown stats format %q", opts.statsFormat)
	}

	w := out
	closeFn := func() error { return nil }
	if opts.statsOut != "" {
		f, err := os.Create(opts.statsOut)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create stats file: %w", err)
		}

		closed := false
		closeFn = func() error {
			if closed {
				return nil
			}
			closed = true

			return f.Close()
		}
		w = f
	}

	if opts.statsFormat == "yaml" {
		return stats.NewYAMLDumper(w), closeFn, nil
	}

	return stats.NewTextDumper(w), closeFn, nil
}

// phaseDumper dumps the tree at the end of each phase, skipping phases in
// which no counter moved.
type phaseDumper struct {
	d     stats.Dumper
	root  *stats.Aggregate
	last  []uint64
	count int
}

func newPhaseDumper(d stats.Dumper, root *stats.Aggregate) *phaseDumper {
	return &phaseDumper{d: d, root: root}
}

func (p *phaseDumper) dump() error {
	snapshot := stats.Flatten(p.root)
	if p.last != nil && slices.Equal(snapshot, p.last) {
		return nil
	}

	if err := p.d.Dump(p.root); err != nil {
		return err
	}

	p.last = snapshot
	p.count++

	return nil
}
