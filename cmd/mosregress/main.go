// Command mosregress runs the MOSFET model regression: it simulates every
// measured geometry with ngspice and fails when the RMS error of any metric
// exceeds the pass threshold.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mosregress/internal/config"
	"mosregress/internal/logging"
	"mosregress/internal/regression"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

type options struct {
	numCores   int
	configPath string
	planPath   string
	suites     []string
	devices    []string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "mosregress",
		Short: "MOSFET model regression against measured data",
		Long: `mosregress simulates every measured geometry of each device with ngspice,
compares the simulated curves with the vendor measurements and reports the
RMS error per configuration.

Every metric of a device is compared before its verdict; the run stops
after the first device with a metric whose maximum error exceeds the pass
threshold and exits non-zero.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}
	cmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	f := cmd.Flags()
	f.IntVar(&opts.numCores, "num_cores", 0, "Number of cores to be used by simulator (default: CPU count)")
	f.StringVar(&opts.configPath, "config", config.DefaultConfigPath, "YAML configuration file")
	f.StringVar(&opts.planPath, "plan", "", "YAML regression plan (default: built-in plan)")
	f.StringSliceVar(&opts.suites, "suite", nil, "Run only these suites (iv_vbs, iv_vgs, cv)")
	f.StringSliceVar(&opts.devices, "device", nil, "Run only these devices")
	// -v is left to cobra's --version shorthand.
	f.BoolVar(&opts.verbose, "verbose", false, "Enable debug logging")
	return cmd
}

func run(cmd *cobra.Command, opts *options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("num_cores") {
		if opts.numCores <= 0 {
			return fmt.Errorf("--num_cores must be positive, got %d", opts.numCores)
		}
		cfg.Regression.Workers = opts.numCores
	}
	cfg.Regression.Suites = append(cfg.Regression.Suites, opts.suites...)
	cfg.Regression.Devices = append(cfg.Regression.Devices, opts.devices...)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logOpts := cfg.Logging.Options(opts.verbose)
	logOpts.Output = cmd.ErrOrStderr()
	if err := logging.Initialize(logOpts); err != nil {
		return err
	}
	defer logging.CloseAll()

	plan := regression.DefaultPlan()
	if opts.planPath != "" {
		if plan, err = regression.LoadPlan(opts.planPath); err != nil {
			return err
		}
	}

	d := regression.New(cfg, plan)
	d.Out = cmd.OutOrStdout()
	logging.SetRunID(d.RunID)
	if err := logging.InitAudit(cfg.Paths.WorkDir, d.RunID); err != nil {
		logging.Get(logging.CategoryBoot).Warn("audit trail disabled: %v", err)
	}
	logging.Boot("mosregress %s, %d workers, config %s", version, cfg.GetWorkers(), opts.configPath)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sum, err := d.Run(ctx)
	if err != nil {
		return err
	}
	logging.Driver("run %s: %d devices passed", sum.RunID, len(sum.Devices))
	return nil
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
