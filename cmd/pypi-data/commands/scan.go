// Package commands implements the pypi-data subcommands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/pypi-data/cli/pkg/config"
	"github.com/pypi-data/cli/pkg/gitlib"
	"github.com/pypi-data/cli/pkg/matcher"
	"github.com/pypi-data/cli/pkg/observability"
	"github.com/pypi-data/cli/pkg/progress"
	"github.com/pypi-data/cli/pkg/scan"
	"github.com/pypi-data/cli/pkg/source"
	"github.com/pypi-data/cli/pkg/version"
)

// ErrNoBaseDirectory is returned when neither an argument, --base nor config names the fleet.
var ErrNoBaseDirectory = errors.New("no base directory: pass it as an argument, with --base or base_dir")

type (
	openerFunc    func(gitlib.CacheConfig) scan.OpenFunc
	telemetryFunc func(observability.Config) (observability.Providers, error)
	terminalFunc  func(io.Writer) bool
)

// ScanCommand holds the flags and dependencies of the scan command.
type ScanCommand struct {
	configPath string
	noProgress bool

	opener     openerFunc
	telemetry  telemetryFunc
	isTerminal terminalFunc
}

// NewScanCommand creates the scan command.
func NewScanCommand() *cobra.Command {
	return newScanCommandWithDeps(scan.RepositoryOpener, observability.Init, isTerminal)
}

func newScanCommandWithDeps(opener openerFunc, telemetry telemetryFunc, terminal terminalFunc) *cobra.Command {
	sc := &ScanCommand{
		opener:     opener,
		telemetry:  telemetry,
		isTerminal: terminal,
	}

	cmd := &cobra.Command{
		Use:     "scan [base]",
		Aliases: []string{"parse"},
		Short:   "Scan pinned commits of a repository fleet",
		Long: `Scan walks the tree of every commit listed in <repo>/commits.txt under the
base directory, classifies each path against the given predicates and prints
per-job statistics as a single JSON (or YAML) document on stdout.`,
		Args: cobra.MaximumNArgs(1),
		RunE: sc.run,
	}

	flags := cmd.Flags()
	flags.StringVar(&sc.configPath, "config", "", "Config file (default: ./pypi-data.yaml or ~/.config/pypi-data/pypi-data.yaml)")
	flags.BoolVar(&sc.noProgress, "no-progress", false, "Disable per-worker progress bars")

	flags.String("base", "", "Directory holding one sub-directory per repository")
	flags.String("commits-file", config.DefaultCommitsFile, "Commit list file name inside each repository")
	flags.Int("workers", config.DefaultWorkers, "Number of parallel workers (0 = use CPU count)")
	flags.Int("sample", config.DefaultSample, "Number of jobs drawn at random (0 = every job)")
	flags.Uint64("seed", config.DefaultSeed, "Sampling seed (0 = random)")
	flags.String("tree-cache-size", config.DefaultTreeCacheSize, "Per-worker tree cache budget (e.g. '512MiB', '0' disables)")
	flags.String("blob-cache-size", config.DefaultBlobCacheSize, "Per-worker blob cache budget (e.g. '512MiB', '0' disables)")

	flags.StringArray("glob", nil, "Path glob; repeatable, any may match (default: every path)")
	flags.StringArray("literal", nil, "Content substring; repeatable, any may match")
	flags.StringArray("regex", nil, "Content regular expression (RE2); repeatable, any may match")
	flags.Bool("gate-content", config.DefaultGateContent, "Count a path as seen only when its content also matches")
	flags.Int("max-depth", config.DefaultMaxDepth, "Maximum tree nesting (0 = default 4096)")
	flags.Duration("job-timeout", config.DefaultJobTimeout, "Per-job time limit (0 = none)")

	flags.String("format", config.DefaultOutputFormat, "Output format: json, yaml")
	flags.String("sort", config.DefaultOutputSort, "Result order: completion, index")
	flags.Bool("summary", config.DefaultSummary, "Print a per-outcome summary table to stderr")

	flags.String("log-level", config.DefaultLogLevel, "Log level: debug, info, warn, error")
	flags.Bool("log-json", config.DefaultLogJSON, "Emit JSON logs")
	flags.String("metrics-file", "", "Write Prometheus metrics to this file on exit")
	flags.String("otlp-endpoint", "", "OTLP gRPC collector address for traces and metrics")

	return cmd
}

func (sc *ScanCommand) run(cmd *cobra.Command, args []string) (err error) {
	started := time.Now()

	cfg, err := config.LoadConfig(sc.configPath, cmd.Flags())
	if err != nil {
		return err
	}

	if len(args) > 0 {
		cfg.BaseDir = args[0]
	}

	if cfg.BaseDir == "" {
		return ErrNoBaseDirectory
	}

	group, err := matcher.NewGroup(matcher.Spec{
		Globs:    cfg.Scan.Globs,
		Literals: cfg.Scan.Literals,
		Regexes:  cfg.Scan.Regexes,
	})
	if err != nil {
		return err
	}

	cacheCfg, err := cfg.CacheSizes()
	if err != nil {
		return err
	}

	providers, err := sc.telemetry(telemetryConfig(cfg, cmd.ErrOrStderr()))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	defer func() {
		err = errors.Join(err, providers.Shutdown(context.WithoutCancel(cmd.Context())))
	}()

	logger := providers.Logger
	slog.SetDefault(logger)

	metrics, err := observability.NewScanMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("create scan metrics: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	enumerator := &source.Enumerator{Base: cfg.BaseDir, CommitsFile: cfg.CommitsFile, Logger: logger}

	fleet, err := enumerator.Enumerate(ctx)
	if err != nil {
		return err
	}

	jobs := source.Sample(fleet.Jobs, cfg.Sample, newRand(cfg.Seed))

	scheduler := &scan.Scheduler{
		Workers:    cfg.Workers,
		JobTimeout: cfg.Scan.JobTimeout,
		Tracer:     providers.Tracer,
		Metrics:    metrics,
		Logger:     logger,
	}

	slots := scheduler.PoolSize(len(jobs))

	logger.InfoContext(ctx, "starting scan",
		"base", cfg.BaseDir, "jobs", len(jobs), "available", len(fleet.Jobs),
		"skipped", len(fleet.Skipped), "workers", slots)

	var (
		reporter progress.Reporter = progress.Nop{}
		renderer *progress.Renderer
	)

	if cfg.Progress.Enabled && !sc.noProgress && slots > 0 && sc.isTerminal(cmd.ErrOrStderr()) {
		renderer = progress.NewRenderer(cmd.ErrOrStderr(), slots)
		renderer.Run()
		reporter = renderer.Reporter()
	}

	workerCfg := scan.WorkerConfig{
		Group:            group,
		Open:             sc.opener(cacheCfg),
		Walk:             gitlib.WalkOptions{MaxDepth: cfg.Scan.MaxDepth},
		GateContent:      cfg.Scan.GateContent,
		Reporter:         reporter,
		ProgressInterval: cfg.Progress.Interval,
		Metrics:          metrics,
		Logger:           logger,
	}

	scheduler.NewWorker = func(slot int) *scan.Worker {
		return scan.NewWorker(slot, workerCfg)
	}

	results := scheduler.Run(ctx, jobs)

	if renderer != nil {
		renderer.Close()
	}

	aggregator := scan.NewAggregator(len(results))
	aggregator.Add(results...)

	ordered, err := aggregator.Results(cfg.Output.Sort)
	if err != nil {
		return err
	}

	err = scan.Encode(cmd.OutOrStdout(), ordered, cfg.Output.Format)
	if err != nil {
		return err
	}

	summary := aggregator.Summary()

	if cfg.Output.Summary {
		writeSummary(cmd.ErrOrStderr(), summary, len(fleet.Skipped), time.Since(started))
	}

	logger.InfoContext(ctx, "scan completed",
		"jobs", summary.Jobs, "succeeded", summary.Succeeded, "failed", summary.Failed,
		"elapsed", time.Since(started).Round(time.Millisecond).String())

	return nil
}

func telemetryConfig(cfg *config.Config, logOutput io.Writer) observability.Config {
	obs := observability.DefaultConfig()
	obs.ServiceVersion = version.Version
	obs.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obs.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Telemetry.OTLPHeaders)
	obs.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obs.MetricsFile = cfg.Telemetry.MetricsFile
	obs.LogLevel = observability.ParseLogLevel(cfg.Logging.Level)
	obs.LogJSON = cfg.Logging.JSON
	obs.LogOutput = logOutput

	return obs
}

// newRand seeds the sampler; seed 0 draws a fresh seed.
func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = rand.Uint64()
	}

	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
