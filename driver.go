package batchcount

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	humanize "github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bcongdon/batchcount/internal/pkg/corfs"
	"github.com/bcongdon/batchcount/internal/pkg/interrupt"
	"github.com/bcongdon/batchcount/internal/pkg/locator"
)

// Process exit codes
const (
	exitOK          = 0
	exitFailure     = 1
	exitInterrupted = 130
)

// Driver wires the plan, migrate and merge commands to an object store.
type Driver struct {
	config *config
	out    io.Writer
	errOut io.Writer

	mut       sync.Mutex
	fs        corfs.FileSystem
	processor *ShardProcessor
}

// Option allows configuration of a Driver
type Option func(*Driver)

// WithFileSystem makes the Driver use fs instead of the configured store.
func WithFileSystem(fs corfs.FileSystem) Option {
	return func(d *Driver) {
		d.fs = fs
	}
}

// WithOutput sets where command output and error messages are written.
func WithOutput(out, errOut io.Writer) Option {
	return func(d *Driver) {
		d.out = out
		d.errOut = errOut
	}
}

// NewDriver creates a Driver from the loaded configuration and options.
func NewDriver(options ...Option) *Driver {
	d := &Driver{
		config: newConfig(),
		out:    os.Stdout,
		errOut: os.Stderr,
	}
	for _, f := range options {
		f(d)
	}
	return d
}

func (d *Driver) fileSystem() (corfs.FileSystem, error) {
	d.mut.Lock()
	defer d.mut.Unlock()

	if d.fs != nil {
		return d.fs, nil
	}
	fsType := corfs.InferFilesystemType(d.config.Store)
	fs, err := corfs.InitFilesystem(fsType, d.config.Store)
	if err != nil {
		return nil, err
	}
	log.Debugf("Using %s object store", fsType)
	d.fs = fs
	return fs, nil
}

// shardProcessor returns the Driver's ShardProcessor, creating it on first
// use so its plan cache outlives a single invocation.
func (d *Driver) shardProcessor() (*ShardProcessor, error) {
	fs, err := d.fileSystem()
	if err != nil {
		return nil, err
	}

	d.mut.Lock()
	defer d.mut.Unlock()
	if d.processor == nil {
		d.processor = NewShardProcessor(fs,
			WithParseWorkers(d.config.ParseWorkers),
			WithPlanCache(d.config.PlanCacheSize),
		)
	}
	return d.processor, nil
}

func parseLocators(texts ...string) ([]locator.Locator, error) {
	locs := make([]locator.Locator, len(texts))
	for i, text := range texts {
		loc, err := locator.Parse(text)
		if err != nil {
			return nil, err
		}
		locs[i] = loc
	}
	return locs, nil
}

func (d *Driver) planCommand() *cobra.Command {
	var source, destination, plan string

	cmd := &cobra.Command{
		Use:     "plan",
		Short:   "Prepares migration plan for a bucket",
		Example: "  plan --source s3://source-bucket --destination s3://destination-bucket/output --plan s3://destination-bucket/plan.json",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			locs, err := parseLocators(source, destination, plan)
			if err != nil {
				return err
			}
			fs, err := d.fileSystem()
			if err != nil {
				return err
			}

			fmt.Fprintf(d.out, "Running scanning for %s\n", locs[0])
			manifest, err := NewPlanner(fs).Build(cmd.Context(), locs[0], locs[1], locs[2])
			if err != nil {
				return err
			}

			fmt.Fprintf(d.out, "Planned %d items\n", manifest.Len())
			fmt.Fprintf(d.out, "Result of the scan will be saved to %s\n", locs[1])
			fmt.Fprintf(d.out, "Plan can be found here %s\n", locs[2])
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&source, "source", "s", "", "source prefix, s3://bucket/prefix")
	flags.StringVarP(&destination, "destination", "d", "", "destination prefix for shard results")
	flags.StringVarP(&plan, "plan", "p", "", "where to write the plan")
	cmd.MarkFlagRequired("source")
	cmd.MarkFlagRequired("destination")
	cmd.MarkFlagRequired("plan")
	return cmd
}

func (d *Driver) migrateCommand() *cobra.Command {
	var plan string
	var index int

	cmd := &cobra.Command{
		Use:     "migrate",
		Short:   "Run a migration based on migration plan and index",
		Example: "  migrate --plan s3://destination-bucket/plan.json --index 1",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			planLoc, err := locator.Parse(plan)
			if err != nil {
				return err
			}
			shardIndex, err := resolveIndex(cmd.Flags().Changed("index"), index, newIndexEnv())
			if err != nil {
				return err
			}
			processor, err := d.shardProcessor()
			if err != nil {
				return err
			}

			result, err := processor.Process(cmd.Context(), planLoc, shardIndex)
			if err != nil {
				return err
			}

			fmt.Fprintf(d.out, "Plan: %s\n", result.Plan)
			fmt.Fprintf(d.out, "Migrating file(%d) - %s\n", result.Index, result.Source)
			fmt.Fprintf(d.out, "Migrating file(%d) - %s\n", result.Index, result.Destination)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&plan, "plan", "p", "", "plan written by the plan command")
	flags.IntVarP(&index, "index", "i", 0, "shard index (defaults to $AWS_BATCH_JOB_ARRAY_INDEX)")
	cmd.MarkFlagRequired("plan")
	return cmd
}

func (d *Driver) mergeCommand() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:     "merge",
		Short:   "Merge the shard results",
		Example: "  merge --source s3://destination-bucket/output",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sourceLoc, err := locator.Parse(source)
			if err != nil {
				return err
			}
			fs, err := d.fileSystem()
			if err != nil {
				return err
			}

			merger := NewMerger(fs,
				WithMaxConcurrency(d.config.MaxConcurrency),
				WithLineWorkers(d.config.ParseWorkers),
				WithTop(viper.GetInt("top")),
				WithProgress(d.config.Progress),
			)
			result, err := merger.Merge(cmd.Context(), sourceLoc)
			if err != nil {
				return err
			}
			log.Debugf("Merged %d records (%s) from %d objects into %d distinct tokens",
				result.Records, humanize.Bytes(uint64(result.BytesRead)), result.Objects, result.Distinct)
			if result.SkippedLines > 0 {
				log.Debugf("Skipped %d malformed result lines", result.SkippedLines)
			}
			return WriteTable(d.out, result.Ranked)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&source, "source", "s", "", "prefix holding shard results")
	flags.Int("top", d.config.Top, "number of entries to show")
	bindFlags(flags, "top")
	cmd.MarkFlagRequired("source")
	return cmd
}

func (d *Driver) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "batchcount",
		Short:         "Sharded word counts over an object store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if viper.GetBool("verbose") {
				log.SetLevel(log.DebugLevel)
			} else {
				log.SetLevel(log.InfoLevel)
			}
		},
	}
	root.PersistentFlags().BoolP("verbose", "v", d.config.Verbose, "verbose logging")
	bindFlags(root.PersistentFlags(), "verbose")

	root.AddCommand(
		d.planCommand(),
		d.migrateCommand(),
		d.mergeCommand(),
	)
	return root
}

// Run executes the command line args with ctx as the cancellation signal.
func (d *Driver) Run(ctx context.Context, args []string) error {
	root := d.rootCommand()
	root.SetArgs(args)
	root.SetOut(d.out)
	root.SetErr(d.errOut)
	return root.ExecuteContext(ctx)
}

// exitCode reports err on errOut and maps it to a process exit code.
// Cancellation is reported in one line, without the error chain.
func exitCode(err error, errOut io.Writer) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(errOut, "Interrupted")
		return exitInterrupted
	default:
		fmt.Fprintf(errOut, "Error: %s\n", err)
		return exitFailure
	}
}

// Main runs the command line, or serves shard tasks when running in Lambda.
func (d *Driver) Main() {
	if runningInLambda() {
		lambdaDriver = d
		lambda.Start(handleRequest)
		return
	}

	cancellation := interrupt.New(context.Background())

	start := time.Now()
	err := d.Run(cancellation.Context(), os.Args[1:])
	log.Debugf("Finished in %s", time.Since(start))
	if cancellation.Requested() {
		log.Debugf("Cancelled: %s", cancellation.Cause())
	}

	code := exitCode(err, d.errOut)
	// os.Exit skips deferred calls, so notify the signal explicitly
	cancellation.Exit()
	cancellation.Stop()
	os.Exit(code)
}
