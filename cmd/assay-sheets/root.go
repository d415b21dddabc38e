package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/a3tai/assay-sheets/internal/config"
	"github.com/a3tai/assay-sheets/internal/job"
	"github.com/a3tai/assay-sheets/internal/logging"
)

// errJobsFailed makes the process exit non-zero when any job failed
var errJobsFailed = errors.New("one or more jobs failed")

// app carries the dependencies built once the configuration is loaded
type app struct {
	viper   *viper.Viper
	cfg     *config.Config
	logger  *zap.Logger
	metrics *job.Metrics
	orch    *job.Orchestrator

	// parser replaces the PDF engine when set
	parser job.DocumentParser
}

func newRootCommand(a *app) *cobra.Command {
	defaults := config.DefaultConfig()
	a.viper = config.NewViper(defaults)

	root := &cobra.Command{
		Use:   "assay-sheets",
		Short: "Turn lab-instrument PDF reports into per-assay Excel workbooks",
		Long: "assay-sheets parses PDF reports, detects the assays they contain, extracts each\n" +
			"assay's fields with its rule file and appends one deduplicated row per assay to\n" +
			"the assay's workbook, on the sheet of its lot.",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.init()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	config.DefineFlags(root.PersistentFlags(), a.viper, defaults)

	root.AddCommand(
		newSubmitCmd(a),
		newBatchCmd(a),
		newJobsCmd(a),
		newRegexCmd(a),
		newCleanCmd(a),
		newServeCmd(a),
		newVersionCmd(),
	)
	return root
}

// init loads the configuration and wires the pipeline
func (a *app) init() error {
	cfg, err := config.Load(a.viper)
	if err != nil {
		return err
	}
	if version != "dev" {
		cfg.Version = version
	}

	logger, err := logging.New(cfg.LoggingOptions())
	if err != nil {
		return fmt.Errorf("logger initialization failed: %w", err)
	}
	if cfg.IsDebug() {
		logger.Debug("Starting with configuration", zap.String("config", cfg.String()))
	}

	a.cfg = cfg
	a.logger = logger
	a.metrics = job.NewMetrics()

	opts := []job.Option{
		job.WithLogger(logger),
		job.WithMetrics(a.metrics),
		job.WithMaxFileSize(cfg.MaxFileSize),
	}
	if a.parser != nil {
		opts = append(opts, job.WithParser(a.parser))
	}
	a.orch = job.NewOrchestrator(cfg.Layout(), opts...)
	return nil
}

// finish flushes metrics and the logger. It runs after failed commands too.
func (a *app) finish() {
	if a.cfg == nil {
		return
	}
	if a.cfg.MetricsFile != "" {
		if err := a.metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
			a.logger.Warn("Failed to write metrics", zap.String("path", a.cfg.MetricsFile), zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// execute runs the command tree with args and flushes afterwards
func execute(ctx context.Context, a *app, args []string, out io.Writer) error {
	root := newRootCommand(a)
	root.SetArgs(args)
	root.SetOut(out)
	defer a.finish()
	return root.ExecuteContext(ctx)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
