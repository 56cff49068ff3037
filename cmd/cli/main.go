package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lakeattr/adapters/excel"
	"lakeattr/adapters/report"
	"lakeattr/app"
	"lakeattr/internal"
	"lakeattr/internal/config"
	"lakeattr/internal/errors"
	"lakeattr/internal/observability"
	"lakeattr/ports"
)

// environment is the process-wide setup shared by every command.
type environment struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *observability.Metrics
}

type rootFlags struct {
	envFiles  []string
	studyFile string
	outputDir string
	logLevel  string
}

func main() {
	env := &environment{}
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "lakeattr",
		Short: "GEV shift-fit attribution of lake-level extremes and water-balance model geometry",
		Long: `lakeattr fits a GEV distribution whose location shifts with global mean
surface temperature to annual block maxima of lake-level change, and reports
how the probability and intensity of an observed event differ between two
climate states. It also computes the grid and surface areas that initialize
the lake water-balance model.

Configuration is read from the environment (optionally from .env files) and
from an HCL study file:
- LOG_LEVEL (ERROR|WARN|INFO|DEBUG|TRACE, default INFO)
- LOG_FORMAT (json|console, default console)
- OUTPUT_DIR (default ./output)
- STUDY_FILE (default study.hcl)
- BOOTSTRAP_WORKERS (default: number of CPUs)
- INSTABILITY_THRESHOLD (default 1e-10)
- METRICS_TEXTFILE (optional Prometheus textfile written at exit)`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return env.setup(flags)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return env.teardown()
		},
	}

	rootCmd.PersistentFlags().StringSliceVar(&flags.envFiles, "env-file", nil, "Load environment from these files (default .env when present)")
	rootCmd.PersistentFlags().StringVar(&flags.studyFile, "study", "", "Study file (overrides STUDY_FILE)")
	rootCmd.PersistentFlags().StringVarP(&flags.outputDir, "output", "o", "", "Output directory (overrides OUTPUT_DIR)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")

	rootCmd.AddCommand(
		newAttributeCmd(env),
		newFitCmd(env),
		newGeometryCmd(env),
		newSynthCmd(env),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error [%s]: %v\n", errors.GetCode(err), err)
		if env.logger != nil {
			_ = env.logger.Sync()
		}
		os.Exit(1)
	}
}

func (e *environment) setup(flags *rootFlags) error {
	if err := config.LoadDotEnv(flags.envFiles...); err != nil {
		return err
	}
	if flags.logLevel != "" {
		os.Setenv("LOG_LEVEL", flags.logLevel)
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if flags.studyFile != "" {
		cfg.StudyFile = flags.studyFile
	}
	if flags.outputDir != "" {
		cfg.Output.Dir = flags.outputDir
	}

	level, err := internal.ParseLogLevel(cfg.Log.Level)
	if err != nil {
		return errors.ConfigInvalid(err.Error())
	}
	logger, err := internal.NewLogger(level, cfg.Log.Format)
	if err != nil {
		return errors.ConfigInvalid(err.Error())
	}

	e.cfg = cfg
	e.logger = logger
	e.metrics = observability.NewMetrics()
	logger.Debug("configuration loaded",
		zap.String("study", cfg.StudyFile),
		zap.String("output", cfg.Output.Dir),
		zap.Int("workers", cfg.Bootstrap.Workers))
	return nil
}

func (e *environment) teardown() error {
	defer func() { _ = e.logger.Sync() }()
	if path := e.cfg.Output.MetricsTextfile; path != "" {
		if err := e.metrics.WriteTextfile(path); err != nil {
			return errors.IOError("failed to write metrics textfile", err)
		}
		e.logger.Info("metrics written", zap.String("path", path))
	}
	return nil
}

// loadStudy reads the configured study file and checks the shared settings.
func (e *environment) loadStudy() (*config.Study, error) {
	study, err := config.LoadStudy(e.cfg.StudyFile)
	if err != nil {
		return nil, err
	}
	if err := study.Validate(); err != nil {
		return nil, err
	}
	e.logger.Info("study loaded", zap.String("name", study.Name), zap.String("path", e.cfg.StudyFile))
	return study, nil
}

// writers returns the report outputs: console summary, markdown and HTML,
// JSON and workbooks under the output directory.
func (e *environment) writers(cmd *cobra.Command) ports.ReportWriterPort {
	dir := e.cfg.Output.Dir
	return report.MultiWriter{
		report.NewConsoleWriter(cmd.OutOrStdout()),
		report.NewMarkdownWriter(dir, e.logger),
		report.NewJSONWriter(dir, e.logger),
		excel.NewWorkbookWriter(excel.DefaultWorkbookConfig(dir), e.logger),
	}
}

// report runs write as the report stage and logs the files it produced.
func (e *environment) report(ctx context.Context, write func(ctx context.Context) ([]string, error)) error {
	var paths []string
	err := app.NewStageRunner(e.logger, e.metrics).Run(ctx, app.StageReport, func(ctx context.Context) error {
		var err error
		paths, err = write(ctx)
		return err
	})
	for _, p := range paths {
		e.logger.Info("report written", zap.String("path", p))
	}
	return err
}
