package cmd

import (
	"fmt"
	"io"
	"os"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tasnim.dev/vpcctl/internal/config"
	"tasnim.dev/vpcctl/internal/logging"
	"tasnim.dev/vpcctl/internal/provision"
	"tasnim.dev/vpcctl/internal/topology"
	"tasnim.dev/vpcctl/internal/tui/theme"
	"tasnim.dev/vpcctl/internal/vpc"
)

// GlobalOptions are the persistent flags shared by every subcommand.
type GlobalOptions struct {
	StatePath string
	Backend   string
	LogLevel  string
	DryRun    bool
}

// Bind registers the persistent flags on the root command.
func (o *GlobalOptions) Bind(root *cobra.Command) {
	flags := root.PersistentFlags()
	flags.StringVar(&o.StatePath, "state", "", "state document path (overrides config and $"+config.EnvState+")")
	flags.StringVar(&o.Backend, "backend", "", "state backend: json or sqlite")
	flags.StringVar(&o.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.BoolVar(&o.DryRun, "dry-run", false, "print commands instead of running them; nothing is saved")
}

// app is the wiring shared by the commands that touch the topology.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *topology.Store
	svc    *vpc.Service
}

func loadConfig(opts *GlobalOptions) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg.Merge(opts.StatePath, opts.Backend, opts.LogLevel)
	return cfg, nil
}

// newLogger logs to stderr and the configured log file. An unwritable log
// file degrades to stderr only.
func newLogger(cfg *config.Config, operation string) (*zap.Logger, error) {
	lc := logging.DefaultConfig()
	lc.Level = cfg.LogLevel
	if cfg.LogFile != "" {
		lc.OutputPaths = append(lc.OutputPaths, cfg.LogFile)
	}
	logger, err := logging.NewLogger(lc)
	if err != nil && cfg.LogFile != "" {
		lc.OutputPaths = []string{"stderr"}
		var fallbackErr error
		logger, fallbackErr = logging.NewLogger(lc)
		if fallbackErr == nil {
			logger.Warn("log file unavailable, logging to stderr only", zap.String(logging.FieldPath, cfg.LogFile), zap.Error(err))
			err = nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", topology.ErrInvalidInput, err)
	}
	return logging.ForOperation(logger, operation), nil
}

func newApp(opts *GlobalOptions, operation string, out io.Writer) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg, operation)
	if err != nil {
		return nil, err
	}
	store, err := topology.Open(cfg.Backend, cfg.StatePath, cfg.LockTimeout())
	if err != nil {
		logger.Sync()
		return nil, err
	}

	var exec provision.Executor = provision.ExecExecutor{Timeout: cfg.CommandTimeout(), Sudo: cfg.UseSudo}
	if opts.DryRun {
		exec = provision.DryRunExecutor{Out: out}
	}
	self, err := os.Executable()
	if err != nil {
		self = os.Args[0]
	}
	svc := vpc.NewService(store, provision.New(exec, logger), logger, vpc.Options{
		WebRoot:     cfg.WebRoot,
		ServeBinary: self,
		DryRun:      opts.DryRun,
	})
	logger.Debug("configured",
		zap.String(logging.FieldPath, cfg.StatePath),
		zap.String("backend", cfg.Backend),
		zap.Bool("dry_run", opts.DryRun))
	return &app{cfg: cfg, logger: logger, store: store, svc: svc}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing state store", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// withApp runs fn with a freshly wired app and closes it afterwards.
func withApp(cmd *cobra.Command, opts *GlobalOptions, fn func(a *app) error) error {
	a, err := newApp(opts, cmd.Name(), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// reportWarnings prints best-effort teardown failures. They never change the
// exit status.
func reportWarnings(cmd *cobra.Command, warnings []error) {
	for _, w := range warnings {
		lipgloss.Fprintln(cmd.ErrOrStderr(), theme.WarningStyle.Render("warning: "+w.Error()))
	}
	if len(warnings) > 0 {
		lipgloss.Fprintln(cmd.ErrOrStderr(), theme.WarningStyle.Render(
			fmt.Sprintf("%d teardown step(s) failed; remaining resources may need manual cleanup", len(warnings))))
	}
}

// exactArgs is cobra.ExactArgs reporting a validation error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return fmt.Errorf("%w: %v", topology.ErrInvalidInput, err)
		}
		return nil
	}
}

func dryRunNote(cmd *cobra.Command, opts *GlobalOptions) {
	if opts.DryRun {
		lipgloss.Fprintln(cmd.OutOrStdout(), theme.WarningStyle.Render("dry run: no changes were made"))
	}
}

// success prints a command's result line.
func success(cmd *cobra.Command, format string, args ...any) {
	lipgloss.Fprintln(cmd.OutOrStdout(), theme.SuccessStyle.Render(fmt.Sprintf(format, args...)))
}
