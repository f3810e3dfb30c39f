package cli

import (
	"slices"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/haikusw/JaqalPaw/internal/config"
	"github.com/haikusw/JaqalPaw/internal/metrics"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Color   string // "auto" | "on" | "off"
	Config  string // project file; empty searches from the working directory
	Metrics string // Prometheus text file written after the command

	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// ValidColors defines the allowed color modes.
var ValidColors = []string{"auto", "on", "off"}

// NewRootCommand creates the root command for the octet CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "octet",
		Short: "octet - trapped-ion gate compiler",
		Long: `Compile gate circuits into lookup-table bytecode for the octet pulse
hardware, stream them as bypass words, and decode bytecode back into
waveforms.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return errors.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if !slices.Contains(ValidColors, opts.Color) {
				return errors.Errorf("invalid color %q: must be one of %v", opts.Color, ValidColors)
			}
			return opts.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			_ = opts.logger.Sync()
			if opts.Metrics == "" {
				return nil
			}
			if err := prometheus.WriteToTextfile(opts.Metrics, opts.registry); err != nil {
				return WrapExitError(ExitCommandError, "failed to write metrics", err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Color, "color", "auto", "colorize output (auto|on|off)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "project file (default: nearest "+config.FileName+")")
	cmd.PersistentFlags().StringVar(&opts.Metrics, "metrics", "", "write Prometheus metrics to this file")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewStreamCommand(opts))
	cmd.AddCommand(NewDecodeCommand(opts))
	cmd.AddCommand(NewArchiveCommand(opts))
	cmd.AddCommand(NewBatchCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// setup builds the logger and the metrics registry shared by a command run.
func (o *RootOptions) setup() error {
	o.logger = zap.NewNop()
	if o.Verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return errors.Wrap(err, "failed to build logger")
		}
		o.logger = l
	}
	o.registry = prometheus.NewRegistry()
	o.metrics = metrics.New(o.registry)
	return nil
}

// Logger returns the command logger, a no-op before setup.
func (o *RootOptions) Logger() *zap.Logger {
	if o.logger == nil {
		return zap.NewNop()
	}
	return o.logger
}

// loadConfig reads --config, or discovers the project file from the
// working directory.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	if o.Config != "" {
		cfg, err := config.Load(o.Config)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load config", err)
		}
		return cfg, nil
	}
	cfg, err := config.Discover(".")
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}
