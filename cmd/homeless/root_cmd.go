package main

import (
	"io"
	"os"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/spf13/cobra"

	"github.com/fluxcd/homeless/pkg/config"
)

type rootOpts struct {
	configFile string
	// flags holds whatever was given on the command line; it's the
	// top layer of the configuration.
	flags  config.Config
	getenv   func(string) string
	stderr   io.Writer
	progress bool

	// Set by PersistentPreRunE
	Config config.Config
	Logger log.Logger
	// errw is stderr, shared by the logger and the progress bar.
	errw io.Writer
}

func newRoot() *rootOpts {
	return &rootOpts{
		getenv: config.Getenv,
		stderr: os.Stderr,
	}
}

var rootLongHelp = strings.TrimSpace(`
homeless deploys jobs to Nomad from a CI pipeline.

It reads its settings from the Drone plugin environment, an optional
config file and flags, in that order of precedence.

Workflow:
  homeless deploy --env staging --task all --plan   # What would change?
  homeless deploy --env staging --task api          # Deploy; wait for canaries.
  homeless promote --job api                        # Promote the canaries.
`)

func (opts *rootOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "homeless",
		Long:              rootLongHelp,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: opts.PersistentPreRunE,
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})
	fs := cmd.PersistentFlags()
	fs.StringVar(&opts.configFile, "config", "", "path to a YAML config file")
	fs.BoolVar(&opts.flags.Debug, "debug", false, "log at debug level, including the final job specification")
	fs.BoolVar(&opts.flags.Local, "local", false, "run against a local Nomad agent, reading overrides from files")
	fs.StringVar(&opts.flags.Pushgateway, "pushgateway", "", "URL of a Prometheus pushgateway to send metrics to on exit")
	fs.DurationVar(&opts.flags.Timeout, "timeout", 0, "give up after this long; zero means wait as long as it takes")
	fs.DurationVar(&opts.flags.Interval, "interval", 0, "how often to check on a deployment (default 10s)")
	fs.BoolVar(&opts.progress, "progress", false, "show a bar of healthy allocations while waiting for canaries")

	cmd.AddCommand(
		newDeploy(opts).Command(),
		newPromote(opts).Command(),
		newProxy(opts).Command(),
		newVersionCommand(),
	)
	return cmd
}

func (opts *rootOpts) PersistentPreRunE(cmd *cobra.Command, _ []string) error {
	c, err := config.Load(opts.configFile, opts.getenv, opts.flags)
	if err != nil {
		return err
	}
	opts.Config = c
	opts.errw = log.NewSyncWriter(opts.stderr)
	opts.Logger = newLogger(opts.errw, c.Debug)
	return nil
}

// newLogger logs to w, which must be safe for concurrent use.
func newLogger(w io.Writer, debug bool) log.Logger {
	var logger log.Logger
	{
		logger = log.NewLogfmtLogger(w)
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
		if debug {
			logger = level.NewFilter(logger, level.AllowDebug())
		} else {
			logger = level.NewFilter(logger, level.AllowInfo())
		}
	}
	return logger
}
