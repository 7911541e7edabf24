package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/trickstertwo/xlog"

	"github.com/trickstertwo/xqueue"
	"github.com/trickstertwo/xqueue/config"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	transport  string
	logLevel   string

	cfg    *config.Config
	logger *xlog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "xqueue",
		Short: "Reliable work queue client",
		Long:  "Produce, consume and monitor work on an xqueue broker over ZeroMQ, Redis Streams or in-process transports.",
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to YAML config file")
	root.PersistentFlags().StringVar(&a.transport, "transport", "", "transport name, overrides the config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		newProduceCmd(a),
		newConsumeCmd(a),
		newMonitorCmd(a),
		newBrokerCmd(a),
	)
	return root
}

func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.transport != "" {
		cfg.Transport.Name = a.transport
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := cfg.Log.Logger()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger.With(xlog.Str("app", "xqueue"))
	return nil
}

func (a *app) client() (*xqueue.Client, error) {
	c, err := a.cfg.Builder(a.logger).Build()
	if err != nil {
		return nil, fmt.Errorf("build client for transport %q: %w", a.cfg.Transport.Name, err)
	}
	return c, nil
}
