package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"profiler-service/internal/app"
	"profiler-service/internal/config"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// cli carries the state shared by every command of one invocation.
type cli struct {
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "profiler",
		Short:         "Collect evidence about a subject and talk to its persona",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Path to config file (default $CONFIG_PATH or "+config.DefaultPath+")")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Log at debug level")

	root.AddCommand(
		newCollectCmd(c),
		newChatCmd(c),
		newRecordsCmd(c),
		newTokenCmd(c),
	)
	return root
}

func (c *cli) init(cmd *cobra.Command) error {
	logCfg := zap.NewDevelopmentConfig()
	if !c.verbose {
		logCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	logger, err := logCfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	c.logger = logger

	path := c.configPath
	explicit := path != ""
	if !explicit {
		path = config.Path()
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		logger.Debug("No config file, using defaults", zap.String("path", path))
		cfg = config.Default()
	}
	c.cfg = cfg
	return nil
}

// open wires the engine for commands that need it.
func (c *cli) open() (*app.App, error) {
	return app.New(c.cfg, c.logger)
}

// signalContext is cancelled on interrupt.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}
