// SPDX-License-Identifier: EPL-2.0

// Package cli is the audstream command line tool.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/ik5/audstream/internal/config"
	"github.com/ik5/audstream/internal/logger"
)

// app is the state shared by the commands of one invocation.
type app struct {
	configPath string
	cfg        *config.Config
	log        *logger.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{cfg: config.New()}

	root := &cobra.Command{
		Use:           "audstream",
		Short:         "Stream audio callbacks as events",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.log == nil {
				return nil
			}
			return a.log.Close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Optional path to a toml config file")
	flags.StringP("log-level", "l", "info", "Log level: debug, info, warn or error")
	flags.String("log-format", "text", "Log format: text or json")

	root.AddCommand(
		newDevicesCmd(a),
		newMonitorCmd(a),
		newReplayCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	flags := cmd.Root().PersistentFlags()
	if err := a.cfg.BindFlag("log.level", flags.Lookup("log-level")); err != nil {
		return err
	}
	if err := a.cfg.BindFlag("log.format", flags.Lookup("log-format")); err != nil {
		return err
	}
	if err := a.cfg.Read(a.configPath); err != nil {
		return err
	}

	log, err := logger.New(a.cfg)
	if err != nil {
		return err
	}
	a.log = log
	if file := a.cfg.ConfigFile(); file != "" {
		log.WithField("file", file).Debug("config loaded")
	}
	return nil
}

// Run executes the command line.
func Run() error {
	return newRootCmd().Execute()
}
