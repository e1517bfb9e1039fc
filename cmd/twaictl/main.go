package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/notnil/twai"
)

var (
	rootOpts = struct {
		configPath    string
		iface         string
		bitrate       int
		mode          string
		noAutorecover bool
		configureLink bool
		logTraffic    bool
		verbose       bool
	}{}

	rootCmd = &cobra.Command{
		Use:           "twaictl",
		Short:         "Drive a TWAI (CAN) controller",
		Long:          "Install, start and monitor a CAN controller over SocketCAN or an in-memory loopback bus.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVarP(&rootOpts.configPath, "config", "c", "", "YAML controller configuration file")
	f.StringVarP(&rootOpts.iface, "iface", "i", "loopback", "CAN interface (e.g. can0) or \"loopback\"")
	f.IntVarP(&rootOpts.bitrate, "bitrate", "b", 0, "bit rate in bit/s, overrides the configuration")
	f.StringVarP(&rootOpts.mode, "mode", "m", "", "normal, listen-only or loopback, overrides the configuration")
	f.BoolVar(&rootOpts.noAutorecover, "no-autorecover", false, "do not request recovery on bus-off")
	f.BoolVar(&rootOpts.configureLink, "configure-link", false, "apply bit rate and mode with `ip link` (needs CAP_NET_ADMIN)")
	f.BoolVar(&rootOpts.logTraffic, "log-traffic", false, "log every transmitted and received frame")
	f.BoolVarP(&rootOpts.verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(monitorCmd, sendCmd, bitratesCmd)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if rootOpts.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads the configuration file, if any, and applies flag
// overrides.
func loadConfig(cmd *cobra.Command) (twai.Config, error) {
	cfg := twai.DefaultConfig()
	if rootOpts.configPath != "" {
		var err error
		if cfg, err = twai.LoadConfig(rootOpts.configPath); err != nil {
			return twai.Config{}, err
		}
	}
	if cmd.Flags().Changed("bitrate") {
		cfg.Bitrate = rootOpts.bitrate
	}
	if rootOpts.mode != "" {
		m, err := twai.ParseMode(rootOpts.mode)
		if err != nil {
			return twai.Config{}, err
		}
		cfg.Mode = m
	}
	if rootOpts.noAutorecover {
		cfg.AutoRecover = false
	}
	return cfg, cfg.Validate()
}

// openController builds the driver named by --iface and a controller on it.
func openController(cmd *cobra.Command, logger *slog.Logger) (*twai.Controller, *twai.LoopbackDriver, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	var (
		drv  twai.Driver
		loop *twai.LoopbackDriver
	)
	if rootOpts.iface == "loopback" {
		loop = twai.NewLoopbackBus().Open()
		drv = loop
	} else {
		sc, err := twai.NewSocketCANDriver(rootOpts.iface, twai.SocketCANOptions{ConfigureLink: rootOpts.configureLink})
		if err != nil {
			return nil, nil, err
		}
		drv = sc
	}
	if rootOpts.logTraffic {
		drv = twai.NewLoggedDriver(drv, logger, slog.LevelInfo, twai.LogAll)
	}
	c, err := twai.Initialize(drv, cfg, twai.WithLogger(logger), twai.WithOrderedShutdown())
	if err != nil {
		return nil, nil, err
	}
	return c, loop, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "twaictl:", err)
		os.Exit(1)
	}
}
