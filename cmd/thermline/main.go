package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"libdb.so/thermline"
)

var (
	config  = ""
	verbose = false
	device  = "/dev/ttyUSB0"
	baud    = 9600
	listen  = ""
	mock    = false
)

func init() {
	pflag.StringVarP(&config, "config", "c", config, "configuration file (.toml or .yaml)")
	pflag.BoolVarP(&verbose, "verbose", "v", verbose, "verbose output")
	pflag.StringVarP(&device, "device", "d", device, "serial device path")
	pflag.IntVarP(&baud, "baud", "b", baud, "serial baud rate")
	pflag.StringVarP(&listen, "listen", "l", listen, "address to serve readings over websocket on")
	pflag.BoolVar(&mock, "mock", mock, "generate simulated readings instead of opening the device")
}

func main() {
	pflag.Parse()

	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := readConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	d, err := thermline.NewDaemon(cfg, slog.Default(), os.Stdout)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("daemon failed: %w", err)
	}

	return nil
}

// readConfig reads the configuration file if one is given, then applies the
// environment and the flags that were set explicitly on top of it.
func readConfig() (*thermline.Config, error) {
	cfg := thermline.DefaultConfig()
	if config != "" {
		var err error
		cfg, err = thermline.ReadConfigFile(config)
		if err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	flags := pflag.CommandLine
	if flags.Changed("device") {
		cfg.Device = device
	}
	if flags.Changed("baud") {
		cfg.Baud = baud
	}
	if flags.Changed("listen") {
		cfg.Listen = listen
	}
	if flags.Changed("mock") {
		cfg.Mock = mock
	}

	return cfg, nil
}
