// barcoded answers date-range queries over the barcode counter tree.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/danmuck/barcoded/internal/aggregate"
	"github.com/danmuck/barcoded/internal/config"
	"github.com/danmuck/barcoded/internal/observability"
	"github.com/danmuck/barcoded/internal/protocol/frame"
	"github.com/danmuck/barcoded/internal/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

const defaultConfigPath = "/etc/barcoded/config.toml"

type options struct {
	configPath string
	listen     string
	opsAddr    string
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "barcoded: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	observability.InitLoggerWith("barcoded", cfg.Logging.Level, cfg.Logging.Format)
	log.Info().
		Str("config", opts.configPath).
		Str("barcode_path", cfg.Barcode.Path).
		Msg("starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(server.Config{
		Listen:  cfg.Server.Listen,
		OpsAddr: cfg.Server.OpsAddr,
		Limits:  frame.Limits{MaxPayloadBytes: cfg.Frame.MaxPayloadBytes},
	}, aggregate.New(cfg.Barcode.Path))

	if err := srv.Run(ctx); err != nil {
		return err
	}
	log.Info().Uint64("served", srv.Served()).Msg("stopped")
	return nil
}

func parseFlags(args []string) (options, error) {
	var opts options
	flags := pflag.NewFlagSet("barcoded", pflag.ContinueOnError)
	flags.StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "path to the server TOML config")
	flags.StringVarP(&opts.listen, "listen", "l", "", "override server.listen (host:port)")
	flags.StringVar(&opts.opsAddr, "ops-addr", "", "override server.ops_addr (host:port)")
	if err := flags.Parse(args); err != nil {
		return options{}, err
	}
	if flags.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %s", strings.Join(flags.Args(), " "))
	}
	return opts, nil
}

// loadConfig reads the file, then applies command-line overrides and
// validates the result.
func loadConfig(opts options) (config.ServerConfig, error) {
	cfg, err := config.LoadServerConfig(opts.configPath)
	if err != nil {
		return config.ServerConfig{}, err
	}
	if listen := strings.TrimSpace(opts.listen); listen != "" {
		cfg.Server.Listen = listen
	}
	if ops := strings.TrimSpace(opts.opsAddr); ops != "" {
		cfg.Server.OpsAddr = ops
	}
	if err := config.ValidateServerConfig(cfg); err != nil {
		return config.ServerConfig{}, err
	}
	return cfg, nil
}
