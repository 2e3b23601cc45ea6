package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/barcoded/internal/calendar"
	"github.com/danmuck/barcoded/internal/config"
	"github.com/spf13/pflag"
)

type options struct {
	start calendar.Date
	end   calendar.Date
	print bool
	cfg   config.ClientConfig
}

type flagValues struct {
	configPath string
	server     string
	timeout    time.Duration
	print      bool
	db         config.DatabaseConfig
}

func newFlagSet(v *flagValues) *pflag.FlagSet {
	flags := pflag.NewFlagSet("barcodectl", pflag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), "usage: barcodectl [flags] START END\n\nSTART and END are inclusive YYYY-MM-DD dates.\n\n")
		flags.PrintDefaults()
	}
	flags.StringVarP(&v.configPath, "config", "c", "", "path to the client TOML config")
	flags.StringVarP(&v.server, "server", "s", config.DefaultListen, "server address (host:port)")
	flags.DurationVar(&v.timeout, "timeout", config.DefaultClientTimeout, "overall query timeout, 0 disables")
	flags.BoolVar(&v.print, "print", false, "print rows to stdout instead of writing to the database")
	flags.StringVar(&v.db.Driver, "db-driver", "postgres", "database driver: postgres|sqlite")
	flags.StringVar(&v.db.DSN, "db-dsn", "", "database DSN (sqlite file path or postgres URL)")
	flags.StringVar(&v.db.Host, "db-host", "localhost", "postgres host")
	flags.IntVar(&v.db.Port, "db-port", 5432, "postgres port")
	flags.StringVar(&v.db.Name, "db-name", "barcodes", "postgres database name")
	flags.StringVar(&v.db.User, "db-user", "", "postgres user")
	flags.StringVar(&v.db.Password, "db-password", "", "postgres password")
	flags.StringVar(&v.db.SSLMode, "db-sslmode", "disable", "postgres sslmode")
	flags.StringVar(&v.db.Table, "db-table", config.DefaultTable, "target table")
	return flags
}

// parseArgs resolves defaults, then the config file, then flags that were
// set explicitly.
func parseArgs(args []string) (options, error) {
	var v flagValues
	flags := newFlagSet(&v)
	if err := flags.Parse(args); err != nil {
		return options{}, err
	}
	if flags.NArg() != 2 {
		flags.Usage()
		return options{}, fmt.Errorf("expected START and END, got %d arguments", flags.NArg())
	}
	start, err := calendar.Parse(flags.Arg(0))
	if err != nil {
		return options{}, fmt.Errorf("parse START: %w", err)
	}
	end, err := calendar.Parse(flags.Arg(1))
	if err != nil {
		return options{}, fmt.Errorf("parse END: %w", err)
	}

	cfg := config.DefaultClientConfig()
	if strings.TrimSpace(v.configPath) != "" {
		cfg, err = config.LoadClientConfig(v.configPath)
		if err != nil {
			return options{}, err
		}
	}
	overlayFlags(flags, v, &cfg)

	opts := options{start: start, end: end, print: v.print, cfg: cfg}
	if strings.TrimSpace(cfg.Server) == "" {
		return options{}, fmt.Errorf("server address is empty")
	}
	if !opts.print {
		if err := config.ValidateDatabaseConfig(cfg.Database); err != nil {
			return options{}, err
		}
	}
	return opts, nil
}

func overlayFlags(flags *pflag.FlagSet, v flagValues, cfg *config.ClientConfig) {
	if flags.Changed("server") {
		cfg.Server = strings.TrimSpace(v.server)
	}
	if flags.Changed("timeout") {
		cfg.Timeout = v.timeout
	}
	db := &cfg.Database
	if flags.Changed("db-driver") {
		db.Driver = strings.TrimSpace(v.db.Driver)
	}
	if flags.Changed("db-dsn") {
		db.DSN = strings.TrimSpace(v.db.DSN)
	}
	if flags.Changed("db-host") {
		db.Host = strings.TrimSpace(v.db.Host)
	}
	if flags.Changed("db-port") {
		db.Port = v.db.Port
	}
	if flags.Changed("db-name") {
		db.Name = strings.TrimSpace(v.db.Name)
	}
	if flags.Changed("db-user") {
		db.User = strings.TrimSpace(v.db.User)
	}
	if flags.Changed("db-password") {
		db.Password = v.db.Password
	}
	if flags.Changed("db-sslmode") {
		db.SSLMode = strings.TrimSpace(v.db.SSLMode)
	}
	if flags.Changed("db-table") {
		db.Table = strings.TrimSpace(v.db.Table)
	}
}
