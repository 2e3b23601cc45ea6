package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/danmuck/barcoded/internal/config"
	"github.com/danmuck/barcoded/internal/observability"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

var defaultPaths = map[string]string{
	"server": "cmd/barcoded/config.toml",
	"client": "cmd/barcodectl/config.toml",
}

func main() {
	observability.InitLogger("configgen")
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatal().Err(err).Msg("configgen failed")
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("configgen", pflag.ContinueOnError)
	kind := flags.String("kind", "server", "config kind: server|client")
	output := flags.String("output", "", "output path for config template")
	validate := flags.Bool("validate", false, "validate an existing config file")
	input := flags.String("input", "", "config path for validation (defaults to per-kind cmd path)")
	force := flags.Bool("force", false, "overwrite existing config file")
	if err := flags.Parse(args); err != nil {
		return err
	}

	fallback, ok := defaultPaths[*kind]
	if !ok {
		return fmt.Errorf("unknown kind: %s", *kind)
	}

	if *validate {
		path := *input
		if path == "" {
			path = fallback
		}
		var err error
		switch *kind {
		case "server":
			_, err = config.LoadServerConfig(path)
		case "client":
			_, err = config.LoadClientConfig(path)
		}
		if err != nil {
			return err
		}
		log.Info().Str("kind", *kind).Str("path", path).Msg("validated config")
		return nil
	}

	target := *output
	if target == "" {
		target = fallback
	}
	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		return err
	}
	log.Info().Str("kind", *kind).Str("path", target).Msg("wrote config template")
	return nil
}
