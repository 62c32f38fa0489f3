// Command zukku serves the prompt-to-image studio and renders zoom clips
// from the command line.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/aggressionjsk/ai-saas-app/internal/config"
	xglog "github.com/aggressionjsk/ai-saas-app/internal/log"
)

// Set via -ldflags "-X main.version=...".
var version = "dev"

const usage = `usage: zukku <command> [flags]

commands:
  serve     run the HTTP studio
  animate   render a zoom clip from a local image or PDF
  generate  fetch an image for a prompt, optionally with a clip
  config    print the effective configuration
  version   print the version
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "serve":
		err = runServe(ctx, args)
	case "animate":
		err = runAnimate(ctx, args)
	case "generate":
		err = runGenerate(ctx, args)
	case "config":
		err = runConfig(args)
	case "version":
		fmt.Println(version)
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		logger := xglog.Base()
		logger.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// loadConfig reads the file and env layers and sets up logging. Flag
// overrides are applied by the caller, followed by Validate.
func loadConfig(path string, console bool) (config.Config, error) {
	cfg, err := config.Load(path, version)
	if err != nil {
		return config.Config{}, err
	}
	lc := xglog.Config{Level: cfg.Log.Level, Service: cfg.Log.Service, Version: version}
	if console {
		lc.Output = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	}
	xglog.Configure(lc)
	return cfg, nil
}

// visited returns the names of the flags set on the command line.
func visited(fs *flag.FlagSet) map[string]bool {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func runConfig(args []string) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(*configPath, true)
	if err != nil {
		return err
	}
	return config.Write(cfg, os.Stdout)
}
