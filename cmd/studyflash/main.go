package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/vytor/studyflash/internal/config"
	"github.com/vytor/studyflash/internal/logger"
)

const usage = `usage: studyflash <command> [flags]

commands:
  serve    run the JSON session API
  import   import cards from a JSON file
  due      list the next cards to study
  review   record a review outcome for a card
  stats    print study statistics
`

type command func(ctx context.Context, cfg *config.Config, fs *pflag.FlagSet, args []string, out io.Writer) error

var commands = map[string]command{
	"serve":  runServe,
	"import": runImport,
	"due":    runDue,
	"review": runReview,
	"stats":  runStats,
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	name := os.Args[1]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", name, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, name, cmd, os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "studyflash %s: %v\n", name, err)
		os.Exit(1)
	}
}

// run applies the shared flags on top of the environment configuration and
// hands the rest of the arguments to cmd.
func run(ctx context.Context, name string, cmd command, args []string, out io.Writer) error {
	cfg := config.Load()

	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to the SQLite database")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (DEBUG, INFO, WARN, ERROR)")
	if name == "serve" {
		fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	}

	return cmd(ctx, &cfg, fs, args, out)
}

// setup finishes configuration once the command's flags are parsed.
func setup(cfg config.Config) (*logger.Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.New(
		logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
		logger.WithColors(true),
	)
	logger.SetDefault(log)
	log.Debug("db_path=%s", cfg.DBPath)
	log.Debug("log_level=%s", cfg.LogLevel)
	return log, nil
}
