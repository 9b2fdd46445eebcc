package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/clonefix/internal/logging"
	"github.com/panbanda/clonefix/internal/output"
	"github.com/panbanda/clonefix/pkg/config"
)

var (
	version = "dev"
	commit  = "none"    //nolint:unused // set via ldflags at build time
	date    = "unknown" //nolint:unused // set via ldflags at build time
)

const stateKey = "state"

// state is what Before resolves for every command.
type state struct {
	cfg       *config.Config
	cfgSource string
	log       *logrus.Logger
}

func stateOf(c *cli.Context) *state {
	return c.App.Metadata[stateKey].(*state)
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "clonefix",
		Usage:     "Find duplicated Python code and extract it into shared helpers",
		Version:   version,
		Writer:    stdout,
		ErrWriter: stderr,
		Metadata:  make(map[string]interface{}),
		Description: `clonefix compares the blocks of each Python file after abstracting away
identifiers and literals, reports near-duplicates, and rewrites duplicated
functions to share one extracted helper.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (TOML, YAML, or JSON)",
				EnvVars: []string{"CLONEFIX_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, json, markdown, toon (default from config)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write output to file",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level: trace, debug, info, warn, error (default from config)",
				EnvVars: []string{"CLONEFIX_LOG_LEVEL"},
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored output",
			},
			&cli.BoolFlag{
				Name:  "no-progress",
				Usage: "Disable progress bars",
			},
		},
		Before: func(c *cli.Context) error {
			var opts []config.LoadOption
			if path := c.String("config"); path != "" {
				opts = append(opts, config.WithPath(path))
			}
			loaded, err := config.LoadConfig(opts...)
			if err != nil {
				return err
			}

			level := loaded.Config.Log.Level
			if c.IsSet("log-level") {
				level = c.String("log-level")
			}
			log, err := logging.New(logging.Options{
				Level:  level,
				Format: loaded.Config.Log.Format,
				Output: c.App.ErrWriter,
			})
			if err != nil {
				return err
			}
			if c.Bool("no-color") {
				color.NoColor = true
			}

			c.App.Metadata[stateKey] = &state{cfg: loaded.Config, cfgSource: loaded.Source, log: log}
			return nil
		},
		Commands: []*cli.Command{
			detectCmd(),
			refactorCmd(),
			smellsCmd(),
			debugCmd(),
			initCmd(),
			configCmd(),
			mcpCmd(),
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newApp(os.Stdout, os.Stderr).RunContext(ctx, os.Args)
	stop()
	if err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

// getPaths returns paths from positional args, defaulting to ["."].
func getPaths(c *cli.Context) []string {
	if c.Args().Len() > 0 {
		return c.Args().Slice()
	}
	return []string{"."}
}

// singleFile returns the one positional argument a command requires.
func singleFile(c *cli.Context) (string, error) {
	if c.Args().Len() != 1 {
		return "", fmt.Errorf("%s needs exactly one file argument", c.Command.Name)
	}
	return c.Args().First(), nil
}

// newFormatter honors --format, --output and --no-color over the config.
func newFormatter(c *cli.Context) (*output.Formatter, error) {
	st := stateOf(c)
	format := st.cfg.Output.Format
	if f := c.String("format"); f != "" {
		format = f
	}
	colored := st.cfg.Output.Color && !c.Bool("no-color")
	if path := c.String("output"); path != "" {
		return output.NewFormatter(output.ParseFormat(format), path, false)
	}
	return output.New(output.ParseFormat(format), c.App.Writer, colored), nil
}

// showProgress reports whether progress bars should be drawn.
func showProgress(c *cli.Context) bool {
	return !c.Bool("no-progress") && c.App.ErrWriter == os.Stderr
}
