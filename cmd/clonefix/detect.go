package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/clonefix/internal/progress"
	"github.com/panbanda/clonefix/internal/report"
	"github.com/panbanda/clonefix/internal/scanner"
	"github.com/panbanda/clonefix/pkg/analyzer/duplicates"
)

func detectCmd() *cli.Command {
	return &cli.Command{
		Name:      "detect",
		Aliases:   []string{"dup"},
		Usage:     "Report near-duplicate blocks in each Python file",
		ArgsUsage: "[path...]",
		Flags: []cli.Flag{
			&cli.Float64Flag{
				Name:  "threshold",
				Usage: "Similarity threshold (0.0-1.0), default from config",
			},
			&cli.IntFlag{
				Name:  "min-lines",
				Usage: "Minimum non-blank lines per block, default from config",
			},
		},
		Action: runDetect,
	}
}

func runDetect(c *cli.Context) error {
	st := stateOf(c)
	files, err := scanner.NewScanner(st.cfg).Scan(getPaths(c))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(c.App.ErrWriter, "No Python files found")
		return nil
	}

	tracker := progress.Maybe(showProgress(c), "Detecting duplicates", len(files))
	opts := []duplicates.Option{
		duplicates.WithConfig(st.cfg.Duplicates),
		duplicates.WithLogger(st.log),
		duplicates.WithProgress(tracker.Tick),
	}
	if c.IsSet("threshold") {
		opts = append(opts, duplicates.WithThreshold(c.Float64("threshold")))
	}
	if c.IsSet("min-lines") {
		opts = append(opts, duplicates.WithMinBlockLines(c.Int("min-lines")))
	}
	a := duplicates.New(opts...)
	defer a.Close()

	result, err := a.Analyze(c.Context, files)
	tracker.Done()
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	formatter, err := newFormatter(c)
	if err != nil {
		return err
	}
	defer formatter.Close()
	return formatter.Output(report.Duplicates(result))
}
