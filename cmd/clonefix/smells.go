package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/clonefix/internal/progress"
	"github.com/panbanda/clonefix/internal/report"
	"github.com/panbanda/clonefix/internal/scanner"
	"github.com/panbanda/clonefix/pkg/analyzer/duplicates"
	"github.com/panbanda/clonefix/pkg/analyzer/smells"
)

func smellsCmd() *cli.Command {
	return &cli.Command{
		Name:      "smells",
		Usage:     "Combined report of duplicates, long methods and long parameter lists",
		ArgsUsage: "[path...]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "long-method-lines",
				Usage: "Report functions longer than this many lines, default from config",
			},
			&cli.IntFlag{
				Name:  "long-parameter-count",
				Usage: "Report functions with more parameters than this, default from config",
			},
		},
		Action: runSmells,
	}
}

func runSmells(c *cli.Context) error {
	st := stateOf(c)
	paths := getPaths(c)
	files, err := scanner.NewScanner(st.cfg).Scan(paths)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(c.App.ErrWriter, "No Python files found")
		return nil
	}

	cfg := st.cfg.Smells
	if c.IsSet("long-method-lines") {
		cfg.LongMethodLines = c.Int("long-method-lines")
	}
	if c.IsSet("long-parameter-count") {
		cfg.LongParameterCount = c.Int("long-parameter-count")
	}

	tracker := progress.Maybe(showProgress(c), "Scanning", 2*len(files))
	dup := duplicates.New(
		duplicates.WithConfig(st.cfg.Duplicates),
		duplicates.WithLogger(st.log),
		duplicates.WithProgress(tracker.Tick),
	)
	defer dup.Close()
	dupResult, err := dup.Analyze(c.Context, files)
	if err != nil {
		tracker.Fail(err)
		return fmt.Errorf("duplicate analysis failed: %w", err)
	}

	sm := smells.New(
		smells.WithConfig(cfg),
		smells.WithLogger(st.log),
		smells.WithProgress(tracker.Tick),
	)
	defer sm.Close()
	smellResult, err := sm.Analyze(c.Context, files)
	tracker.Done()
	if err != nil {
		return fmt.Errorf("smell analysis failed: %w", err)
	}

	r := report.Build(report.Metadata{
		GeneratedAt: time.Now().UTC(),
		Version:     version,
		Paths:       paths,
	}, dupResult, smellResult)

	formatter, err := newFormatter(c)
	if err != nil {
		return err
	}
	defer formatter.Close()
	return formatter.Output(r)
}
