package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/clonefix/internal/output"
	"github.com/panbanda/clonefix/pkg/refactor"
)

func debugCmd() *cli.Command {
	return &cli.Command{
		Name:      "debug",
		Usage:     "Dump the function tokens and pairwise similarities of one file",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.Float64Flag{
				Name:  "threshold",
				Usage: "Similarity threshold (0.0-1.0), default from config",
			},
		},
		Action: runDebug,
	}
}

func runDebug(c *cli.Context) error {
	st := stateOf(c)
	path, err := singleFile(c)
	if err != nil {
		return err
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	threshold := st.cfg.Duplicates.Threshold
	if c.IsSet("threshold") {
		threshold = c.Float64("threshold")
	}
	dump, err := refactor.New(refactor.WithConfig(st.cfg), refactor.WithLogger(st.log)).Debug(src, threshold)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	formatter, err := newFormatter(c)
	if err != nil {
		return err
	}
	defer formatter.Close()
	if formatter.Format() != output.FormatText {
		return formatter.Output(dump)
	}

	rows := make([][]string, 0, len(dump.Similarities))
	for _, s := range dump.Similarities {
		mark := ""
		if refactorDuplicate(dump, s) {
			mark = "duplicate"
		}
		rows = append(rows, []string{s.A, s.B, output.Percent(s.Similarity), mark})
	}
	return formatter.Output(&output.Report{
		Title: fmt.Sprintf("%s at threshold %s", path, output.Percent(threshold)),
		Sections: []output.Renderable{
			output.NewTable("Similarities", []string{"A", "B", "Similarity", ""}, rows, nil, nil),
			groupsTable(dump.Groups),
		},
	})
}

func refactorDuplicate(dump *refactor.DebugDump, s refactor.FunctionScore) bool {
	for _, d := range dump.Duplicates {
		if d == s {
			return true
		}
	}
	return false
}

func groupsTable(groups []refactor.Group) *output.Table {
	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		names := ""
		for i, m := range g.Members {
			if i > 0 {
				names += ", "
			}
			names += m.Name
		}
		rows = append(rows, []string{g.Helper, names, output.Percent(g.Similarity)})
	}
	return output.NewTable("Groups", []string{"Helper", "Members", "Similarity"}, rows, nil, nil)
}
