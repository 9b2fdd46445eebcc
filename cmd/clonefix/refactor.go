package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/clonefix/internal/output"
	"github.com/panbanda/clonefix/pkg/refactor"
)

func refactorCmd() *cli.Command {
	return &cli.Command{
		Name:      "refactor",
		Usage:     "Extract duplicated functions of one Python file into shared helpers",
		ArgsUsage: "<file>",
		Description: `Without --write the rewritten source is printed and the file is left alone.
With --write the original is first copied to <file><backup_suffix>.

Modes:
  wrapper   every duplicate keeps its name and forwards to the helper (default)
  collapse  the first function of a group is kept; the others are deleted and
            their call sites renamed`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "mode",
				Usage: "wrapper or collapse, default from config",
			},
			&cli.Float64Flag{
				Name:  "threshold",
				Usage: "Similarity threshold (0.0-1.0), default from config",
			},
			&cli.BoolFlag{
				Name:  "blocks",
				Usage: "Also extract duplicated statement blocks",
			},
			&cli.BoolFlag{
				Name:    "write",
				Aliases: []string{"w"},
				Usage:   "Rewrite the file in place",
			},
			&cli.BoolFlag{
				Name:  "diff-only",
				Usage: "Print the replaced spans instead of the whole file",
			},
			&cli.StringFlag{
				Name:  "backup-suffix",
				Usage: "Suffix of the backup written by --write, empty for none (default from config)",
			},
		},
		Action: runRefactor,
	}
}

// refactorOutput is the structured result of a refactor run.
type refactorOutput struct {
	File      string           `json:"file"`
	Changed   bool             `json:"changed"`
	Written   bool             `json:"written"`
	Backup    string           `json:"backup,omitempty"`
	Functions *refactor.Result `json:"functions"`
	Blocks    *refactor.Result `json:"blocks,omitempty"`
	Source    string           `json:"-"`
}

func runRefactor(c *cli.Context) error {
	st := stateOf(c)
	path, err := singleFile(c)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	opts := []refactor.Option{refactor.WithConfig(st.cfg), refactor.WithLogger(st.log.WithField("file", path))}
	if c.IsSet("mode") {
		opts = append(opts, refactor.WithMode(refactor.Mode(c.String("mode"))))
	}
	if c.IsSet("threshold") {
		opts = append(opts, refactor.WithThreshold(c.Float64("threshold")))
	}
	r := refactor.New(opts...)

	out := &refactorOutput{File: path}
	fn, err := r.Refactor(src)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	out.Functions, out.Source, out.Changed = fn, fn.Source, fn.Changed
	if c.Bool("blocks") {
		blocks, err := r.RefactorBlocks([]byte(fn.Source))
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		out.Blocks, out.Source = blocks, blocks.Source
		out.Changed = out.Changed || blocks.Changed
	}

	if out.Changed && (c.Bool("write") || st.cfg.Refactor.InPlace) {
		suffix := st.cfg.Refactor.BackupSuffix
		if c.IsSet("backup-suffix") {
			suffix = c.String("backup-suffix")
		}
		if suffix != "" {
			out.Backup = path + suffix
			if err := os.WriteFile(out.Backup, src, info.Mode().Perm()); err != nil {
				return fmt.Errorf("backup: %w", err)
			}
		}
		if err := os.WriteFile(path, []byte(out.Source), info.Mode().Perm()); err != nil {
			return err
		}
		out.Written = true
	}

	formatter, err := newFormatter(c)
	if err != nil {
		return err
	}
	defer formatter.Close()

	for _, res := range []*refactor.Result{out.Functions, out.Blocks} {
		if res == nil {
			continue
		}
		for _, s := range res.Skipped {
			st.log.WithField("reason", s.Reason).Infof("skipped %s", s.What)
		}
	}

	switch {
	case formatter.Format() == output.FormatJSON || formatter.Format() == output.FormatTOON:
		return formatter.Output(out)
	case !out.Changed:
		fmt.Fprintf(c.App.ErrWriter, "%s: %s\n", path, refactor.NoDuplicates)
		return nil
	case c.Bool("diff-only"):
		diff := &output.Diff{File: path, Hunks: hunks(src, fn.Edits)}
		if out.Blocks != nil {
			diff.Hunks = append(diff.Hunks, hunks([]byte(fn.Source), out.Blocks.Edits)...)
		}
		return formatter.Output(diff)
	case out.Written:
		msg := fmt.Sprintf("rewrote %s", path)
		if out.Backup != "" {
			msg += fmt.Sprintf(" (original saved to %s)", out.Backup)
		}
		formatter.Success("%s", msg)
		return nil
	default:
		_, err := fmt.Fprint(formatter.Writer(), out.Source)
		return err
	}
}

// hunks converts edits against src into diff hunks with 1-based lines.
func hunks(src []byte, edits []refactor.Edit) []output.Hunk {
	out := make([]output.Hunk, 0, len(edits))
	for _, e := range edits {
		out = append(out, output.Hunk{
			Line:        bytes.Count(src[:e.Start], []byte("\n")) + 1,
			Description: e.Description,
			Old:         e.OldText,
			New:         e.NewText,
		})
	}
	return out
}
