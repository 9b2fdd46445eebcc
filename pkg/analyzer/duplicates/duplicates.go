// Package duplicates detects Type-2 clones in Python source: fragments that
// are identical once identifiers and literals are abstracted away.
package duplicates

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/panbanda/clonefix/internal/fileproc"
	"github.com/panbanda/clonefix/internal/logging"
	"github.com/panbanda/clonefix/pkg/analyzer"
	"github.com/panbanda/clonefix/pkg/config"
	"github.com/panbanda/clonefix/pkg/parser"
	"github.com/panbanda/clonefix/pkg/source"
)

var _ analyzer.FileAnalyzer[*Analysis, *ProjectAnalysis] = (*Analyzer)(nil)

// Analyzer detects duplicated blocks within each file.
// Configuration is fixed at construction; per-file state lives on the stack,
// so one Analyzer may serve concurrent Analyze calls.
type Analyzer struct {
	cfg        Config
	log        logrus.FieldLogger
	src        source.ContentSource
	maxWorkers int
	onProgress fileproc.ProgressFunc
}

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithThreshold sets the similarity threshold.
func WithThreshold(threshold float64) Option {
	return func(a *Analyzer) {
		a.cfg.Threshold = threshold
	}
}

// WithNGramSize sets the n-gram window length.
func WithNGramSize(k int) Option {
	return func(a *Analyzer) {
		if k > 0 {
			a.cfg.NGramSize = k
		}
	}
}

// WithMinBlockLines sets the minimum non-blank lines per block.
func WithMinBlockLines(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.cfg.MinBlockLines = n
		}
	}
}

// WithLiteralShapes enables the float/date/time literal tags.
func WithLiteralShapes(enabled bool) Option {
	return func(a *Analyzer) {
		a.cfg.LiteralShapes = enabled
	}
}

// WithMaxUnits caps the comparison units per file.
func WithMaxUnits(n int) Option {
	return func(a *Analyzer) {
		a.cfg.MaxUnits = n
	}
}

// WithConfig applies the duplicates section of a loaded configuration.
func WithConfig(cfg config.DuplicateConfig) Option {
	return func(a *Analyzer) {
		a.cfg = Config{
			Threshold:     cfg.Threshold,
			NGramSize:     cfg.NGramSize,
			MinBlockLines: cfg.MinBlockLines,
			LiteralShapes: cfg.LiteralShapes,
			MaxUnits:      cfg.MaxUnits,
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log logrus.FieldLogger) Option {
	return func(a *Analyzer) {
		a.log = log
	}
}

// WithContentSource sets where Analyze reads files from.
func WithContentSource(src source.ContentSource) Option {
	return func(a *Analyzer) {
		a.src = src
	}
}

// WithWorkers bounds the number of files analyzed at once.
func WithWorkers(n int) Option {
	return func(a *Analyzer) {
		a.maxWorkers = n
	}
}

// WithProgress registers a callback invoked after each file.
func WithProgress(fn fileproc.ProgressFunc) Option {
	return func(a *Analyzer) {
		a.onProgress = fn
	}
}

// New creates a new duplicate analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		cfg: DefaultConfig(),
		src: source.NewFilesystem(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = logging.Discard()
	}
	if a.cfg.NGramSize <= 0 {
		a.cfg.NGramSize = DefaultNGramSize
	}
	if a.cfg.MinBlockLines <= 0 {
		a.cfg.MinBlockLines = 2
	}
	return a
}

// Config returns the effective configuration.
func (a *Analyzer) Config() Config {
	return a.cfg
}

// AnalyzeSource detects duplicate blocks in one file's text.
func (a *Analyzer) AnalyzeSource(path string, src []byte) (*Analysis, error) {
	psr := parser.New()
	defer psr.Close()
	return a.analyze(psr, path, src)
}

func (a *Analyzer) analyze(psr *parser.Parser, path string, src []byte) (*Analysis, error) {
	log := a.log.WithField("file", path)

	blocks := Segmenter{MinLines: a.cfg.MinBlockLines}.Blocks(string(src))
	cmp, err := Compare(BlockUnits(blocks), a.cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for _, d := range cmp.Dropped {
		log.WithFields(logrus.Fields{"line": d.Line, "reason": d.Reason}).Warn("block excluded from comparison")
	}
	for _, p := range cmp.Pairs {
		log.WithFields(logrus.Fields{
			"line_a":     p.Block1.LineNumber,
			"line_b":     p.Block2.LineNumber,
			"similarity": p.Similarity,
		}).Debug("duplicate pair")
	}

	var exact []ExactDuplicate
	result, err := psr.Parse(src, path)
	if err != nil {
		log.WithError(err).Warn("skipping same-name function check")
	} else {
		exact = ExactDuplicates(ExtractFunctions(result), src)
		result.Close()
		for _, e := range exact {
			log.WithFields(logrus.Fields{"function": e.Name, "lines": e.Lines}).Info("function redefined with identical body")
		}
	}

	analysis := BuildAnalysis(path, string(src), len(blocks), cmp, exact, a.cfg)
	log.WithFields(logrus.Fields{
		"blocks": analysis.Summary.TotalBlocks,
		"pairs":  analysis.Summary.TotalPairs,
	}).Info("duplicate analysis complete")
	return analysis, nil
}

// Analyze detects duplicates in each file independently. Files are processed
// concurrently; results keep the input order. Files that cannot be read or
// exceed the unit cap are reported in Errors.
func (a *Analyzer) Analyze(ctx context.Context, files []string) (*ProjectAnalysis, error) {
	results, errs := fileproc.MapFilesN(ctx, files, a.maxWorkers, func(psr *parser.Parser, path string) (*Analysis, error) {
		content, err := a.src.Read(path)
		if err != nil {
			return nil, err
		}
		return a.analyze(psr, path, content)
	}, a.onProgress)

	project := &ProjectAnalysis{Files: make([]*Analysis, 0, len(results))}
	for _, fa := range results {
		project.Files = append(project.Files, fa)
		project.Summary.Add(fa)
	}

	if errs != nil {
		index := make(map[string]int, len(files))
		for i, f := range files {
			index[f] = i
		}
		for _, e := range errs.Errors {
			a.log.WithError(e.Err).WithField("file", e.Path).Warn("file skipped")
			project.Errors = append(project.Errors, FileError{File: e.Path, Error: e.Err.Error()})
		}
		sort.SliceStable(project.Errors, func(i, j int) bool {
			return index[project.Errors[i].File] < index[project.Errors[j].File]
		})
	}
	if err := ctx.Err(); err != nil {
		return project, err
	}
	return project, nil
}

// Close releases analyzer resources.
func (a *Analyzer) Close() {}
