// Package smells reports Python functions that are too long or take too
// many parameters.
package smells

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

// Analyzer detects long methods and long parameter lists.
// This analyzer is safe for concurrent use.
type Analyzer struct {
	thresholds Thresholds
	log        logrus.FieldLogger
	src        source.ContentSource
	maxWorkers int
	onProgress fileproc.ProgressFunc
}

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithThresholds sets custom detection thresholds.
func WithThresholds(thresholds Thresholds) Option {
	return func(a *Analyzer) {
		a.thresholds = thresholds
	}
}

// WithConfig applies the smells section of a loaded configuration.
func WithConfig(cfg config.SmellConfig) Option {
	return func(a *Analyzer) {
		a.thresholds = Thresholds{
			LongMethodLines:    cfg.LongMethodLines,
			LongParameterCount: cfg.LongParameterCount,
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

// New creates a new smell analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		thresholds: DefaultThresholds(),
		src:        source.NewFilesystem(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = logging.Discard()
	}
	if a.thresholds.LongMethodLines <= 0 {
		a.thresholds.LongMethodLines = DefaultThresholds().LongMethodLines
	}
	if a.thresholds.LongParameterCount < 0 {
		a.thresholds.LongParameterCount = DefaultThresholds().LongParameterCount
	}
	return a
}

// Thresholds returns the effective limits.
func (a *Analyzer) Thresholds() Thresholds {
	return a.thresholds
}

// LongMethods returns every function, nested ones included, whose
// definition spans more than limit lines. Decorators are not counted.
func LongMethods(functions []parser.FunctionNode, limit int) []Smell {
	var out []Smell
	for _, fn := range functions {
		n := fn.LineCount()
		if n <= limit {
			continue
		}
		out = append(out, Smell{
			Type:        TypeLongMethod,
			Severity:    severityOf(n, limit),
			Function:    fn.Name,
			StartLine:   int(fn.StartLine),
			EndLine:     int(fn.EndLine),
			Value:       n,
			Threshold:   limit,
			Description: fmt.Sprintf("%s is %d lines long (limit %d)", fn.Name, n, limit),
		})
	}
	return out
}

// ParameterCount counts declared parameters. self, cls and splats count;
// the bare * and / separators do not.
func ParameterCount(params []string) int {
	n := 0
	for _, p := range params {
		if p == "*" || p == "/" || p == "" {
			continue
		}
		n++
	}
	return n
}

// LongParameterLists returns every function declaring more than limit
// parameters.
func LongParameterLists(functions []parser.FunctionNode, limit int) []Smell {
	var out []Smell
	for _, fn := range functions {
		n := ParameterCount(fn.Parameters)
		if n <= limit {
			continue
		}
		out = append(out, Smell{
			Type:        TypeLongParameterList,
			Severity:    severityOf(n, limit),
			Function:    fn.Name,
			StartLine:   int(fn.StartLine),
			EndLine:     int(fn.EndLine),
			Value:       n,
			Threshold:   limit,
			Description: fmt.Sprintf("%s takes %d parameters (limit %d)", fn.Name, n, limit),
		})
	}
	return out
}

// AnalyzeSource scans one file's text.
func (a *Analyzer) AnalyzeSource(path string, src []byte) (*Analysis, error) {
	psr := parser.New()
	defer psr.Close()
	return a.analyze(psr, path, src)
}

func (a *Analyzer) analyze(psr *parser.Parser, path string, src []byte) (*Analysis, error) {
	result, err := psr.Parse(src, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	defer result.Close()
	log := a.log.WithField("file", path)
	if result.HasErrors() {
		log.WithField("line", result.FirstError()).Warn("syntax errors present, results may be partial")
	}

	functions := parser.GetFunctions(result)
	smells := append(
		LongMethods(functions, a.thresholds.LongMethodLines),
		LongParameterLists(functions, a.thresholds.LongParameterCount)...,
	)
	sort.SliceStable(smells, func(i, j int) bool {
		return smells[i].StartLine < smells[j].StartLine
	})
	if smells == nil {
		smells = []Smell{}
	}
	for _, s := range smells {
		log.WithFields(logrus.Fields{
			"type":     s.Type,
			"function": s.Function,
			"value":    s.Value,
		}).Debug("smell")
	}
	return &Analysis{File: path, Smells: smells}, nil
}

// Analyze scans each file concurrently; results keep the input order.
func (a *Analyzer) Analyze(ctx context.Context, files []string) (*ProjectAnalysis, error) {
	results, errs := fileproc.MapFilesN(ctx, files, a.maxWorkers, func(psr *parser.Parser, path string) (*Analysis, error) {
		content, err := a.src.Read(path)
		if err != nil {
			return nil, err
		}
		return a.analyze(psr, path, content)
	}, a.onProgress)

	project := &ProjectAnalysis{
		Files:      make([]*Analysis, 0, len(results)),
		Thresholds: a.thresholds,
	}
	for _, fa := range results {
		project.Files = append(project.Files, fa)
		project.Summary.Add(fa)
	}
	if errs != nil {
		for _, e := range errs.Errors {
			a.log.WithError(e.Err).WithField("file", e.Path).Warn("file skipped")
			project.Errors = append(project.Errors, FileError{File: e.Path, Error: e.Err.Error()})
		}
		sort.SliceStable(project.Errors, func(i, j int) bool {
			return project.Errors[i].File < project.Errors[j].File
		})
	}
	if err := ctx.Err(); err != nil {
		return project, err
	}
	return project, nil
}

// Close releases analyzer resources.
func (a *Analyzer) Close() {}
