// Package refactor rewrites Python modules so that duplicated functions
// share one extracted helper.
package refactor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/panbanda/clonefix/internal/logging"
	"github.com/panbanda/clonefix/pkg/analyzer/duplicates"
	"github.com/panbanda/clonefix/pkg/config"
	"github.com/panbanda/clonefix/pkg/parser"
)

// Refactorer extracts helpers from duplicated module functions. It holds
// only configuration, so one value may serve concurrent calls on different
// sources.
type Refactorer struct {
	mode          Mode
	threshold     float64
	ngram         int
	minLines      int
	literalShapes bool
	maxUnits      int
	log           logrus.FieldLogger
}

// Option is a functional option for configuring Refactorer.
type Option func(*Refactorer)

// WithConfig applies the duplicates and refactor sections of a loaded
// configuration.
func WithConfig(cfg *config.Config) Option {
	return func(r *Refactorer) {
		r.threshold = cfg.Duplicates.Threshold
		r.ngram = cfg.Duplicates.NGramSize
		r.literalShapes = cfg.Duplicates.LiteralShapes
		r.minLines = cfg.Duplicates.MinBlockLines
		r.maxUnits = cfg.Duplicates.MaxUnits
		if cfg.Refactor.Mode != "" {
			r.mode = Mode(cfg.Refactor.Mode)
		}
	}
}

// WithMode selects wrapper or collapse rewriting.
func WithMode(mode Mode) Option {
	return func(r *Refactorer) {
		r.mode = mode
	}
}

// WithThreshold sets the similarity at which two functions are grouped.
func WithThreshold(threshold float64) Option {
	return func(r *Refactorer) {
		r.threshold = threshold
	}
}

// WithNGramSize sets the n-gram window length.
func WithNGramSize(k int) Option {
	return func(r *Refactorer) {
		r.ngram = k
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Refactorer) {
		r.log = log
	}
}

// New creates a Refactorer in wrapper mode with the default threshold.
func New(opts ...Option) *Refactorer {
	r := &Refactorer{
		mode:      ModeWrapper,
		threshold: duplicates.DefaultThreshold,
		ngram:     duplicates.DefaultNGramSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logging.Discard()
	}
	if r.ngram <= 0 {
		r.ngram = duplicates.DefaultNGramSize
	}
	return r
}

// Mode returns the configured rewrite mode.
func (r *Refactorer) Mode() Mode {
	return r.mode
}

// parse returns the tree of src, or ErrSyntax when it has errors.
func parse(psr *parser.Parser, src []byte) (*parser.ParseResult, error) {
	res, err := psr.Parse(src, "")
	if err != nil {
		return nil, err
	}
	if res.HasErrors() {
		line := res.FirstError()
		res.Close()
		return nil, fmt.Errorf("%w: line %d", ErrSyntax, line)
	}
	return res, nil
}

func (r *Refactorer) checkMode() error {
	switch r.mode {
	case ModeWrapper, ModeCollapse:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidMode, r.mode)
}

// Plan returns the groups Refactor would rewrite, without rewriting. In
// collapse mode a group whose deleted members are referenced outside a call
// is still planned; Apply then skips it.
func (r *Refactorer) Plan(src []byte) ([]Group, error) {
	psr := parser.New()
	defer psr.Close()
	res, err := parse(psr, src)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	d := r.detect(duplicates.ExtractFunctions(res), src, r.threshold)
	return d.groups, nil
}

// Refactor finds groups of duplicated module functions and extracts one
// helper per group. When nothing qualifies the result is unchanged with
// Message set to NoDuplicates. On error the result carries the input.
func (r *Refactorer) Refactor(src []byte) (*Result, error) {
	if err := r.checkMode(); err != nil {
		return unchanged(src), err
	}

	psr := parser.New()
	defer psr.Close()
	res, err := parse(psr, src)
	if err != nil {
		return unchanged(src), err
	}
	defer res.Close()

	set := duplicates.ExtractFunctions(res)
	d := r.detect(set, src, r.threshold)
	for _, s := range d.scores {
		if duplicates.Classify(s.similarity, r.threshold) && !s.sameShape {
			d.skips = append(d.skips, Skip{
				What:   d.cands[s.i].rec().Name + ", " + d.cands[s.j].rec().Name,
				Reason: "parameter lists differ in shape",
			})
		}
	}
	if len(d.groups) == 0 {
		out := unchanged(src)
		out.Skipped = d.skips
		return out, nil
	}

	out, err := r.apply(psr, res, set, d.groups)
	if err != nil {
		return out, err
	}
	out.Skipped = append(d.skips, out.Skipped...)
	return out, nil
}

// Apply rewrites src for groups computed earlier, possibly against another
// revision of the source. Every member must still be defined; otherwise
// nothing is rewritten and ErrInconsistentGroup is returned.
func (r *Refactorer) Apply(src []byte, groups []Group) (*Result, error) {
	if err := r.checkMode(); err != nil {
		return unchanged(src), err
	}
	psr := parser.New()
	defer psr.Close()
	res, err := parse(psr, src)
	if err != nil {
		return unchanged(src), err
	}
	defer res.Close()

	if len(groups) == 0 {
		return unchanged(src), nil
	}
	return r.apply(psr, res, duplicates.ExtractFunctions(res), groups)
}

func (r *Refactorer) apply(psr *parser.Parser, res *parser.ParseResult, set *duplicates.FunctionSet, groups []Group) (*Result, error) {
	src := res.Source

	members := make([][]*duplicates.FunctionRecord, len(groups))
	seen := make(map[string]string)
	helperNames := make(map[string]bool, len(groups))
	for gi, g := range groups {
		if len(g.Members) < 2 {
			return unchanged(src), fmt.Errorf("%w: group %s has %d members", ErrInconsistentGroup, g.Helper, len(g.Members))
		}
		for mi, m := range g.Members {
			fn, ok := set.Lookup(m.Name)
			if !ok {
				role := "member"
				if mi == 0 {
					role = "representative"
				}
				return unchanged(src), fmt.Errorf("%w: %s %s is not defined", ErrInconsistentGroup, role, m.Name)
			}
			if other, dup := seen[m.Name]; dup {
				return unchanged(src), fmt.Errorf("%w: %s belongs to %s and %s", ErrInconsistentGroup, m.Name, other, g.Helper)
			}
			seen[m.Name] = g.Helper
			members[gi] = append(members[gi], fn.Record())
		}
		if _, taken := set.Lookup(g.Helper); taken {
			return unchanged(src), fmt.Errorf("%w: helper name %s is already defined", ErrInconsistentGroup, g.Helper)
		}
		if helperNames[g.Helper] {
			return unchanged(src), fmt.Errorf("%w: helper name %s is used by two groups", ErrInconsistentGroup, g.Helper)
		}
		helperNames[g.Helper] = true
	}

	var skips []Skip
	if r.mode == ModeCollapse {
		groups, members, skips = r.keepRetargetable(res.Root(), src, groups, members)
		if len(groups) == 0 {
			out := unchanged(src)
			out.Skipped = skips
			return out, nil
		}
	}
	renames := collapseRenames(r.mode, members)
	retargets := retargetEdits(res.Root(), src, renames)

	var edits []Edit
	var replaced [][2]int
	helpers := make([]Helper, 0, len(groups))
	for gi, g := range groups {
		rep := members[gi][0]
		helpers = append(helpers, Helper{
			Name:   g.Helper,
			Params: rep.Params,
			Text:   helperText(rep, g.Helper, src, retargets),
			From:   rep.Name,
		})
		edits = append(edits, insertionEdit(src, helperOffset(src, rep), []Helper{helpers[gi]}))

		for mi, m := range members[gi] {
			var e Edit
			if r.mode == ModeCollapse && mi > 0 {
				e = deletionEdit(m, src, rep.Name)
			} else {
				e = wrapperEdit(m, rep, g.Helper, src)
			}
			edits = append(edits, e)
			replaced = append(replaced, [2]int{e.Start, e.End})
		}
		r.log.WithFields(logrus.Fields{
			"helper":     g.Helper,
			"members":    len(g.Members),
			"similarity": g.Similarity,
		}).Info("extracting helper")
	}

	for _, e := range retargets {
		if !within(replaced, e) {
			edits = append(edits, e)
		}
	}

	text, err := applyEdits(src, edits)
	if err != nil {
		return unchanged(src), fmt.Errorf("%w: %w", ErrRenderInvalid, err)
	}
	if err := validate(psr, []byte(text)); err != nil {
		r.log.WithError(err).Error("rewrite aborted")
		return unchanged(src), err
	}

	sort.SliceStable(edits, func(i, j int) bool { return edits[i].Start < edits[j].Start })
	return &Result{
		Source:  text,
		Changed: text != string(src),
		Mode:    r.mode,
		Groups:  groups,
		Helpers: helpers,
		Edits:   edits,
		Skipped: skips,
	}, nil
}

// collapseRenames maps every member deleted by collapse to its
// representative. Wrapper mode deletes nothing.
func collapseRenames(mode Mode, members [][]*duplicates.FunctionRecord) map[string]string {
	renames := make(map[string]string)
	if mode != ModeCollapse {
		return renames
	}
	for _, group := range members {
		for _, m := range group[1:] {
			renames[m.Name] = group[0].Name
		}
	}
	return renames
}

// keepRetargetable drops the groups whose deleted members are referenced
// other than as a callee, since only calls are retargeted.
func (r *Refactorer) keepRetargetable(root *sitter.Node, src []byte, groups []Group, members [][]*duplicates.FunctionRecord) ([]Group, [][]*duplicates.FunctionRecord, []Skip) {
	var deleted [][2]int
	for _, group := range members {
		for _, m := range group[1:] {
			deleted = append(deleted, [2]int{m.Start, m.End})
		}
	}
	refs := references(root, src, collapseRenames(ModeCollapse, members), deleted)
	if len(refs) == 0 {
		return groups, members, nil
	}

	var (
		keptGroups  []Group
		keptMembers [][]*duplicates.FunctionRecord
		skips       []Skip
	)
	for gi, g := range groups {
		var referenced []string
		for _, m := range members[gi][1:] {
			if refs[m.Name] > 0 {
				referenced = append(referenced, m.Name)
			}
		}
		if len(referenced) == 0 {
			keptGroups = append(keptGroups, g)
			keptMembers = append(keptMembers, members[gi])
			continue
		}
		names := make([]string, len(g.Members))
		for i, m := range g.Members {
			names[i] = m.Name
		}
		reason := strings.Join(referenced, ", ") + " referenced outside a call"
		r.log.WithFields(logrus.Fields{"helper": g.Helper, "reason": reason}).Info("group not collapsed")
		skips = append(skips, Skip{What: strings.Join(names, ", "), Reason: reason})
	}
	return keptGroups, keptMembers, skips
}

// validate re-parses rewritten text.
func validate(psr *parser.Parser, text []byte) error {
	res, err := psr.Parse(text, "")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRenderInvalid, err)
	}
	defer res.Close()
	if res.HasErrors() {
		return fmt.Errorf("%w: line %d", ErrRenderInvalid, res.FirstError())
	}
	return nil
}
