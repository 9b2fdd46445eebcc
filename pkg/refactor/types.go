package refactor

import (
	"errors"

	"github.com/panbanda/clonefix/pkg/analyzer/duplicates"
)

// Mode selects how group members are rewritten.
type Mode string

const (
	// ModeWrapper keeps every member and reduces its body to one call to
	// the helper. Signatures and call sites stay valid.
	ModeWrapper Mode = "wrapper"
	// ModeCollapse keeps only the representative and points every call of a
	// removed member at it.
	ModeCollapse Mode = "collapse"
)

// Helper name prefixes.
const (
	HelperPrefix    = "_common_logic_"
	ExtractedPrefix = "_extracted_block_"
)

// NoDuplicates is the Result message when nothing qualified for a rewrite.
const NoDuplicates = "no duplicates"

var (
	// ErrInconsistentGroup means a group names a function the current
	// source no longer defines.
	ErrInconsistentGroup = errors.New("inconsistent refactor group")
	// ErrSyntax means the input does not parse.
	ErrSyntax = errors.New("source has syntax errors")
	// ErrRenderInvalid means the rewritten text failed to re-parse.
	ErrRenderInvalid = errors.New("rewritten source does not parse")
	// ErrInvalidMode is returned for a mode other than wrapper or collapse.
	ErrInvalidMode = errors.New("invalid refactor mode")
)

// Member is one function of a group.
type Member struct {
	Name string `json:"name"`
	Line int    `json:"line"`
}

// Group is a set of module functions that are duplicates of each other,
// directly or transitively. Members are in discovery order and the first
// one is the representative whose body becomes the helper.
type Group struct {
	Helper     string   `json:"helper"`
	Members    []Member `json:"members"`
	Similarity float64  `json:"similarity"` // lowest qualifying pair score
}

// Representative returns the member whose body is kept.
func (g Group) Representative() Member {
	return g.Members[0]
}

// Helper is a generated function inserted into the module.
type Helper struct {
	Name   string   `json:"name"`
	Params []string `json:"params"`
	Text   string   `json:"text"`
	From   string   `json:"from"` // representative function or block location
}

// Edit replaces Source[Start:End] with NewText.
type Edit struct {
	Start       int    `json:"start"`
	End         int    `json:"end"`
	OldText     string `json:"old_text"`
	NewText     string `json:"new_text"`
	Description string `json:"description"`
}

// Result is the outcome of a rewrite. On error Source is the input, unchanged.
type Result struct {
	Source  string   `json:"source"`
	Changed bool     `json:"changed"`
	Mode    Mode     `json:"mode,omitempty"`
	Groups  []Group  `json:"groups"`
	Helpers []Helper `json:"helpers"`
	Edits   []Edit   `json:"edits,omitempty"`
	Skipped []Skip   `json:"skipped,omitempty"`
	Message string   `json:"message,omitempty"`
}

// Skip records a candidate the rewrite left alone.
type Skip struct {
	What   string `json:"what"`
	Reason string `json:"reason"`
}

func unchanged(src []byte) *Result {
	return &Result{
		Source:  string(src),
		Groups:  []Group{},
		Helpers: []Helper{},
		Message: NoDuplicates,
	}
}

// FunctionScore is the similarity of two module functions.
type FunctionScore struct {
	A          string  `json:"a"`
	B          string  `json:"b"`
	Similarity float64 `json:"similarity"`
}

// DebugDump exposes every intermediate of function-level detection.
type DebugDump struct {
	Threshold    float64                             `json:"threshold"`
	Functions    []*duplicates.FunctionRecord        `json:"functions"`
	Shadowed     []*duplicates.FunctionRecord        `json:"shadowed,omitempty"`
	Tokens       map[string]duplicates.TokenSequence `json:"tokens"`
	Similarities []FunctionScore                     `json:"similarities"`
	Duplicates   []FunctionScore                     `json:"duplicates"`
	Groups       []Group                             `json:"groups"`
}
