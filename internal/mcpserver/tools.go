package mcpserver

import (
	"context"
	"os"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/panbanda/clonefix/internal/output"
	"github.com/panbanda/clonefix/internal/report"
	"github.com/panbanda/clonefix/internal/scanner"
	"github.com/panbanda/clonefix/pkg/analyzer/duplicates"
	"github.com/panbanda/clonefix/pkg/analyzer/smells"
	"github.com/panbanda/clonefix/pkg/refactor"
)

// AnalyzeInput is the base input for tools that scan paths.
type AnalyzeInput struct {
	Paths  []string `json:"paths,omitempty" jsonschema:"Files or directories to analyze. Defaults to the current directory."`
	Format string   `json:"format,omitempty" jsonschema:"Output format: toon (default), json, or markdown."`
}

// DetectInput adds duplicate detection options.
type DetectInput struct {
	AnalyzeInput
	Threshold float64 `json:"threshold,omitempty" jsonschema:"Similarity threshold (0.0-1.0). Default 0.76."`
	MinLines  int     `json:"min_lines,omitempty" jsonschema:"Minimum non-blank lines per block. Default 2."`
}

// RefactorInput selects one file to rewrite.
type RefactorInput struct {
	Path      string  `json:"path" jsonschema:"Python file to refactor."`
	Source    string  `json:"source,omitempty" jsonschema:"File contents to use instead of reading path."`
	Mode      string  `json:"mode,omitempty" jsonschema:"wrapper (default) keeps every function as a forwarder; collapse deletes all but the first."`
	Blocks    bool    `json:"blocks,omitempty" jsonschema:"Also extract duplicated statement blocks."`
	Threshold float64 `json:"threshold,omitempty" jsonschema:"Similarity threshold (0.0-1.0). Default 0.76."`
	Format    string  `json:"format,omitempty" jsonschema:"Output format: toon (default), json, or markdown."`
}

// SmellsInput adds smell thresholds.
type SmellsInput struct {
	AnalyzeInput
	LongMethodLines    int `json:"long_method_lines,omitempty" jsonschema:"Report functions longer than this many lines. Default 15."`
	LongParameterCount int `json:"long_parameter_count,omitempty" jsonschema:"Report functions with more parameters than this. Default 3."`
}

// RefactorOutput is what refactor_duplicates returns.
type RefactorOutput struct {
	File      string           `json:"file"`
	Changed   bool             `json:"changed"`
	Source    string           `json:"source"`
	Functions *refactor.Result `json:"functions"`
	Blocks    *refactor.Result `json:"blocks,omitempty"`
}

func getPaths(input AnalyzeInput) []string {
	if len(input.Paths) == 0 {
		return []string{"."}
	}
	return input.Paths
}

func getFormat(format string) output.Format {
	switch format {
	case "json":
		return output.FormatJSON
	case "markdown", "md":
		return output.FormatMarkdown
	default:
		return output.FormatTOON
	}
}

func formatOutput(data any, format output.Format) (string, error) {
	if format == output.FormatJSON {
		var buf strings.Builder
		if err := output.New(output.FormatJSON, &buf, false).Output(data); err != nil {
			return "", err
		}
		return buf.String(), nil
	}
	out, err := output.EncodeTOON(data)
	if err != nil {
		return "", err
	}
	if format == output.FormatMarkdown {
		return "```\n" + out + "\n```", nil
	}
	return out, nil
}

func toolResult(data any, format output.Format) (*mcp.CallToolResult, any, error) {
	text, err := formatOutput(data, format)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, nil, nil
}

func toolError(msg string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + msg},
		},
		IsError: true,
	}, nil, nil
}

func (s *Server) scan(paths []string) ([]string, error) {
	return scanner.NewScanner(s.cfg).Scan(paths)
}

func (s *Server) handleDetect(ctx context.Context, req *mcp.CallToolRequest, input DetectInput) (*mcp.CallToolResult, any, error) {
	files, err := s.scan(getPaths(input.AnalyzeInput))
	if err != nil {
		return toolError(err.Error())
	}
	if len(files) == 0 {
		return toolError("no Python files found")
	}

	opts := []duplicates.Option{duplicates.WithConfig(s.cfg.Duplicates), duplicates.WithLogger(s.log)}
	if input.Threshold > 0 {
		opts = append(opts, duplicates.WithThreshold(input.Threshold))
	}
	if input.MinLines > 0 {
		opts = append(opts, duplicates.WithMinBlockLines(input.MinLines))
	}
	a := duplicates.New(opts...)
	defer a.Close()

	result, err := a.Analyze(ctx, files)
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(result, getFormat(input.Format))
}

func (s *Server) handleRefactor(ctx context.Context, req *mcp.CallToolRequest, input RefactorInput) (*mcp.CallToolResult, any, error) {
	if input.Path == "" && input.Source == "" {
		return toolError("path is required")
	}
	src := []byte(input.Source)
	if input.Source == "" {
		data, err := os.ReadFile(input.Path)
		if err != nil {
			return toolError(err.Error())
		}
		src = data
	}

	opts := []refactor.Option{refactor.WithConfig(s.cfg), refactor.WithLogger(s.log)}
	if input.Mode != "" {
		opts = append(opts, refactor.WithMode(refactor.Mode(input.Mode)))
	}
	if input.Threshold > 0 {
		opts = append(opts, refactor.WithThreshold(input.Threshold))
	}
	r := refactor.New(opts...)

	out := RefactorOutput{File: input.Path}
	fn, err := r.Refactor(src)
	if err != nil {
		return toolError(err.Error())
	}
	out.Functions = fn
	out.Source = fn.Source
	out.Changed = fn.Changed

	if input.Blocks {
		blocks, err := r.RefactorBlocks([]byte(fn.Source))
		if err != nil {
			return toolError(err.Error())
		}
		out.Blocks = blocks
		out.Source = blocks.Source
		out.Changed = out.Changed || blocks.Changed
	}
	return toolResult(out, getFormat(input.Format))
}

func (s *Server) handleSmells(ctx context.Context, req *mcp.CallToolRequest, input SmellsInput) (*mcp.CallToolResult, any, error) {
	paths := getPaths(input.AnalyzeInput)
	files, err := s.scan(paths)
	if err != nil {
		return toolError(err.Error())
	}
	if len(files) == 0 {
		return toolError("no Python files found")
	}

	thresholds := smells.Thresholds{
		LongMethodLines:    s.cfg.Smells.LongMethodLines,
		LongParameterCount: s.cfg.Smells.LongParameterCount,
	}
	if input.LongMethodLines > 0 {
		thresholds.LongMethodLines = input.LongMethodLines
	}
	if input.LongParameterCount > 0 {
		thresholds.LongParameterCount = input.LongParameterCount
	}

	dup := duplicates.New(duplicates.WithConfig(s.cfg.Duplicates), duplicates.WithLogger(s.log))
	defer dup.Close()
	dupResult, err := dup.Analyze(ctx, files)
	if err != nil {
		return toolError(err.Error())
	}
	sm := smells.New(smells.WithThresholds(thresholds), smells.WithLogger(s.log))
	defer sm.Close()
	smellResult, err := sm.Analyze(ctx, files)
	if err != nil {
		return toolError(err.Error())
	}

	r := report.Build(report.Metadata{Paths: paths}, dupResult, smellResult)
	return toolResult(r, getFormat(input.Format))
}
