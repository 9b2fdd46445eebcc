package mcpserver

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"gopkg.in/yaml.v3"
)

//go:embed prompts/*.md
var promptFiles embed.FS

// promptArgument is one {{name}} placeholder a prompt body may contain.
type promptArgument struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
}

// promptTemplate is an embedded prompt file split into its parts.
type promptTemplate struct {
	Name        string           `yaml:"-"`
	Description string           `yaml:"description"`
	Arguments   []promptArgument `yaml:"arguments"`
	Body        string           `yaml:"-"`
}

// loadPrompts reads every markdown prompt under dir, sorted by name.
func loadPrompts(fsys fs.FS, dir string) ([]*promptTemplate, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	var prompts []*promptTemplate
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".md" {
			continue
		}
		content, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		p, err := parsePrompt(content)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		p.Name = strings.TrimSuffix(entry.Name(), ".md")
		prompts = append(prompts, p)
	}
	return prompts, nil
}

// parsePrompt splits optional YAML frontmatter from the body. A file
// without frontmatter is all body.
func parsePrompt(content []byte) (*promptTemplate, error) {
	p := &promptTemplate{}
	rest, ok := bytes.CutPrefix(content, []byte("---\n"))
	if !ok {
		p.Body = string(content)
		return p, nil
	}
	header, body, ok := bytes.Cut(rest, []byte("\n---\n"))
	if !ok {
		p.Body = string(content)
		return p, nil
	}
	if err := yaml.Unmarshal(header, p); err != nil {
		return nil, fmt.Errorf("frontmatter: %w", err)
	}
	p.Body = strings.TrimPrefix(string(body), "\n")
	return p, nil
}

// render substitutes {{name}} placeholders. Missing optional arguments
// become empty strings.
func (p *promptTemplate) render(args map[string]string) (string, error) {
	pairs := make([]string, 0, 2*len(p.Arguments))
	for _, a := range p.Arguments {
		v := strings.TrimSpace(args[a.Name])
		if v == "" && a.Required {
			return "", fmt.Errorf("prompt %s: argument %q is required", p.Name, a.Name)
		}
		pairs = append(pairs, "{{"+a.Name+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(p.Body), nil
}

func (p *promptTemplate) prompt() *mcp.Prompt {
	out := &mcp.Prompt{Name: p.Name, Description: p.Description}
	for _, a := range p.Arguments {
		out.Arguments = append(out.Arguments, &mcp.PromptArgument{
			Name:        a.Name,
			Description: a.Description,
			Required:    a.Required,
		})
	}
	return out
}

func (p *promptTemplate) handler() mcp.PromptHandler {
	return func(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		var args map[string]string
		if req != nil && req.Params != nil {
			args = req.Params.Arguments
		}
		text, err := p.render(args)
		if err != nil {
			return nil, err
		}
		return &mcp.GetPromptResult{
			Description: p.Description,
			Messages: []*mcp.PromptMessage{
				{Role: "user", Content: &mcp.TextContent{Text: text}},
			},
		}, nil
	}
}

// registerPrompts adds the embedded prompts. A malformed prompt is logged
// and left out.
func (s *Server) registerPrompts() {
	prompts, err := loadPrompts(promptFiles, "prompts")
	if err != nil {
		s.log.WithError(err).Warn("prompts not registered")
		return
	}
	for _, p := range prompts {
		s.server.AddPrompt(p.prompt(), p.handler())
	}
}
