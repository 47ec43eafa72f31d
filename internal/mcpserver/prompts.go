package mcpserver

import (
	"bytes"
	"context"
	"embed"
	"path"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"gopkg.in/yaml.v3"
)

//go:embed prompts/*.md
var promptFiles embed.FS

// promptFrontmatter is parsed from YAML frontmatter in prompt files.
type promptFrontmatter struct {
	Description string           `yaml:"description"`
	Arguments   []promptArgument `yaml:"arguments"`
}

type promptArgument struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
}

// registerPrompts discovers and registers all prompts from embedded markdown files.
func (s *Server) registerPrompts() {
	entries, err := promptFiles.ReadDir("prompts")
	if err != nil {
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}

		content, err := promptFiles.ReadFile(path.Join("prompts", entry.Name()))
		if err != nil {
			continue
		}

		fm, body := parseFrontmatter(content)
		prompt := &mcp.Prompt{
			Name:        strings.TrimSuffix(entry.Name(), ".md"),
			Description: fm.Description,
		}
		for _, a := range fm.Arguments {
			prompt.Arguments = append(prompt.Arguments, &mcp.PromptArgument{
				Name:        a.Name,
				Description: a.Description,
				Required:    a.Required,
			})
		}
		s.server.AddPrompt(prompt, makePromptHandler(fm, body))
	}
}

// parseFrontmatter extracts YAML frontmatter and returns it with the body.
func parseFrontmatter(content []byte) (promptFrontmatter, string) {
	var fm promptFrontmatter
	if !bytes.HasPrefix(content, []byte("---\n")) {
		return fm, string(content)
	}

	rest := content[4:]
	end := bytes.Index(rest, []byte("\n---\n"))
	if end == -1 {
		return fm, string(content)
	}

	if err := yaml.Unmarshal(rest[:end], &fm); err != nil {
		return promptFrontmatter{}, string(content)
	}

	return fm, strings.TrimPrefix(string(rest[end+5:]), "\n")
}

// substituteArgs replaces {{name}} placeholders with argument values.
// Placeholders without a value are left empty.
func substituteArgs(body string, args map[string]string, known []promptArgument) string {
	for _, a := range known {
		body = strings.ReplaceAll(body, "{{"+a.Name+"}}", args[a.Name])
	}
	return body
}

func makePromptHandler(fm promptFrontmatter, body string) mcp.PromptHandler {
	return func(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		var args map[string]string
		if req != nil && req.Params != nil {
			args = req.Params.Arguments
		}
		return &mcp.GetPromptResult{
			Description: fm.Description,
			Messages: []*mcp.PromptMessage{
				{
					Role:    "user",
					Content: &mcp.TextContent{Text: substituteArgs(body, args, fm.Arguments)},
				},
			},
		}, nil
	}
}
