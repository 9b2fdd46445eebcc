package main

import (
	"github.com/urfave/cli/v2"

	"github.com/panbanda/clonefix/internal/mcpserver"
)

func mcpCmd() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Start MCP (Model Context Protocol) server for LLM tool integration",
		Description: `Starts an MCP server over stdio transport that exposes clonefix to LLM
clients. Source files are never modified by the server.

To use with Claude Desktop, add to your config:
  {
    "mcpServers": {
      "clonefix": {
        "command": "clonefix",
        "args": ["mcp"]
      }
    }
  }

Available tools:
  - detect_duplicates     Near-duplicate blocks within each file
  - refactor_duplicates   Rewritten source with shared helpers
  - find_smells           Long methods and long parameter lists`,
		Action: runMCPCmd,
		Subcommands: []*cli.Command{
			{
				Name:  "manifest",
				Usage: "Print the MCP registry manifest",
				Action: func(c *cli.Context) error {
					data, err := mcpserver.GenerateManifest(version)
					if err != nil {
						return err
					}
					_, err = c.App.Writer.Write(append(data, '\n'))
					return err
				},
			},
		},
	}
}

func runMCPCmd(c *cli.Context) error {
	st := stateOf(c)
	return mcpserver.NewServer(version, st.cfg, st.log).Run(c.Context)
}
