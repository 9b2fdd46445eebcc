package main

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/pelletier/go-toml"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/panbanda/clonefix/pkg/config"
)

func configCmd() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Subcommands: []*cli.Command{
			{
				Name:      "show",
				Usage:     "Show the effective configuration",
				ArgsUsage: " ",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "as",
						Value: "toml",
						Usage: "Encoding: toml, yaml, json",
					},
				},
				Action: runConfigShow,
			},
			{
				Name:      "validate",
				Usage:     "Validate a configuration file",
				ArgsUsage: "[file]",
				Description: `Without an argument the file picked up by --config or the default search
is validated.`,
				Action: runConfigValidate,
			},
		},
	}
}

func runConfigShow(c *cli.Context) error {
	st := stateOf(c)

	var (
		content []byte
		err     error
	)
	switch c.String("as") {
	case "toml":
		content, err = toml.Marshal(st.cfg)
	case "yaml", "yml":
		content, err = yaml.Marshal(st.cfg)
	case "json":
		content, err = json.MarshalIndent(st.cfg, "", "  ")
		content = append(content, '\n')
	default:
		return fmt.Errorf("unknown encoding %q", c.String("as"))
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	comment := "#"
	if c.String("as") == "json" {
		comment = "//"
	}
	if st.cfgSource != "" {
		fmt.Fprintf(c.App.Writer, "%s Configuration from: %s\n\n", comment, st.cfgSource)
	} else {
		fmt.Fprintf(c.App.Writer, "%s Default configuration (no config file found)\n\n", comment)
	}
	_, err = c.App.Writer.Write(content)
	return err
}

func runConfigValidate(c *cli.Context) error {
	source := stateOf(c).cfgSource
	if c.Args().Len() > 0 {
		path := c.Args().First()
		if _, err := config.LoadConfig(config.WithPath(path)); err != nil {
			fmt.Fprintln(c.App.ErrWriter, color.RedString("Configuration validation failed:"))
			fmt.Fprintf(c.App.ErrWriter, "  - %s\n", err)
			return err
		}
		source = path
	}

	if source != "" {
		fmt.Fprintln(c.App.Writer, color.GreenString("Configuration valid: %s", source))
	} else {
		fmt.Fprintln(c.App.Writer, color.YellowString("No config file found. Default configuration is valid."))
	}
	return nil
}
