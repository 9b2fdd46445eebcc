package mcpserver

import "encoding/json"

const (
	manifestSchema = "https://static.modelcontextprotocol.io/schemas/2025-10-17/server.schema.json"
	repositoryURL  = "https://github.com/panbanda/clonefix"
	imageName      = "ghcr.io/panbanda/clonefix"
)

// Manifest is the registry entry (server.json) for the clonefix server.
type Manifest struct {
	Schema      string      `json:"$schema"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Version     string      `json:"version"`
	Repository  *Repository `json:"repository,omitempty"`
	Packages    []Package   `json:"packages,omitempty"`
}

type Repository struct {
	URL    string `json:"url"`
	Source string `json:"source"`
}

// Package is one way to launch the server.
type Package struct {
	RegistryType         string        `json:"registryType"`
	Identifier           string        `json:"identifier"`
	PackageArguments     []Argument    `json:"packageArguments,omitempty"`
	EnvironmentVariables []EnvVariable `json:"environmentVariables,omitempty"`
	Transport            Transport     `json:"transport"`
}

type Argument struct {
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
}

// EnvVariable is a setting the server reads from its environment.
type EnvVariable struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsRequired  bool   `json:"isRequired"`
}

type Transport struct {
	Type string `json:"type"`
}

// serverEnv lists the variables the CLI honors before starting the server.
var serverEnv = []EnvVariable{
	{Name: "CLONEFIX_CONFIG", Description: "Path to a clonefix.toml, .yaml or .json config file"},
	{Name: "CLONEFIX_LOG_LEVEL", Description: "trace, debug, info, warn or error; logs go to stderr"},
}

// GenerateManifest returns the indented server.json for version. Both the
// OCI image and the Go binary are listed.
func GenerateManifest(version string) ([]byte, error) {
	if version == "" || version == "dev" {
		version = "0.0.0"
	}

	stdio := Transport{Type: "stdio"}
	mcpArg := []Argument{{Type: "positional", Value: "mcp"}}
	return json.MarshalIndent(Manifest{
		Schema:      manifestSchema,
		Name:        "io.github.panbanda/clonefix",
		Description: "Python clone detection, duplicate-function refactoring and smell scans",
		Version:     version,
		Repository:  &Repository{URL: repositoryURL, Source: "github"},
		Packages: []Package{
			{
				RegistryType:         "oci",
				Identifier:           imageName + ":" + version,
				PackageArguments:     mcpArg,
				EnvironmentVariables: serverEnv,
				Transport:            stdio,
			},
			{
				RegistryType:         "go",
				Identifier:           "github.com/panbanda/clonefix/cmd/clonefix@v" + version,
				PackageArguments:     mcpArg,
				EnvironmentVariables: serverEnv,
				Transport:            stdio,
			},
		},
	}, "", "  ")
}
