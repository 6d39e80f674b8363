// Package branding provides compile-time identity values for the CLI.
//
// The values live in branding.yaml next to this file and are baked into the
// binary with //go:embed, so forks can rename the tool without touching code.
package branding

import (
	_ "embed"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"
)

//go:embed branding.yaml
var rawBranding []byte

var (
	once     sync.Once
	defaults brand
)

type brand struct {
	CLIName     string `yaml:"cli_name"`
	DisplayName string `yaml:"display_name"`
	Description string `yaml:"description"`
	DataDir     string `yaml:"data_dir"`
	EnvPrefix   string `yaml:"env_prefix"`
	GitHubRepo  string `yaml:"github_repo"`
	RegistryURL string `yaml:"registry_url"`
}

func load() {
	once.Do(func() {
		// Set hard defaults in case the embedded file is missing/empty.
		defaults = brand{
			CLIName:     "cargox",
			DisplayName: "cargox",
			Description: "Run crates.io binaries at a pinned version",
			DataDir:     "cargox",
			EnvPrefix:   "CARGOX",
			GitHubRepo:  "cargox-labs/cargox",
			RegistryURL: "https://crates.io",
		}
		// Overlay with embedded YAML values.
		_ = yaml.Unmarshal(rawBranding, &defaults)
	})
}

// CLIName returns the root command name (e.g., "cargox").
func CLIName() string { load(); return defaults.CLIName }

// DisplayName returns the human-readable product name.
func DisplayName() string { load(); return defaults.DisplayName }

// Description returns the short product description.
func Description() string { load(); return defaults.Description }

// DataDir returns the directory name used under the platform data and config
// directories (e.g., "cargox" in ~/.local/share/cargox).
func DataDir() string { load(); return defaults.DataDir }

// EnvPrefix returns the environment variable prefix (e.g., "CARGOX").
func EnvPrefix() string { load(); return defaults.EnvPrefix }

// GitHubRepo returns the "owner/repo" string (e.g., "cargox-labs/cargox").
func GitHubRepo() string { load(); return defaults.GitHubRepo }

// RegistryURL returns the default package registry base URL.
func RegistryURL() string { load(); return defaults.RegistryURL }

// UserAgent returns the User-Agent sent to the registry for the given build version.
func UserAgent(version string) string {
	load()
	return defaults.CLIName + "/" + version + " (https://github.com/" + defaults.GitHubRepo + ")"
}

// EnvVar returns a fully qualified env var name, e.g., EnvVar("install_dir") → "CARGOX_INSTALL_DIR".
func EnvVar(suffix string) string {
	load()
	return defaults.EnvPrefix + "_" + strings.ToUpper(suffix)
}
