package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cargox-labs/cargox/internal/branding"
)

const (
	fileName = "config"
	fileType = "yaml"
)

// Keys recognized in the config file.
const (
	KeyRegistryURL     = "registry_url"
	KeyBuildFromSource = "build_from_source"
	KeyQuiet           = "quiet"
	KeyLogLevel        = "log_level"
	KeyBinstallTool    = "binstall_tool"
	KeyCargoTool       = "cargo_tool"
)

// Settings is the resolved configuration.
type Settings struct {
	RegistryURL     string
	BuildFromSource bool
	Quiet           bool
	LogLevel        string
	BinstallTool    string
	CargoTool       string
}

// Defaults returns the settings used when nothing is configured.
func Defaults() Settings {
	return Settings{
		RegistryURL:  branding.RegistryURL(),
		LogLevel:     "info",
		BinstallTool: "cargo-binstall",
		CargoTool:    "cargo",
	}
}

// Dir returns the cargox config directory: %APPDATA% on Windows,
// ~/Library/Application Support on macOS, $XDG_CONFIG_HOME or ~/.config
// elsewhere.
func Dir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		base = filepath.Join(home, "Library", "Application Support")
	default:
		base = os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			base = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(base, branding.CLIName()), nil
}

// FilePath returns the default config file path.
func FilePath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName+"."+fileType), nil
}

// Loader reads settings with viper. Environment variables are not consulted.
type Loader struct {
	v *viper.Viper
}

// NewLoader returns a Loader with defaults registered.
func NewLoader() *Loader {
	v := viper.New()
	d := Defaults()
	v.SetDefault(KeyRegistryURL, d.RegistryURL)
	v.SetDefault(KeyBuildFromSource, d.BuildFromSource)
	v.SetDefault(KeyQuiet, d.Quiet)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyBinstallTool, d.BinstallTool)
	v.SetDefault(KeyCargoTool, d.CargoTool)
	return &Loader{v: v}
}

// BindFlags makes each named flag override the config key of the same
// meaning when the flag is set on the command line.
func (l *Loader) BindFlags(flags map[string]*pflag.Flag) error {
	for key, flag := range flags {
		if flag == nil {
			continue
		}
		if err := l.v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("binding flag --%s: %w", flag.Name, err)
		}
	}
	return nil
}

// Load reads path, or the default config file when path is empty. A missing
// default file is not an error; a missing explicit file is.
func (l *Loader) Load(path string) (Settings, error) {
	explicit := path != ""
	if !explicit {
		p, err := FilePath()
		if err != nil {
			return l.settings()
		}
		path = p
	}

	l.v.SetConfigFile(path)
	l.v.SetConfigType(fileType)
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.Is(err, fs.ErrNotExist) || errors.As(err, &notFound)
		if !missing || explicit {
			return Settings{}, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}
	return l.settings()
}

func (l *Loader) settings() (Settings, error) {
	s := Settings{
		RegistryURL:     strings.TrimRight(l.v.GetString(KeyRegistryURL), "/"),
		BuildFromSource: l.v.GetBool(KeyBuildFromSource),
		Quiet:           l.v.GetBool(KeyQuiet),
		LogLevel:        strings.ToLower(l.v.GetString(KeyLogLevel)),
		BinstallTool:    l.v.GetString(KeyBinstallTool),
		CargoTool:       l.v.GetString(KeyCargoTool),
	}
	switch s.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return Settings{}, fmt.Errorf("invalid %s %q: expected debug, info, warn or error", KeyLogLevel, s.LogLevel)
	}
	if s.RegistryURL == "" {
		return Settings{}, fmt.Errorf("%s must not be empty", KeyRegistryURL)
	}
	return s, nil
}
