// Package config loads client and session settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/adamwoolhether/zapflux/client"
)

// File is the on-disk configuration.
type File struct {
	Client client.Config `yaml:"client"`
	Auth   Auth          `yaml:"auth"`
}

// Auth holds the credentials used to build a session.
type Auth struct {
	AccessToken  string  `yaml:"access_token"`
	RefreshToken string  `yaml:"refresh_token"`
	Header       string  `yaml:"header"`
	Prefix       *string `yaml:"prefix"`
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads the configuration at path. Fields left out of the file keep
// the values of client.DefaultConfig. Environment variables in the format
// ${VAR_NAME} are expanded before parsing; unset variables expand to "".
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes and validates raw YAML configuration.
func Parse(data []byte) (*File, error) {
	expanded := expandEnvVars(string(data))

	cfg := File{Client: client.DefaultConfig()}
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the client configuration and the auth section.
func (f *File) Validate() error {
	if err := f.Client.Validate(); err != nil {
		return err
	}

	if f.Auth.RefreshToken != "" && f.Auth.AccessToken == "" {
		return errors.New("auth.access_token is required when auth.refresh_token is set")
	}

	return nil
}

func expandEnvVars(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envPattern.FindStringSubmatch(match)[1])
	})
}
