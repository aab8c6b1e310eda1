// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tombee/audionote/internal/commands/shared"
	"github.com/tombee/audionote/internal/config"
	"gopkg.in/yaml.v3"
)

// NewConfigCommand creates the config command with subcommands
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and manage configuration",
		Long: `View and manage the audionote configuration.

Subcommands:
  show     - Display the effective configuration
  path     - Show config file location
  set      - Change one setting in the config file
  validate - Check the configuration`,
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigPathCommand())
	cmd.AddCommand(newConfigSetCommand())
	cmd.AddCommand(NewValidateCommand())

	// If no subcommand provided, default to 'show'
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runConfigShow(cmd, args)
	}

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the effective configuration: defaults, then the config file,
then environment variables.

Secrets are masked. Use --json for machine-readable output.`,
		Args: cobra.NoArgs,
		RunE: runConfigShow,
	}
}

func newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show config file location",
		Args:  cobra.NoArgs,
		RunE:  runConfigPath,
	}
}

// setters maps each settable key to a function applying a string value.
var setters = map[string]func(cfg *config.Config, value string) error{
	"api_base_url": func(cfg *config.Config, value string) error {
		cfg.APIBaseURL = value
		return nil
	},
	"timeout": func(cfg *config.Config, value string) error {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("timeout must be a duration like 240s: %w", err)
		}
		cfg.Timeout = d
		return nil
	},
	"user_agent": func(cfg *config.Config, value string) error {
		cfg.UserAgent = value
		return nil
	},
	"credentials.backend": func(cfg *config.Config, value string) error {
		cfg.Credentials.Backend = value
		return nil
	},
	"upload.strategy": func(cfg *config.Config, value string) error {
		cfg.Upload.Strategy = value
		return nil
	},
	"upload.origin": func(cfg *config.Config, value string) error {
		cfg.Upload.Origin = value
		return nil
	},
	"log.level": func(cfg *config.Config, value string) error {
		cfg.Log.Level = value
		return nil
	},
	"tracing.exporter": func(cfg *config.Config, value string) error {
		cfg.Tracing.Exporter = value
		return nil
	},
}

func settableKeys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting in the config file",
		Long: fmt.Sprintf(`Change one setting in the config file. The file is locked while it is
rewritten and the result must validate.

Keys: %s`, strings.Join(settableKeys(), ", ")),
		Example: `  # Point the client at a remote backend
  audionote config set api_base_url https://notes.example.com

  # Upload through the backend instead of directly to storage
  audionote config set upload.strategy proxy`,
		Args: cobra.ExactArgs(2),
		RunE: runConfigSet,
	}
}

func configPath() (string, error) {
	if p := shared.GetConfigPath(); p != "" {
		return p, nil
	}
	p, err := config.ConfigPath()
	if err != nil {
		return "", fmt.Errorf("failed to determine config path: %w", err)
	}
	return p, nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := shared.LoadConfig(cmd)
	if err != nil {
		return err
	}
	path, err := configPath()
	if err != nil {
		return err
	}

	masked := maskSensitiveConfig(cfg)

	if shared.GetJSON() {
		doc, err := yamlDocument(masked)
		if err != nil {
			return err
		}
		return shared.EmitJSON(cmd.OutOrStdout(), "config show", doc)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", shared.Header.Render("Configuration:"), path)
	fmt.Fprintln(out, strings.Repeat("=", 50))
	fmt.Fprintln(out)

	encoder := yaml.NewEncoder(out)
	encoder.SetIndent(2)
	if err := encoder.Encode(masked); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return encoder.Close()
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]
	set, ok := setters[key]
	if !ok {
		return shared.NewInvalidInputError(
			fmt.Sprintf("unknown key %q (want one of %s)", key, strings.Join(settableKeys(), ", ")), nil)
	}

	file, err := config.NewFile(shared.GetConfigPath())
	if err != nil {
		return shared.NewConfigError("failed to open config file", err)
	}

	err = file.Update(func(cfg *config.Config) error {
		return set(cfg, value)
	})
	if err != nil {
		return shared.NewInvalidInputError(fmt.Sprintf("failed to set %s", key), err)
	}

	if shared.GetJSON() {
		return shared.EmitJSON(cmd.OutOrStdout(), "config set", map[string]string{
			"key":   key,
			"value": value,
			"path":  file.Path(),
		})
	}
	if !shared.GetQuiet() {
		fmt.Fprintln(cmd.OutOrStdout(), shared.RenderOK(fmt.Sprintf("%s set in %s", key, file.Path())))
	}
	return nil
}

// yamlDocument converts cfg to a generic map keyed by its YAML field names,
// so JSON output uses the same keys as the config file.
func yamlDocument(cfg *config.Config) (map[string]any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return doc, nil
}

// maskSensitiveConfig creates a copy of config with secrets masked
func maskSensitiveConfig(cfg *config.Config) *config.Config {
	masked := *cfg
	if masked.DevServer.Password != "" {
		masked.DevServer.Password = shared.MaskSecret(masked.DevServer.Password)
	}
	if masked.DevServer.Storage.SecretKey != "" {
		masked.DevServer.Storage.SecretKey = shared.MaskSecret(masked.DevServer.Storage.SecretKey)
	}
	if masked.DevServer.Storage.AccessKey != "" {
		masked.DevServer.Storage.AccessKey = shared.MaskSecret(masked.DevServer.Storage.AccessKey)
	}
	return &masked
}
