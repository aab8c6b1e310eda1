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

	"github.com/spf13/cobra"
	"github.com/tombee/audionote/internal/commands/shared"
	"github.com/tombee/audionote/internal/config"
)

// ValidationResult represents the result of config validation.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Path     string   `json:"path"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// NewValidateCommand creates the 'config validate' subcommand.
func NewValidateCommand() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		Long: `Load the configuration file and environment and report problems.

Warnings cover settings that were corrected on load, such as a base URL on
the legacy port. With --strict, warnings are treated as errors.`,
		Example: `  # Validate configuration
  audionote config validate

  # Validate with warnings as errors
  audionote config validate --strict --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, strict)
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Treat warnings as errors")

	return cmd
}

func runValidate(cmd *cobra.Command, strict bool) error {
	path, err := configPath()
	if err != nil {
		return err
	}

	result := ValidationResult{Valid: true, Path: path}
	_, warnings, err := config.Load(shared.GetConfigPath())
	result.Warnings = warnings
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
	}
	if strict && len(warnings) > 0 {
		result.Valid = false
	}

	if shared.GetJSON() {
		if err := shared.EmitJSON(cmd.OutOrStdout(), "config validate", result); err != nil {
			return err
		}
	} else {
		out := cmd.OutOrStdout()
		for _, w := range result.Warnings {
			fmt.Fprintln(out, shared.RenderWarn(w))
		}
		for _, e := range result.Errors {
			fmt.Fprintln(out, e)
		}
		if result.Valid {
			fmt.Fprintln(out, shared.RenderOK("configuration is valid"))
		}
	}

	if !result.Valid {
		return &shared.ExitError{Code: shared.ExitConfigError, Message: "configuration is invalid"}
	}
	return nil
}
