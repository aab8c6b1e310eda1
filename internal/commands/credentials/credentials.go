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

package credentials

import (
	"bufio"
	"errors"
	"fmt"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tombee/audionote/internal/commands/completion"
	"github.com/tombee/audionote/internal/commands/shared"
	creds "github.com/tombee/audionote/internal/credentials"
)

// secretFields are the blob fields masked by "credentials get".
var secretFields = map[string]bool{
	"apiKey":      true,
	"secretKey":   true,
	"accessKey":   true,
	"accessToken": true,
}

// NewCommand creates the credentials command.
func NewCommand() *cobra.Command {
	var backend string

	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage the credentials sent with every request",
		Long: `Manage the credentials attached to every backend request.

Four categories are stored, each under its own key:
  webAccessPassword  the shared web access password (plain text)
  llmConfig          {"baseUrl", "modelId", "apiKey"}
  storageConfig      {"accessKey", "secretKey", "endpoint", "region", "bucket"}
  asrConfig          {"appId", "accessToken", "clusterId"}

They are read fresh before each request and sent as headers. Missing
categories are skipped.`,
	}

	cmd.PersistentFlags().StringVar(&backend, "backend", "",
		fmt.Sprintf("Credential store (%s); defaults to credentials.backend", strings.Join(creds.Kinds(), ", ")))
	_ = cmd.RegisterFlagCompletionFunc("backend", completion.CompleteCredentialBackends)

	cmd.AddCommand(newSetCommand(&backend))
	cmd.AddCommand(newGetCommand(&backend))
	cmd.AddCommand(newListCommand(&backend))
	cmd.AddCommand(newDeleteCommand(&backend))
	cmd.AddCommand(newSetPasswordCommand(&backend))

	return cmd
}

func newSetCommand(backend *string) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key>",
		Short: "Store a credential blob",
		Long: `Store a credential blob read from standard input (or a hidden prompt).
JSON categories are validated before they are written.`,
		Example: `  echo '{"baseUrl":"https://llm.example.com","modelId":"gpt-4o","apiKey":"sk-..."}' | audionote credentials set llmConfig
  echo '{"bucket":"notes","region":"us-east-1"}' | audionote credentials set storageConfig`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completion.CompleteCredentialKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSet(cmd, *backend, args[0])
		},
	}
}

func newGetCommand(backend *string) *cobra.Command {
	var unmask bool

	cmd := &cobra.Command{
		Use:               "get <key>",
		Short:             "Show a stored credential",
		Long:              `Show a stored credential. Secret fields are masked unless --unmask is given.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completion.CompleteCredentialKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, *backend, args[0], unmask)
		},
	}

	cmd.Flags().BoolVar(&unmask, "unmask", false, "Show full value (not masked)")

	return cmd
}

func newListCommand(backend *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List which credential categories are stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, *backend)
		},
	}
}

func newDeleteCommand(backend *string) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:               "delete <key>",
		Short:             "Remove a stored credential",
		Long:              `Remove a stored credential. Requires confirmation unless --force is used.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completion.CompleteCredentialKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd, *backend, args[0], force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Skip confirmation prompt")

	return cmd
}

func newSetPasswordCommand(backend *string) *cobra.Command {
	return &cobra.Command{
		Use:   "set-password",
		Short: "Store the web access password",
		Long: `Store the web access password. On a terminal the password is read
without echo; otherwise it is read from standard input.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetPassword(cmd, *backend)
		},
	}
}

func openStore(cmd *cobra.Command, backend string) (creds.Store, error) {
	cfg, err := shared.LoadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if backend != "" {
		cfg.Credentials.Backend = backend
	}
	return shared.OpenStore(cfg)
}

func validateKey(key string) error {
	for _, k := range creds.Keys() {
		if k == key {
			return nil
		}
	}
	return shared.NewInvalidInputError(
		fmt.Sprintf("unknown credential key %q (want one of %s)", key, strings.Join(creds.Keys(), ", ")), nil)
}

func runSet(cmd *cobra.Command, backend, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	raw, err := shared.ReadSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), fmt.Sprintf("Enter %s (hidden): ", key))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if raw == "" {
		return shared.NewInvalidInputError(key+" cannot be empty", nil)
	}

	value, err := creds.Decode(key, raw)
	if err != nil {
		return shared.NewInvalidInputError("invalid credential", err)
	}

	store, err := openStore(cmd, backend)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if s, ok := value.(string); ok {
		err = store.Set(ctx, key, s)
	} else {
		err = creds.Save(ctx, store, key, value)
	}
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}

	return report(cmd, "credentials set", key, store.Name(), fmt.Sprintf("%s stored in %s", key, store.Name()))
}

func runGet(cmd *cobra.Command, backend, key string, unmask bool) error {
	if err := validateKey(key); err != nil {
		return err
	}

	store, err := openStore(cmd, backend)
	if err != nil {
		return err
	}

	raw, err := store.Get(cmd.Context(), key)
	if err != nil {
		if errors.Is(err, creds.ErrNotFound) {
			return fmt.Errorf("%s is not set in %s", key, store.Name())
		}
		return fmt.Errorf("failed to read %s: %w", key, err)
	}

	value, err := displayValue(key, raw, unmask)
	if err != nil {
		return err
	}

	if shared.GetJSON() {
		return shared.EmitJSON(cmd.OutOrStdout(), "credentials get", map[string]any{
			"key":     key,
			"backend": store.Name(),
			"value":   value,
		})
	}

	out := cmd.OutOrStdout()
	if s, ok := value.(string); ok {
		fmt.Fprintln(out, s)
		return nil
	}
	fields := value.(map[string]any)
	for _, name := range sortedKeys(fields) {
		fmt.Fprintf(out, "%s %v\n", shared.RenderLabel(name+":"), fields[name])
	}
	return nil
}

// displayValue returns the password as a string or a JSON blob as a map,
// masking secrets unless unmask is set.
func displayValue(key, raw string, unmask bool) (any, error) {
	if key == creds.KeyWebAccessPassword {
		if unmask {
			return raw, nil
		}
		return shared.MaskSecret(raw), nil
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("stored %s is not valid JSON: %w", key, err)
	}
	if !unmask {
		for name, v := range fields {
			if s, ok := v.(string); ok && secretFields[name] && s != "" {
				fields[name] = shared.MaskSecret(s)
			}
		}
	}
	return fields, nil
}

func runList(cmd *cobra.Command, backend string) error {
	store, err := openStore(cmd, backend)
	if err != nil {
		return err
	}

	type entry struct {
		Key    string `json:"key"`
		Stored bool   `json:"stored"`
	}

	ctx := cmd.Context()
	entries := make([]entry, 0, len(creds.Keys()))
	for _, key := range creds.Keys() {
		_, err := store.Get(ctx, key)
		switch {
		case err == nil:
			entries = append(entries, entry{Key: key, Stored: true})
		case errors.Is(err, creds.ErrNotFound):
			entries = append(entries, entry{Key: key})
		default:
			return fmt.Errorf("failed to read %s: %w", key, err)
		}
	}

	if shared.GetJSON() {
		return shared.EmitJSON(cmd.OutOrStdout(), "credentials list", map[string]any{
			"backend":     store.Name(),
			"credentials": entries,
		})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", shared.Header.Render("Backend:"), store.Name())
	for _, e := range entries {
		if e.Stored {
			fmt.Fprintln(out, shared.RenderOK(e.Key))
		} else {
			fmt.Fprintf(out, "  %s\n", shared.Muted.Render(e.Key+" (not set)"))
		}
	}
	return nil
}

func runDelete(cmd *cobra.Command, backend, key string, force bool) error {
	if err := validateKey(key); err != nil {
		return err
	}

	if !force {
		if shared.IsNonInteractive() {
			return shared.NewInvalidInputError("refusing to delete without --force in non-interactive mode", nil)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Delete %s? [y/N]: ", key)
		answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))
		if answer != "y" && answer != "yes" {
			fmt.Fprintln(cmd.ErrOrStderr(), "Cancelled.")
			return nil
		}
	}

	store, err := openStore(cmd, backend)
	if err != nil {
		return err
	}

	if err := store.Delete(cmd.Context(), key); err != nil {
		if errors.Is(err, creds.ErrNotFound) {
			return fmt.Errorf("%s is not set in %s", key, store.Name())
		}
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}

	return report(cmd, "credentials delete", key, store.Name(), fmt.Sprintf("%s deleted from %s", key, store.Name()))
}

func runSetPassword(cmd *cobra.Command, backend string) error {
	password, err := shared.ReadSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), "Web access password (hidden): ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if password == "" {
		return shared.NewInvalidInputError("password cannot be empty", nil)
	}

	store, err := openStore(cmd, backend)
	if err != nil {
		return err
	}
	if err := store.Set(cmd.Context(), creds.KeyWebAccessPassword, password); err != nil {
		return fmt.Errorf("failed to store password: %w", err)
	}

	return report(cmd, "credentials set-password", creds.KeyWebAccessPassword, store.Name(),
		"web access password stored in "+store.Name())
}

func report(cmd *cobra.Command, command, key, backend, msg string) error {
	if shared.GetJSON() {
		return shared.EmitJSON(cmd.OutOrStdout(), command, map[string]string{"key": key, "backend": backend})
	}
	if !shared.GetQuiet() {
		fmt.Fprintln(cmd.OutOrStdout(), shared.RenderOK(msg))
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
