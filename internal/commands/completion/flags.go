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

package completion

import (
	"github.com/spf13/cobra"

	creds "github.com/tombee/audionote/internal/credentials"
	"github.com/tombee/audionote/internal/upload"
)

var backendDescriptions = map[string]string{
	creds.KindFile:          "JSON file in the config directory",
	creds.KindEncryptedFile: "Encrypted file, key from AUDIONOTE_MASTER_KEY",
	creds.KindKeychain:      "System keychain (macOS/Linux)",
	creds.KindEnv:           "AUDIONOTE_CRED_* environment variables (read-only)",
	creds.KindMemory:        "In-process only",
}

// CompleteCredentialBackends completes credential store names.
func CompleteCredentialBackends(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		var out []string
		for _, kind := range creds.Kinds() {
			out = append(out, withDescription(kind, backendDescriptions[kind]))
		}
		return out, cobra.ShellCompDirectiveNoFileComp
	})
}

// CompleteCredentialKeys completes the credential category key for the
// first positional argument.
func CompleteCredentialKeys(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return creds.Keys(), cobra.ShellCompDirectiveNoFileComp
	})
}

// CompleteUploadStrategies completes upload strategy names.
func CompleteUploadStrategies(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		return []string{
			withDescription(string(upload.StrategyDirect), "PUT to a presigned storage URL"),
			withDescription(string(upload.StrategyProxy), "Multipart upload through the backend"),
		}, cobra.ShellCompDirectiveNoFileComp
	})
}

func withDescription(value, desc string) string {
	if desc == "" {
		return value
	}
	return value + "\t" + desc
}
