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

/*
Package cli provides the root command for the audionote CLI.

This package creates the root Cobra command and handles global concerns like
version information, persistent flags, and error handling. Individual commands
are implemented in the internal/commands subpackages.

# Command Tree

	audionote
	├── upload-url    Request a presigned upload URL
	├── upload        Upload a recording (direct or through the backend)
	├── transcribe    Start a transcription task
	├── task          Show a transcription task
	├── chat          Ask the language model
	├── credentials   Manage the per-request credentials
	├── config        Show or edit the configuration file
	├── devserver     Run a local backend for the upload endpoints
	└── version       Show version

# Usage

From main.go:

	cli.SetVersion(version, commit, date)
	rootCmd := cli.NewRootCommand()
	// ... add commands ...
	if err := rootCmd.ExecuteContext(ctx); err != nil {
	    cli.HandleExitError(err)
	}

# Global Flags

All commands inherit these flags:

	--verbose, -v    Enable verbose output
	--quiet, -q      Suppress non-error output
	--json           Output in JSON format
	--config         Path to config file

# Error Handling

Errors are handled centrally to ensure proper exit codes:

  - Exit 0: Success
  - Exit 1: Request or upload failed
  - Exit 2: Invalid input
  - Exit 3: Configuration error
  - Exit 130: Cancelled

Failures already shown by the notification sink are not printed again;
only their suggestion is added.
*/
package cli
