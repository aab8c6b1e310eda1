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

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tombee/audionote/internal/cli"
	"github.com/tombee/audionote/internal/commands/audio"
	"github.com/tombee/audionote/internal/commands/completion"
	"github.com/tombee/audionote/internal/commands/config"
	"github.com/tombee/audionote/internal/commands/credentials"
	"github.com/tombee/audionote/internal/commands/devserver"
	"github.com/tombee/audionote/internal/commands/files"
	"github.com/tombee/audionote/internal/commands/llm"
	versioncmd "github.com/tombee/audionote/internal/commands/version"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildDate)

	rootCmd := cli.NewRootCommand()

	// Files
	rootCmd.AddCommand(files.NewUploadURLCommand())
	rootCmd.AddCommand(files.NewUploadCommand())

	// Transcription and language model
	rootCmd.AddCommand(audio.NewTranscribeCommand())
	rootCmd.AddCommand(audio.NewTaskCommand())
	rootCmd.AddCommand(llm.NewChatCommand())

	// Configuration and credentials
	rootCmd.AddCommand(config.NewConfigCommand())
	rootCmd.AddCommand(credentials.NewCommand())

	rootCmd.AddCommand(devserver.NewCommand())
	rootCmd.AddCommand(completion.NewCommand())
	rootCmd.AddCommand(versioncmd.NewVersionCommand())

	// Interrupts cancel in-flight requests, which exit with code 130.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		cli.HandleExitError(err)
	}
}
