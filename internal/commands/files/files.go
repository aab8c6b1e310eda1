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

// Package files implements the upload-url and upload commands.
package files

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tombee/audionote/internal/commands/completion"
	"github.com/tombee/audionote/internal/commands/shared"
	"github.com/tombee/audionote/internal/notify"
	"github.com/tombee/audionote/internal/upload"
)

// UploadResult is the JSON output of the upload command.
type UploadResult struct {
	Filename string `json:"filename"`
	Strategy string `json:"strategy"`
	Status   int    `json:"status"`
	Size     int64  `json:"size"`
}

// NewUploadURLCommand creates the upload-url command.
func NewUploadURLCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "upload-url <filename>",
		Short: "Request a presigned upload URL",
		Long: `Ask the backend for a presigned URL that accepts a PUT of <filename>
into the configured storage bucket.`,
		Example: `  audionote upload-url meeting.mp3
  audionote upload-url meeting.mp3 --json`,
		Args: cobra.ExactArgs(1),
		RunE: runUploadURL,
	}
}

func runUploadURL(cmd *cobra.Command, args []string) error {
	rt, err := shared.NewRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	uploadURL, err := rt.API.Files.GetAudioUploadURL(cmd.Context(), args[0])
	if err != nil {
		return shared.Fail(cmd.OutOrStdout(), "upload-url", err)
	}

	if shared.GetJSON() {
		return shared.EmitJSON(cmd.OutOrStdout(), "upload-url", map[string]string{
			"filename":   args[0],
			"upload_url": uploadURL,
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), uploadURL)
	return nil
}

// NewUploadCommand creates the upload command.
func NewUploadCommand() *cobra.Command {
	var (
		proxy    bool
		strategy string
		name     string
	)

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a recording",
		Long: `Upload a local recording.

The direct strategy requests a presigned URL and PUTs the file straight to
storage. The proxy strategy sends it to the backend as multipart form data.
The default comes from upload.strategy in the configuration.

Uploads have no timeout; press Ctrl-C to cancel.`,
		Example: `  audionote upload meeting.mp3
  audionote upload meeting.mp3 --proxy
  audionote upload ./rec-0001.wav --name standup.wav`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if proxy {
				strategy = string(upload.StrategyProxy)
			}
			return runUpload(cmd, args[0], strategy, name)
		},
	}

	cmd.Flags().BoolVar(&proxy, "proxy", false, "Upload through the backend (same as --strategy proxy)")
	cmd.Flags().StringVar(&strategy, "strategy", "", "Upload strategy: direct or proxy")
	_ = cmd.RegisterFlagCompletionFunc("strategy", completion.CompleteUploadStrategies)
	cmd.Flags().StringVar(&name, "name", "", "Remote file name (default: the local base name)")

	return cmd
}

func runUpload(cmd *cobra.Command, path, strategy, name string) error {
	blob, err := upload.OpenFile(path)
	if err != nil {
		return shared.NewInvalidInputError("cannot read recording", err)
	}
	defer blob.Close()
	if name != "" {
		blob.Name = name
	}

	rt, err := shared.NewRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	if strategy == "" {
		strategy = rt.Config.Upload.Strategy
	}
	switch upload.Strategy(strategy) {
	case upload.StrategyDirect, upload.StrategyProxy:
	default:
		return shared.NewInvalidInputError(fmt.Sprintf("unknown upload strategy %q (want direct or proxy)", strategy), nil)
	}

	var onProgress upload.ProgressFunc
	if !shared.GetQuiet() && !shared.GetJSON() {
		bar := notify.NewProgress(cmd.ErrOrStderr(), blob.Name)
		defer bar.Done()
		onProgress = bar.Update
	}

	res, err := rt.Uploader.Upload(cmd.Context(), rt.API.Files, upload.Strategy(strategy), blob, onProgress)
	if err != nil {
		return shared.Fail(cmd.OutOrStdout(), "upload", err)
	}

	out := UploadResult{
		Filename: blob.Name,
		Strategy: string(res.Strategy),
		Status:   res.Status,
		Size:     blob.Size,
	}
	if shared.GetJSON() {
		return shared.EmitJSON(cmd.OutOrStdout(), "upload", out)
	}
	if !shared.GetQuiet() {
		fmt.Fprintln(cmd.OutOrStdout(), shared.RenderOK(fmt.Sprintf("uploaded %s (%s, %d bytes)", out.Filename, out.Strategy, out.Size)))
	}
	return nil
}
