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

package shared

import (
	"bytes"
	"strings"
	"testing"
)

func TestIsNonInteractive(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
	}{
		{"AUDIONOTE_NON_INTERACTIVE=true", map[string]string{"AUDIONOTE_NON_INTERACTIVE": "true"}},
		{"CI=true", map[string]string{"CI": "true"}},
		{"CI=1", map[string]string{"CI": "1"}},
		{"GITHUB_ACTIONS=true", map[string]string{"GITHUB_ACTIONS": "true"}},
		{"JENKINS_HOME set to path", map[string]string{"JENKINS_HOME": "/var/jenkins"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}
			if !IsNonInteractive() {
				t.Error("IsNonInteractive() = false, want true")
			}
		})
	}
}

func TestReadSecret_FromPipe(t *testing.T) {
	var out bytes.Buffer
	got, err := ReadSecret(strings.NewReader("  s3cret\n"), &out, "Password: ")
	if err != nil {
		t.Fatalf("ReadSecret() error = %v", err)
	}
	if got != "s3cret" {
		t.Errorf("ReadSecret() = %q, want %q", got, "s3cret")
	}
	if out.Len() != 0 {
		t.Errorf("piped input should not prompt, got %q", out.String())
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"short", "****"},
		{"12345678", "****"},
		{"sk-abcdefghijkl", "sk-a...ijkl"},
	}
	for _, tt := range tests {
		if got := MaskSecret(tt.in); got != tt.want {
			t.Errorf("MaskSecret(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
