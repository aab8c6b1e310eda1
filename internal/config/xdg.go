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
	"os"
	"path/filepath"
)

// DirEnv overrides the config directory outright.
const DirEnv = "AUDIONOTE_CONFIG_DIR"

// ConfigDir returns the directory holding config.yaml and file-backed
// credentials, creating it with mode 0700 if needed.
//
// Resolution order: $AUDIONOTE_CONFIG_DIR, $XDG_CONFIG_HOME/audionote,
// ~/.config/audionote. The last applies on every platform.
func ConfigDir() (string, error) {
	dir := os.Getenv(DirEnv)
	if dir == "" {
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			base = filepath.Join(home, ".config")
		}
		dir = filepath.Join(base, "audionote")
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

// Path returns name joined onto ConfigDir.
func Path(name string) (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// ConfigPath returns the default config file path.
func ConfigPath() (string, error) {
	return Path("config.yaml")
}
