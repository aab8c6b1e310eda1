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

// Package tracing configures the OpenTelemetry tracer provider used for
// request and upload spans.
package tracing

import (
	"fmt"
	"strings"
)

// Exporter names accepted in Config.Exporter.
const (
	ExporterNone     = "none"
	ExporterStdout   = "stdout"
	ExporterOTLPHTTP = "otlp-http"
	ExporterOTLPGRPC = "otlp-grpc"
)

// Config holds tracing configuration.
type Config struct {
	// Exporter selects where spans go. Empty or "none" disables tracing.
	Exporter string `yaml:"exporter"`

	// Endpoint is the OTLP collector host:port (otlp exporters only).
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS for OTLP export (for development only).
	Insecure bool `yaml:"insecure"`

	// ServiceName identifies this client in traces.
	ServiceName string `yaml:"service_name"`

	// ServiceVersion is the application version.
	ServiceVersion string `yaml:"-"`
}

// Enabled reports whether spans are exported.
func (c Config) Enabled() bool {
	return c.Exporter != "" && c.Exporter != ExporterNone
}

// Validate checks the exporter name and its required fields.
func (c Config) Validate() error {
	switch c.Exporter {
	case "", ExporterNone, ExporterStdout:
		return nil
	case ExporterOTLPHTTP, ExporterOTLPGRPC:
		if strings.TrimSpace(c.Endpoint) == "" {
			return fmt.Errorf("tracing.endpoint is required for exporter %q", c.Exporter)
		}
		return nil
	default:
		return fmt.Errorf("unknown tracing exporter %q (want none, stdout, otlp-http or otlp-grpc)", c.Exporter)
	}
}
