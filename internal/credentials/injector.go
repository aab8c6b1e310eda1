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
	"context"
	"errors"
	"log/slog"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/tombee/audionote/internal/log"
)

// Injector attaches stored credentials to outbound request headers.
type Injector struct {
	store  Store
	logger *slog.Logger
}

// NewInjector creates an Injector reading from store.
func NewInjector(store Store, logger *slog.Logger) *Injector {
	return &Injector{
		store:  store,
		logger: log.WithComponent(log.OrDefault(logger), "credentials"),
	}
}

// Inject adds a header for every present, non-empty credential field.
// Headers the caller already set are left untouched. A missing category is
// skipped silently; an unreadable or malformed one is logged and skipped.
// Inject never fails the request.
func (i *Injector) Inject(ctx context.Context, h http.Header) {
	if i == nil || i.store == nil {
		return
	}

	if password, ok := i.read(ctx, KeyWebAccessPassword); ok {
		setIfAbsent(h, "request-web-access-password", password)
	}

	for _, key := range []string{KeyLLMConfig, KeyStorageConfig, KeyASRConfig} {
		if fields, ok := i.loadCategory(ctx, key); ok {
			apply(h, categoryHeaders[key], fields)
		}
	}
}

// read fetches a raw blob, reporting false when it should be skipped.
func (i *Injector) read(ctx context.Context, key string) (string, bool) {
	raw, err := i.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			i.logger.Warn("failed to read credentials",
				"key", key,
				"store", i.store.Name(),
				log.Error(err))
		}
		return "", false
	}
	return raw, raw != ""
}

// loadCategory decodes a category blob as a JSON object. Only malformed
// JSON skips the whole category; field types are checked one by one in apply.
func (i *Injector) loadCategory(ctx context.Context, key string) (map[string]any, bool) {
	raw, ok := i.read(ctx, key)
	if !ok {
		return nil, false
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		i.logger.Warn("failed to parse credentials",
			"key", key,
			"store", i.store.Name(),
			log.Error(err))
		return nil, false
	}
	return fields, true
}

func apply(h http.Header, mapping []headerField, fields map[string]any) {
	for _, m := range mapping {
		value, ok := fields[m.field].(string)
		if !ok {
			continue
		}
		setIfAbsent(h, m.header, value)
	}
}

func setIfAbsent(h http.Header, name, value string) {
	if value == "" || len(h.Values(name)) > 0 {
		return
	}
	h.Set(name, value)
}
