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

package pipeline

import (
	"bytes"
	"context"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/tombee/audionote/internal/jq"
	apierrors "github.com/tombee/audionote/pkg/errors"
)

// businessRule extracts the message of a success:false envelope.
var businessRule = jq.MustCompile(".error.message")

// messageRules extract a message from an error body, first match wins.
var messageRules = []*jq.Query{
	businessRule,
	jq.MustCompile(".detail"),
	jq.MustCompile(".message"),
}

// decode parses a response body. JSON numbers are kept as json.Number so
// large integers survive. Bodies that are not JSON come back as a string;
// an empty body is nil.
func decode(raw []byte) any {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return string(raw)
	}
	return v
}

// envelope reports whether v is a backend envelope: a JSON object carrying a
// boolean success field.
func envelope(v any) (obj map[string]any, success bool, ok bool) {
	obj, isObj := v.(map[string]any)
	if !isObj {
		return nil, false, false
	}
	success, ok = obj["success"].(bool)
	return obj, success, ok
}

// interpret classifies a received response.
func (p *Pipeline) interpret(ctx context.Context, status int, raw []byte) (any, *apierrors.APIError) {
	value := decode(raw)

	if status >= 200 && status < 300 {
		obj, success, ok := envelope(value)
		if !ok {
			return value, nil
		}
		if !success {
			msg, _ := p.extract(ctx, value, businessRule)
			return nil, apierrors.NewAPIError(apierrors.KindBusiness, status, msg, value)
		}
		return obj["data"], nil
	}

	return nil, apierrors.NewAPIError(apierrors.KindHTTP, status, p.httpMessage(ctx, status, value), value)
}

// httpMessage picks the message for a non-2xx response. Object bodies go
// through messageRules and fall back to the generic status message; any other
// body yields the default message.
func (p *Pipeline) httpMessage(ctx context.Context, status int, value any) string {
	if _, isObj := value.(map[string]any); !isObj {
		return apierrors.DefaultMessage
	}
	if msg, ok := p.extract(ctx, value, messageRules...); ok {
		return msg
	}
	return fmt.Sprintf("request failed with status code %d", status)
}

// extract returns the first non-empty rule result rendered as a string.
// Rules that error or yield null, false or "" fall through.
func (p *Pipeline) extract(ctx context.Context, value any, rules ...*jq.Query) (string, bool) {
	normalized := jq.Normalize(value)
	for _, rule := range rules {
		v, ok, err := p.jq.First(ctx, rule, normalized)
		if err != nil || !ok {
			continue
		}
		if msg := render(v); msg != "" {
			return msg, true
		}
	}
	return "", false
}

// render turns a rule result into a message. Non-strings become compact JSON.
func render(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case bool:
		if !v {
			return ""
		}
		return "true"
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}
