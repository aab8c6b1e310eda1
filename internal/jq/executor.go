// Package jq compiles and evaluates the jq expressions used to pull messages
// out of arbitrary backend error bodies.
package jq

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/itchyny/gojq"
)

// DefaultTimeout is the default execution time for jq expressions (1 second)
const DefaultTimeout = 1 * time.Second

// Query is a compiled jq expression.
type Query struct {
	expr string
	code *gojq.Code
}

// Compile parses and compiles expression.
func Compile(expression string) (*Query, error) {
	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression %q: %w", expression, err)
	}

	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("jq compilation failed for %q: %w", expression, err)
	}

	return &Query{expr: expression, code: code}, nil
}

// MustCompile is like Compile but panics on error. For package-level rules.
func MustCompile(expression string) *Query {
	q, err := Compile(expression)
	if err != nil {
		panic(err)
	}
	return q
}

// String returns the source expression.
func (q *Query) String() string {
	return q.expr
}

// Executor evaluates queries with timeout protection.
type Executor struct {
	timeout time.Duration
}

// NewExecutor creates a new jq executor. A zero timeout uses DefaultTimeout.
func NewExecutor(timeout time.Duration) *Executor {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Executor{timeout: timeout}
}

// First runs q against data and returns its first output.
// It reports false when the query produced no output.
// data must already be in gojq's value domain; see Normalize.
func (e *Executor) First(ctx context.Context, q *Query, data any) (any, bool, error) {
	execCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type result struct {
		v   any
		ok  bool
		err error
	}
	done := make(chan result, 1)

	go func() {
		iter := q.code.RunWithContext(execCtx, data)
		v, ok := iter.Next()
		if !ok {
			done <- result{}
			return
		}
		if err, isErr := v.(error); isErr {
			done <- result{err: err}
			return
		}
		done <- result{v: v, ok: true}
	}()

	select {
	case r := <-done:
		return r.v, r.ok, r.err
	case <-execCtx.Done():
		return nil, false, fmt.Errorf("execution timeout after %v", e.timeout)
	}
}

// Normalize converts decoded JSON into values gojq accepts.
// json.Number becomes int when it fits, float64 otherwise.
func Normalize(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i)
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = Normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = Normalize(val)
		}
		return out
	default:
		return v
	}
}
